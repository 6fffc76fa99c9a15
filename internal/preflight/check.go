package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/embed"
)

// Status is the outcome of a single check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// Result holds the outcome of one check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	Required bool   `json:"required"`
}

// Critical reports whether a required check failed.
func (r Result) Critical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs environment checks against a resolved configuration.
type Checker struct {
	cfg *config.Config
}

// NewChecker returns a Checker for cfg. A nil cfg uses the defaults.
func NewChecker(cfg *config.Config) *Checker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Checker{cfg: cfg}
}

// RunAll runs every check in order.
func (c *Checker) RunAll(ctx context.Context) []Result {
	return []Result{
		c.CheckDataDir(),
		c.CheckLock(),
		c.CheckDiskSpace(),
		c.CheckFileDescriptors(),
		c.CheckEmbedder(ctx),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.Critical() {
			return true
		}
	}
	return false
}

// Summary collapses a result list into "ready", "ready_with_warnings",
// or "failed".
func Summary(results []Result) string {
	warned := false
	for _, r := range results {
		if r.Critical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckDataDir verifies the data directory exists (or can be created)
// and accepts writes.
func (c *Checker) CheckDataDir() Result {
	result := Result{Name: "data_dir", Required: true}

	dir := c.cfg.Paths.DataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, ".fileseer-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckLock reports whether another process already holds the data
// directory. A held lock is a warning: read paths still work, but a
// second indexer cannot start.
func (c *Checker) CheckLock() Result {
	result := Result{Name: "instance_lock", Required: false}

	lock := embed.NewFileLock(c.cfg.Paths.DataDir)
	ok, err := lock.TryLock()
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot probe lock: %v", err)
		return result
	}
	if !ok {
		result.Status = StatusWarn
		result.Message = "another fileseer process holds the data directory"
		result.Detail = "stop the other instance before indexing"
		return result
	}
	_ = lock.Unlock()

	result.Status = StatusPass
	result.Message = "free"
	return result
}

// CheckEmbedder verifies the configured embedding provider can serve
// queries. Static embeddings always pass; ollama needs a live daemon.
func (c *Checker) CheckEmbedder(ctx context.Context) Result {
	result := Result{Name: "embedder", Required: false}

	switch embed.ProviderType(c.cfg.Embeddings.Provider) {
	case embed.ProviderStatic:
		result.Status = StatusPass
		result.Message = "static embeddings (no external dependency)"
	case embed.ProviderOllama:
		result.Required = true
		if embed.ProbeOllama(ctx, c.cfg.Embeddings.OllamaHost) {
			result.Status = StatusPass
			result.Message = "ollama reachable"
		} else {
			result.Status = StatusFail
			result.Message = "ollama not reachable"
			result.Detail = "start ollama or set embeddings.provider to static or auto"
		}
	default:
		if embed.ProbeOllama(ctx, c.cfg.Embeddings.OllamaHost) {
			result.Status = StatusPass
			result.Message = "auto: ollama reachable"
		} else {
			result.Status = StatusWarn
			result.Message = "auto: ollama not reachable, static fallback will be used"
		}
	}
	return result
}

func formatBytes(bytes uint64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
