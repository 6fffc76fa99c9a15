// Package config loads and validates Fileseer configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/fileseer/config.yaml)
//  3. Folder config (.fileseer.yaml in the indexed folder)
//  4. Environment variables (FILESEER_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Fileseer configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Watcher     WatcherConfig     `yaml:"watcher" json:"watcher"`
	Extraction  ExtractionConfig  `yaml:"extraction" json:"extraction"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Filename    FilenameConfig    `yaml:"filename" json:"filename"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// PathsConfig configures where index data lives and what to skip.
type PathsConfig struct {
	// DataDir is where index files are stored. Empty uses ~/.fileseer/data.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Exclude lists directory names that are never scanned or watched.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// IncludeHidden indexes dotfiles and dot-directories when true.
	IncludeHidden bool `yaml:"include_hidden" json:"include_hidden"`
}

// WatcherConfig configures filesystem watching.
type WatcherConfig struct {
	// Debounce is the quiet window applied to raw filesystem events.
	Debounce string `yaml:"debounce" json:"debounce"`
	// QueueSize is the capacity of the coalesced event channel.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// ExtractionConfig bounds content extraction.
type ExtractionConfig struct {
	// MaxFileSizeMB skips files larger than this many megabytes.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	// MaxPDFChars truncates extracted PDF text at this many characters.
	MaxPDFChars int `yaml:"max_pdf_chars" json:"max_pdf_chars"`
}

// ChunkingConfig bounds text chunking.
type ChunkingConfig struct {
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`
	MaxChunkSize int `yaml:"max_chunk_size" json:"max_chunk_size"`
	MaxChunks    int `yaml:"max_chunks" json:"max_chunks"`
}

// EmbeddingsConfig configures the embedding backends.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama", "static", or empty for
	// auto-detection (ollama if reachable, static otherwise).
	Provider string `yaml:"provider" json:"provider"`

	TextModel  string `yaml:"text_model" json:"text_model"`
	ImageModel string `yaml:"image_model" json:"image_model"`

	// TextDimensions and ImageDimensions fix the vector widths of the two
	// index tables. Changing them invalidates existing index files.
	TextDimensions  int `yaml:"text_dimensions" json:"text_dimensions"`
	ImageDimensions int `yaml:"image_dimensions" json:"image_dimensions"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// RequestTimeout bounds a single embed call, as a duration string.
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`

	// CacheSize is the number of content-hash keyed vectors kept in memory.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// QueueSize is the capacity of the sequential embed queue.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// SearchConfig configures query behavior and fusion.
type SearchConfig struct {
	// Limit is the default number of results returned.
	Limit int `yaml:"limit" json:"limit"`

	// MinScore drops semantic results scoring below this value.
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// SemanticWeight and FilenameWeight scale the two rankings in
	// combined mode. Both default to 1.0, which orders purely by
	// normalized score; lower one to bias toward the other source.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	FilenameWeight float64 `yaml:"filename_weight" json:"filename_weight"`

	// CrossModal queries the image table with text queries when true.
	CrossModal bool `yaml:"cross_modal" json:"cross_modal"`
}

// FilenameConfig configures the fuzzy filename index.
type FilenameConfig struct {
	// Backend selects the index implementation: "bktree" (default,
	// in-memory with gob persistence) or "bleve" (on-disk fuzzy index).
	Backend string `yaml:"backend" json:"backend"`

	// MaxDistance is the default edit-distance radius for fuzzy matches.
	MaxDistance int `yaml:"max_distance" json:"max_distance"`
}

// PerformanceConfig configures pipeline concurrency.
type PerformanceConfig struct {
	// Workers is the number of parallel extract/chunk workers.
	Workers int `yaml:"workers" json:"workers"`
	// QueueSize is the pending-file queue capacity. Zero means 2x workers.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// MaxFiles aborts folder indexing beyond this many candidate files.
	MaxFiles int `yaml:"max_files" json:"max_files"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

var defaultExcludeDirs = []string{
	"node_modules",
	".git",
	"target",
	"dist",
	"build",
	"__pycache__",
	".venv",
	"venv",
	".cache",
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:       defaultDataDir(),
			Exclude:       defaultExcludeDirs,
			IncludeHidden: false,
		},
		Watcher: WatcherConfig{
			Debounce:  "300ms",
			QueueSize: 1024,
		},
		Extraction: ExtractionConfig{
			MaxFileSizeMB: 50,
			MaxPDFChars:   100000,
		},
		Chunking: ChunkingConfig{
			MinChunkSize: 500,
			MaxChunkSize: 1500,
			MaxChunks:    100,
		},
		Embeddings: EmbeddingsConfig{
			Provider:        "", // Auto-detect: ollama if reachable, static otherwise
			TextModel:       "nomic-embed-text",
			ImageModel:      "llava",
			TextDimensions:  384,
			ImageDimensions: 512,
			OllamaHost:      "",
			RequestTimeout:  "30s",
			CacheSize:       4096,
			QueueSize:       256,
		},
		Search: SearchConfig{
			Limit:          20,
			MinScore:       0.6,
			SemanticWeight: 1.0,
			FilenameWeight: 1.0,
			CrossModal:     false,
		},
		Filename: FilenameConfig{
			Backend:     "bktree",
			MaxDistance: 2,
		},
		Performance: PerformanceConfig{
			Workers:   runtime.NumCPU(),
			QueueSize: 0,
			MaxFiles:  100000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// defaultDataDir returns the default index data directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fileseer", "data")
	}
	return filepath.Join(home, ".fileseer", "data")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fileseer", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fileseer", "config.yaml")
	}
	return filepath.Join(home, ".config", "fileseer", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load loads configuration for the given folder.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFolder(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFolder attempts to load .fileseer.yaml or .fileseer.yml from dir.
func (c *Config) loadFromFolder(dir string) error {
	for _, name := range []string{".fileseer.yaml", ".fileseer.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	// No folder config is fine
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if len(other.Paths.Exclude) > 0 {
		// Extend the defaults rather than replace them
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.IncludeHidden {
		c.Paths.IncludeHidden = true
	}

	if other.Watcher.Debounce != "" {
		c.Watcher.Debounce = other.Watcher.Debounce
	}
	if other.Watcher.QueueSize != 0 {
		c.Watcher.QueueSize = other.Watcher.QueueSize
	}

	if other.Extraction.MaxFileSizeMB != 0 {
		c.Extraction.MaxFileSizeMB = other.Extraction.MaxFileSizeMB
	}
	if other.Extraction.MaxPDFChars != 0 {
		c.Extraction.MaxPDFChars = other.Extraction.MaxPDFChars
	}

	if other.Chunking.MinChunkSize != 0 {
		c.Chunking.MinChunkSize = other.Chunking.MinChunkSize
	}
	if other.Chunking.MaxChunkSize != 0 {
		c.Chunking.MaxChunkSize = other.Chunking.MaxChunkSize
	}
	if other.Chunking.MaxChunks != 0 {
		c.Chunking.MaxChunks = other.Chunking.MaxChunks
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.TextModel != "" {
		c.Embeddings.TextModel = other.Embeddings.TextModel
	}
	if other.Embeddings.ImageModel != "" {
		c.Embeddings.ImageModel = other.Embeddings.ImageModel
	}
	if other.Embeddings.TextDimensions != 0 {
		c.Embeddings.TextDimensions = other.Embeddings.TextDimensions
	}
	if other.Embeddings.ImageDimensions != 0 {
		c.Embeddings.ImageDimensions = other.Embeddings.ImageDimensions
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.RequestTimeout != "" {
		c.Embeddings.RequestTimeout = other.Embeddings.RequestTimeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.QueueSize != 0 {
		c.Embeddings.QueueSize = other.Embeddings.QueueSize
	}

	if other.Search.Limit != 0 {
		c.Search.Limit = other.Search.Limit
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.FilenameWeight != 0 {
		c.Search.FilenameWeight = other.Search.FilenameWeight
	}
	if other.Search.CrossModal {
		c.Search.CrossModal = true
	}

	if other.Filename.Backend != "" {
		c.Filename.Backend = other.Filename.Backend
	}
	if other.Filename.MaxDistance != 0 {
		c.Filename.MaxDistance = other.Filename.MaxDistance
	}

	if other.Performance.Workers != 0 {
		c.Performance.Workers = other.Performance.Workers
	}
	if other.Performance.QueueSize != 0 {
		c.Performance.QueueSize = other.Performance.QueueSize
	}
	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies FILESEER_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FILESEER_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("FILESEER_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("FILESEER_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("FILESEER_FILENAME_BACKEND"); v != "" {
		c.Filename.Backend = v
	}
	if v := os.Getenv("FILESEER_WATCH_DEBOUNCE"); v != "" {
		c.Watcher.Debounce = v
	}
	if v := os.Getenv("FILESEER_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FILESEER_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w > 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("FILESEER_FILENAME_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w > 0 && w <= 1 {
			c.Search.FilenameWeight = w
		}
	}
	if v := os.Getenv("FILESEER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.Workers = n
		}
	}
}

// RequestTimeoutDuration parses the embed request timeout.
func (e EmbeddingsConfig) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// DebounceDuration parses the watcher debounce window.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watcher.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Chunking.MinChunkSize <= 0 {
		return fmt.Errorf("min_chunk_size must be positive, got %d", c.Chunking.MinChunkSize)
	}
	if c.Chunking.MaxChunkSize < c.Chunking.MinChunkSize {
		return fmt.Errorf("max_chunk_size (%d) must be >= min_chunk_size (%d)",
			c.Chunking.MaxChunkSize, c.Chunking.MinChunkSize)
	}
	if c.Chunking.MaxChunks <= 0 {
		return fmt.Errorf("max_chunks must be positive, got %d", c.Chunking.MaxChunks)
	}

	if c.Embeddings.TextDimensions <= 0 {
		return fmt.Errorf("text_dimensions must be positive, got %d", c.Embeddings.TextDimensions)
	}
	if c.Embeddings.ImageDimensions <= 0 {
		return fmt.Errorf("image_dimensions must be positive, got %d", c.Embeddings.ImageDimensions)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("min_score must be between 0 and 1, got %f", c.Search.MinScore)
	}
	if c.Search.SemanticWeight <= 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be in (0, 1], got %f", c.Search.SemanticWeight)
	}
	if c.Search.FilenameWeight <= 0 || c.Search.FilenameWeight > 1 {
		return fmt.Errorf("filename_weight must be in (0, 1], got %f", c.Search.FilenameWeight)
	}

	validBackends := map[string]bool{"bktree": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Filename.Backend)] {
		return fmt.Errorf("filename.backend must be 'bktree' or 'bleve', got %s", c.Filename.Backend)
	}
	if c.Filename.MaxDistance < 0 {
		return fmt.Errorf("filename.max_distance must be non-negative, got %d", c.Filename.MaxDistance)
	}

	if _, err := time.ParseDuration(c.Watcher.Debounce); err != nil {
		return fmt.Errorf("watcher.debounce is not a valid duration: %s", c.Watcher.Debounce)
	}

	if c.Embeddings.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.Embeddings.RequestTimeout); err != nil {
			return fmt.Errorf("embeddings.request_timeout is not a valid duration: %s", c.Embeddings.RequestTimeout)
		}
	}

	if c.Server.Transport != "" && strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
