package index

import (
	"sync"
	"time"
)

// fileState tracks where a path is in the indexing pipeline. Discovered,
// Extracting, Chunking and Embedding are transient; the rest are terminal.
type fileState int

const (
	stateDiscovered fileState = iota
	stateExtracting
	stateChunking
	stateEmbedding
	stateStored
	stateSkipped
	stateFailed
	stateDeleted
)

func (s fileState) String() string {
	switch s {
	case stateDiscovered:
		return "discovered"
	case stateExtracting:
		return "extracting"
	case stateChunking:
		return "chunking"
	case stateEmbedding:
		return "embedding"
	case stateStored:
		return "stored"
	case stateSkipped:
		return "skipped"
	case stateFailed:
		return "failed"
	case stateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// maxFailedFiles caps how many failure details a run retains.
const maxFailedFiles = 50

// maxIndexedFiles caps the indexed-path list a run retains.
const maxIndexedFiles = 50

// FileFailure records one file that could not be indexed.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IndexingStats is a snapshot of one indexing run.
type IndexingStats struct {
	// Processed counts every file that reached a terminal state.
	Processed int `json:"processed"`
	// Indexed counts files whose rows were committed.
	Indexed int `json:"indexed"`
	// Skipped counts unchanged and unsupported files.
	Skipped int `json:"skipped"`
	// Failed counts files that hit a terminal error.
	Failed int `json:"failed"`
	// Deleted counts paths removed from the index.
	Deleted int `json:"deleted"`
	// Chunks counts embedded chunks across all files.
	Chunks int `json:"chunks"`

	// ByCategory counts processed files per filename category.
	ByCategory map[string]int `json:"by_category,omitempty"`
	// ByModality counts indexed files per content modality.
	ByModality map[string]int `json:"by_modality,omitempty"`

	// IndexedFiles lists up to maxIndexedFiles committed paths.
	IndexedFiles []string `json:"indexed_files,omitempty"`
	// FailedFiles lists up to maxFailedFiles failure details.
	FailedFiles []FileFailure `json:"failed_files,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
	// Running is true while the run is still in progress.
	Running bool `json:"running"`
}

// tracker aggregates stats across concurrent pipeline workers. A
// snapshot may be taken while a run is still in flight.
type tracker struct {
	mu      sync.Mutex
	stats   IndexingStats
	started time.Time
}

func newTracker() *tracker {
	return &tracker{
		stats: IndexingStats{
			ByCategory: make(map[string]int),
			ByModality: make(map[string]int),
			Running:    true,
		},
		started: time.Now(),
	}
}

func (t *tracker) discovered(category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.ByCategory[category]++
}

func (t *tracker) stored(path, modality string, chunks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Processed++
	t.stats.Indexed++
	t.stats.Chunks += chunks
	t.stats.ByModality[modality]++
	if len(t.stats.IndexedFiles) < maxIndexedFiles {
		t.stats.IndexedFiles = append(t.stats.IndexedFiles, path)
	}
}

func (t *tracker) skipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Processed++
	t.stats.Skipped++
}

func (t *tracker) failed(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Processed++
	t.stats.Failed++
	if len(t.stats.FailedFiles) < maxFailedFiles {
		t.stats.FailedFiles = append(t.stats.FailedFiles, FileFailure{
			Path:   path,
			Reason: err.Error(),
		})
	}
}

func (t *tracker) deleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Deleted++
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Elapsed = time.Since(t.started)
	t.stats.Running = false
}

// snapshot returns a copy safe to read after the tracker moves on.
func (t *tracker) snapshot() IndexingStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.stats
	if out.Running {
		out.Elapsed = time.Since(t.started)
	}
	out.ByCategory = make(map[string]int, len(t.stats.ByCategory))
	for k, v := range t.stats.ByCategory {
		out.ByCategory[k] = v
	}
	out.ByModality = make(map[string]int, len(t.stats.ByModality))
	for k, v := range t.stats.ByModality {
		out.ByModality[k] = v
	}
	out.IndexedFiles = append([]string(nil), t.stats.IndexedFiles...)
	out.FailedFiles = append([]FileFailure(nil), t.stats.FailedFiles...)
	return out
}
