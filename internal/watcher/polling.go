package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by periodically scanning the directory.
// Used as a fallback when fsnotify is not available or fails.
type PollingWatcher struct {
	interval  time.Duration
	ignore    func(relPath string, isDir bool) bool
	fileState map[string]fileSnapshot
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
	rootPath  string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher with the given interval.
// ignore filters relative paths; nil means nothing is ignored.
func NewPollingWatcher(interval time.Duration, ignore func(string, bool) bool) *PollingWatcher {
	if ignore == nil {
		ignore = func(string, bool) bool { return false }
	}
	return &PollingWatcher{
		interval:  interval,
		ignore:    ignore,
		fileState: make(map[string]fileSnapshot),
		stopCh:    make(chan struct{}),
	}
}

// Prime records the baseline snapshot for path. The baseline itself
// never emits events. Must be called before Run.
func (p *PollingWatcher) Prime(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	if _, err := p.snapshot(); err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	return nil
}

// Run polls until ctx is cancelled or Stop is called, feeding detected
// changes into the debouncer.
func (p *PollingWatcher) Run(ctx context.Context, sink *Debouncer) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.detectChanges(sink)
		}
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	return nil
}

// snapshot walks the directory and records file state.
func (p *PollingWatcher) snapshot() (map[string]fileSnapshot, error) {
	current := make(map[string]fileSnapshot)

	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		relPath, err := filepath.Rel(p.rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}

		if p.ignore(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		current[path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.fileState = current
	p.mu.Unlock()
	return current, nil
}

// detectChanges compares current state with the previous snapshot and
// feeds create/modify/delete events into the debouncer.
func (p *PollingWatcher) detectChanges(sink *Debouncer) {
	p.mu.Lock()
	previous := p.fileState
	p.mu.Unlock()

	current, err := p.snapshot()
	if err != nil {
		return
	}

	now := time.Now()

	for path, snap := range current {
		prev, existed := previous[path]
		switch {
		case !existed:
			sink.Add(FileEvent{Path: path, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			if !snap.isDir {
				sink.Add(FileEvent{Path: path, Operation: OpModify, IsDir: false, Timestamp: now})
			}
		}
	}

	for path, snap := range previous {
		if _, exists := current[path]; !exists {
			sink.Add(FileEvent{Path: path, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}
}
