package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/extract"
)

// HybridWatcher implements the Watcher interface using fsnotify as the
// primary mechanism with polling as a fallback.
type HybridWatcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool
	debouncer   *Debouncer
	excluded    map[string]bool
	events      chan []FileEvent
	errors      chan error
	stopCh      chan struct{}
	stopOnce    sync.Once
	rootPath    string
	opts        Options
	mu          sync.RWMutex
	stopped     bool
}

var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a new hybrid watcher with the given options.
// Attempts to use fsnotify first, falls back to polling if it fails.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()

	excluded := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		excluded[d] = true
	}

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		excluded:  excluded,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		h.fsWatcher = fsw
		h.useFsnotify = true
	} else {
		h.useFsnotify = false
		h.pollWatcher = NewPollingWatcher(opts.PollInterval, h.shouldIgnore)
	}

	return h, nil
}

// Start validates the watch target, registers the directory tree, and
// launches the event loops. It returns once watching is active; the
// loops run until ctx is cancelled or Stop is called.
func (h *HybridWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrCodeFileNotFound,
				fmt.Sprintf("watch target does not exist: %s", absPath), err)
		}
		return fmt.Errorf("stat watch target: %w", err)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("watch target is not a directory: %s", absPath), nil)
	}
	h.rootPath = absPath

	if h.useFsnotify {
		if err := h.addRecursive(absPath); err != nil {
			return fmt.Errorf("add directories to watcher: %w", err)
		}
	} else if err := h.pollWatcher.Prime(absPath); err != nil {
		return err
	}

	go h.forwardDebouncedEvents(ctx)
	go h.run(ctx)
	return nil
}

// run pumps source events into the debouncer until shutdown.
func (h *HybridWatcher) run(ctx context.Context) {
	if !h.useFsnotify {
		h.pollWatcher.Run(ctx, h.debouncer)
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return
		case <-h.stopCh:
			return
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return
			}
			h.emitError(err)
		}
	}
}

// handleFsnotifyEvent converts and filters fsnotify events.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(h.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	isDir := false
	statOK := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
		statOK = true
	}

	// A vanished path cannot be classified as file or directory, so the
	// extension filter must not apply; deletes of never-indexed paths
	// are cheap no-ops downstream.
	if h.shouldIgnore(relPath, isDir || !statOK) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories must be added to the watch set
		if isDir {
			_ = h.fsWatcher.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		// Rename delivers only the old name; the new name arrives as CREATE
		op = OpDelete
	default:
		// Chmod and unknown ops are irrelevant to the index
		return
	}

	h.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// forwardDebouncedEvents forwards debounced batches to the output channel.
func (h *HybridWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case events, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			h.emitEvents(ctx, events)
		}
	}
}

// addRecursive adds all directories under root to the fsnotify watcher.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip directories we can't access
		}

		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return h.fsWatcher.Add(path)
		}

		if h.shouldIgnore(relPath, true) {
			return filepath.SkipDir
		}

		return h.fsWatcher.Add(path)
	})
}

// shouldIgnore returns true if the relative path should be skipped.
// Files with extensions outside the recognized category set never
// enter the pipeline.
func (h *HybridWatcher) shouldIgnore(relPath string, isDir bool) bool {
	if relPath == "." || relPath == "" {
		return true
	}

	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if h.excluded[part] {
			return true
		}
		if !h.opts.IncludeHidden && strings.HasPrefix(part, ".") {
			return true
		}
	}

	if !isDir && extract.CategoryForPath(relPath) == extract.CategoryOther {
		return true
	}

	return false
}

// emitEvents delivers a batch, blocking until the consumer takes it.
// A dropped batch could orphan deleted paths until the next reconcile,
// so buffer pressure stalls the forwarding goroutine instead.
func (h *HybridWatcher) emitEvents(ctx context.Context, events []FileEvent) {
	// Stop closes the channel only under the write lock, so holding the
	// read lock across the send keeps it safe.
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.events <- events:
	case <-ctx.Done():
	case <-h.stopCh:
	}
}

// emitError sends an error to the error channel without blocking.
func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()

	if stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop stops the watcher and releases resources.
func (h *HybridWatcher) Stop() error {
	// Signal before taking the write lock so a blocked emit lets go.
	h.stopOnce.Do(func() { close(h.stopCh) })

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true

	h.debouncer.Stop()

	if h.useFsnotify && h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of batched file events.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// WatcherType returns the mechanism in use ("fsnotify" or "polling").
func (h *HybridWatcher) WatcherType() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// RootPath returns the root path being watched.
func (h *HybridWatcher) RootPath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rootPath
}
