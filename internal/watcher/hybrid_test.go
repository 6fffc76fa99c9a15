package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seerrors "github.com/fileseer/fileseer/internal/errors"
)

func startWatcher(t *testing.T, dir string) *HybridWatcher {
	t.Helper()

	w, err := NewHybridWatcher(Options{
		DebounceWindow: 50 * time.Millisecond,
		ExcludeDirs:    []string{"node_modules"},
	})
	require.NoError(t, err)
	require.Equal(t, "fsnotify", w.WatcherType())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, dir))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func waitForEvent(t *testing.T, w *HybridWatcher, path string, op Operation) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-w.Events():
			for _, e := range batch {
				if e.Path == path && e.Operation == op {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on %s", op, path)
		}
	}
}

func TestHybridWatcher_DetectsCreate(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	waitForEvent(t, w, path, OpCreate)
}

func TestHybridWatcher_DetectsModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(path, []byte("v2 with more text"), 0o644))

	waitForEvent(t, w, path, OpModify)
}

func TestHybridWatcher_DetectsDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("bye"), 0o644))

	w := startWatcher(t, dir)

	require.NoError(t, os.Remove(path))

	waitForEvent(t, w, path, OpDelete)
}

func TestHybridWatcher_IgnoresExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	excluded := filepath.Join(dir, "node_modules")
	require.NoError(t, os.MkdirAll(excluded, 0o755))

	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(excluded, "pkg.json"), []byte("{}"), 0o644))
	visible := filepath.Join(dir, "visible.txt")
	require.NoError(t, os.WriteFile(visible, []byte("seen"), 0o644))

	// Only the visible file may surface
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-w.Events():
			for _, e := range batch {
				assert.NotContains(t, e.Path, "node_modules")
				if e.Path == visible {
					return
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for visible file event")
		}
	}
}

func TestShouldIgnore(t *testing.T) {
	w, err := NewHybridWatcher(Options{ExcludeDirs: []string{"node_modules", ".git"}})
	require.NoError(t, err)
	defer w.Stop()

	tests := []struct {
		relPath string
		isDir   bool
		ignored bool
	}{
		{"docs/readme.md", false, false},
		{"clips/trailer.mp4", false, false},
		{"node_modules", true, true},
		{"node_modules/lib/index.js", false, true},
		{".git", true, true},
		{".hidden/file.txt", false, true},
		{".fileseer", true, true},
		{"visible/.secret.txt", false, true},
		{"data.xyz", false, true},
		{"Makefile", false, true},
		{"unrecognized", true, false},
		{"", false, true},
		{".", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.relPath, func(t *testing.T) {
			assert.Equal(t, tt.ignored, w.shouldIgnore(tt.relPath, tt.isDir))
		})
	}
}

func TestShouldIgnore_IncludeHidden(t *testing.T) {
	w, err := NewHybridWatcher(Options{IncludeHidden: true})
	require.NoError(t, err)
	defer w.Stop()

	assert.False(t, w.shouldIgnore(".notes/todo.md", false))
}

func TestHybridWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewHybridWatcher(Options{})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestHybridWatcher_StartReturnsWhileWatching(t *testing.T) {
	dir := t.TempDir()
	w, err := NewHybridWatcher(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer w.Stop()

	returned := make(chan error, 1)
	go func() { returned <- w.Start(ctx, dir) }()

	// Start must hand control back once the tree is registered, not
	// hold it until shutdown; otherwise no caller can consume Events.
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after registering the watch")
	}

	path := filepath.Join(dir, "after-start.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	waitForEvent(t, w, path, OpCreate)
}

func TestHybridWatcher_StartRejectsMissingTarget(t *testing.T) {
	w, err := NewHybridWatcher(Options{})
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
	assert.Equal(t, seerrors.ErrCodeFileNotFound, seerrors.GetCode(err))
}

func TestHybridWatcher_StartRejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	w, err := NewHybridWatcher(Options{})
	require.NoError(t, err)
	defer w.Stop()

	err = w.Start(context.Background(), file)
	require.Error(t, err)
	assert.Equal(t, seerrors.ErrCodeInvalidPath, seerrors.GetCode(err))
}
