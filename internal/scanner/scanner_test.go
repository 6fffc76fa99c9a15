package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seerrors "github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/extract"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// collect drains the scan stream into sorted relative paths.
func collect(t *testing.T, root string, results <-chan Result) []string {
	t.Helper()
	var paths []string
	for r := range results {
		require.NoError(t, r.Err)
		rel, err := filepath.Rel(root, r.File.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}
	sort.Strings(paths)
	return paths
}

func TestScan_DiscoversFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "hello")
	writeFile(t, filepath.Join(root, "docs", "report.md"), "report")
	writeFile(t, filepath.Join(root, "pics", "cat.png"), "not a real png")

	s := New(Options{}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	paths := collect(t, root, results)
	assert.Equal(t, []string{"docs/report.md", "notes.txt", "pics/cat.png"}, paths)
}

func TestScan_FileInfoFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "report.pdf"), "%PDF-")

	s := New(Options{}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	r := <-results
	require.NoError(t, r.Err)
	require.NotNil(t, r.File)
	assert.Equal(t, filepath.Join(root, "report.pdf"), r.File.Path)
	assert.Equal(t, "report.pdf", r.File.Name)
	assert.Equal(t, int64(5), r.File.Size)
	assert.Equal(t, extract.CategoryDocument, r.File.Category)
	assert.Equal(t, extract.TypeText, r.File.ContentType)
	assert.WithinDuration(t, time.Now(), r.File.ModTime, time.Minute)

	_, more := <-results
	assert.False(t, more)
}

func TestScan_SkipsHiddenByDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".secret.txt"), "x")
	writeFile(t, filepath.Join(root, ".cache", "blob.txt"), "x")
	writeFile(t, filepath.Join(root, "visible.txt"), "x")

	s := New(Options{}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"visible.txt"}, collect(t, root, results))
}

func TestScan_IncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".secret.txt"), "x")
	writeFile(t, filepath.Join(root, "visible.txt"), "x")

	s := New(Options{IncludeHidden: true}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{".secret.txt", "visible.txt"}, collect(t, root, results))
}

func TestScan_ExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "x")
	writeFile(t, filepath.Join(root, "src", "node_modules", "dep.js"), "x")
	writeFile(t, filepath.Join(root, "src", "main.go"), "x")

	s := New(Options{ExcludeDirs: []string{"node_modules"}}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.go"}, collect(t, root, results))
}

func TestScan_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.txt"), "ok")
	writeFile(t, filepath.Join(root, "big.txt"), string(make([]byte, 100)))

	s := New(Options{MaxFileSize: 10}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"small.txt"}, collect(t, root, results))
}

func TestScan_SeerignorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFileName), "*.log\nbuild/\n")
	writeFile(t, filepath.Join(root, "app.log"), "x")
	writeFile(t, filepath.Join(root, "build", "out.txt"), "x")
	writeFile(t, filepath.Join(root, "keep.txt"), "x")

	s := New(Options{IncludeHidden: true}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{IgnoreFileName, "keep.txt"}, collect(t, root, results))
}

func TestScan_RootErrors(t *testing.T) {
	s := New(Options{}, nil)

	// Given a missing root.
	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
	var serr *seerrors.SeerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, seerrors.ErrCodeFileNotFound, serr.Code)

	// Given a file instead of a directory.
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f.txt"), "x")
	_, err = s.Scan(context.Background(), filepath.Join(root, "f.txt"))
	require.Error(t, err)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, seerrors.ErrCodeInvalidPath, serr.Code)
}

func TestScan_ContextCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(root, "d", string(rune('a'+i))+".txt"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{}, nil)
	results, err := s.Scan(ctx, root)
	require.NoError(t, err)

	cancel()
	// The stream must terminate; drain whatever was buffered.
	for range results {
	}
}

func TestScan_UnsupportedTypesStillEmitted(t *testing.T) {
	// Video and archive files carry no indexable content but still feed
	// the filename index.
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mp4"), "x")

	s := New(Options{}, nil)
	results, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	r := <-results
	require.NoError(t, r.Err)
	assert.Equal(t, extract.CategoryVideo, r.File.Category)
	assert.Equal(t, extract.TypeUnsupported, r.File.ContentType)
}
