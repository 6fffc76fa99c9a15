// Package index drives the indexing pipeline: it walks or watches a
// tree, extracts and chunks content, hands vectors to the stores, and
// keeps the filename index in step. Each file moves through a small
// state machine (discovered, extracting, chunking, embedding) into one
// of the terminal states stored, skipped, failed, or deleted.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fileseer/fileseer/internal/chunk"
	"github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/extract"
	"github.com/fileseer/fileseer/internal/namesearch"
	"github.com/fileseer/fileseer/internal/scanner"
	"github.com/fileseer/fileseer/internal/store"
	"github.com/fileseer/fileseer/internal/watcher"
)

// Embedder is the slice of the embed queue the pipeline needs. Both
// calls go through the queue's single consumer, so workers may call
// them concurrently.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
}

// Config wires the coordinator's collaborators.
type Config struct {
	Extractor *extract.Extractor
	Chunker   *chunk.Chunker
	Embedder  Embedder
	Vectors   *store.VectorStore
	Meta      *store.MetaStore
	Names     namesearch.Index
	Scanner   *scanner.Scanner
	Logger    *slog.Logger

	// Workers bounds the extract+chunk stage. Default: NumCPU.
	Workers int
}

// Coordinator runs full scans, watcher event batches, and startup
// reconciliation over one shared set of stores.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	// runMu serializes full runs and event batches so the stores see
	// one writer sequence at a time.
	runMu sync.Mutex

	// statsMu guards the pointer swap, not the tracker itself.
	statsMu sync.Mutex
	current *tracker
}

// New creates a coordinator. All Config fields except Workers are
// required.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Extractor == nil || cfg.Chunker == nil || cfg.Embedder == nil ||
		cfg.Vectors == nil || cfg.Meta == nil || cfg.Names == nil || cfg.Scanner == nil {
		return nil, errors.New(errors.ErrCodeInternal, "index coordinator is missing a dependency", nil)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{cfg: cfg, logger: logger, current: newTracker()}, nil
}

// Stats returns a snapshot of the current or most recent run.
func (c *Coordinator) Stats() IndexingStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.current.snapshot()
}

func (c *Coordinator) beginRun() *tracker {
	t := newTracker()
	c.statsMu.Lock()
	c.current = t
	c.statsMu.Unlock()
	return t
}

// IndexFolder scans root and indexes everything it finds. Files
// committed before a cancellation stay committed; the returned stats
// cover whatever was processed.
func (c *Coordinator) IndexFolder(ctx context.Context, root string) (IndexingStats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	t := c.beginRun()
	defer t.finish()

	results, err := c.cfg.Scanner.Scan(ctx, root)
	if err != nil {
		return t.snapshot(), err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for r := range results {
		if r.Err != nil {
			c.logger.Warn("scan error", slog.String("error", r.Err.Error()))
			continue
		}
		file := r.File
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			c.processFile(gctx, t, file)
			return nil
		})
	}

	runErr := g.Wait()
	c.persist()

	stats := t.snapshot()
	c.logger.Info("indexing run finished",
		slog.Int("processed", stats.Processed),
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("elapsed", stats.Elapsed))

	if runErr != nil && runErr != context.Canceled {
		return stats, runErr
	}
	return stats, ctx.Err()
}

// processFile runs one file through the pipeline to a terminal state.
// Terminal errors land in the tracker; nothing here is fatal to the run.
func (c *Coordinator) processFile(ctx context.Context, t *tracker, file *scanner.FileInfo) {
	state := c.indexOne(ctx, t, file)
	c.logger.Debug("file processed",
		slog.String("path", file.Path),
		slog.String("state", state.String()))
}

func (c *Coordinator) indexOne(ctx context.Context, t *tracker, file *scanner.FileInfo) fileState {
	t.discovered(string(file.Category))

	// The filename index covers every discovered file, content-indexed
	// or not, and updates before the content pipeline can fail.
	if err := c.cfg.Names.Add(namesearch.Entry{
		Path:         file.Path,
		Name:         file.Name,
		Category:     string(file.Category),
		Size:         file.Size,
		LastModified: file.ModTime,
	}); err != nil {
		c.logger.Warn("filename index update failed",
			slog.String("path", file.Path), slog.String("error", err.Error()))
	}

	if file.ContentType == extract.TypeUnsupported {
		t.skipped()
		return stateSkipped
	}

	if unchanged, err := c.isUnchanged(ctx, file.Path); err == nil && unchanged {
		t.skipped()
		return stateSkipped
	}

	content, err := c.cfg.Extractor.Extract(ctx, file.Path)
	if err != nil {
		if ctx.Err() != nil {
			t.skipped()
			return stateSkipped
		}
		t.failed(file.Path, err)
		return stateFailed
	}

	var state fileState
	switch content.Type {
	case extract.TypeText:
		state = c.indexText(ctx, t, file, content)
	case extract.TypeImage:
		state = c.indexImage(ctx, t, file, content)
	default:
		t.skipped()
		state = stateSkipped
	}
	return state
}

// isUnchanged recomputes the content hash from bytes and compares it
// with the stored one. The file-record store answers first; the vector
// tables are the fallback when records are missing.
func (c *Coordinator) isUnchanged(ctx context.Context, path string) (bool, error) {
	hash, err := extract.HashFile(path)
	if err != nil {
		return false, err
	}

	stored, ok, err := c.cfg.Meta.HashForPath(ctx, path)
	if err == nil && ok {
		return stored == hash, nil
	}

	if docs := c.cfg.Vectors.Documents(); docs != nil {
		if stored, ok := docs.HashForPath(path); ok {
			return stored == hash, nil
		}
	}
	if images := c.cfg.Vectors.Images(); images != nil {
		if stored, ok := images.HashForPath(path); ok {
			return stored == hash, nil
		}
	}
	return false, nil
}

func (c *Coordinator) indexText(ctx context.Context, t *tracker, file *scanner.FileInfo, content *extract.Content) fileState {
	chunks := c.cfg.Chunker.Chunk(content.Text)

	table := c.cfg.Vectors.Documents()
	if table == nil {
		t.failed(file.Path, errors.New(errors.ErrCodeSchemaMismatch, "document table is unavailable", nil))
		return stateFailed
	}

	if len(chunks) == 0 {
		// Empty documents keep a record so unchanged-hash dedup works,
		// with any stale vectors removed.
		table.Delete(file.Path)
		if err := c.commitRecord(ctx, file, content, 0); err != nil {
			t.failed(file.Path, err)
			return stateFailed
		}
		t.stored(file.Path, "text", 0)
		return stateStored
	}

	rows, err := c.embedChunks(ctx, file.Path, content, chunks)
	if err != nil {
		if ctx.Err() != nil {
			t.skipped()
			return stateSkipped
		}
		t.failed(file.Path, err)
		return stateFailed
	}

	if err := table.Upsert(file.Path, rows); err != nil {
		t.failed(file.Path, err)
		return stateFailed
	}
	if err := c.commitRecord(ctx, file, content, len(rows)); err != nil {
		t.failed(file.Path, err)
		return stateFailed
	}
	t.stored(file.Path, "text", len(rows))
	return stateStored
}

// embedChunks embeds a file's chunks as one batch, falling back to
// chunk-at-a-time when the batch fails. A file commits only while at
// least half its chunks embed; past that threshold nothing commits.
func (c *Coordinator) embedChunks(ctx context.Context, path string, content *extract.Content, chunks []chunk.Chunk) ([]store.Row, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	vectors, err := c.cfg.Embedder.EmbedTexts(ctx, texts)
	if err == nil {
		rows := make([]store.Row, len(chunks))
		for i, ch := range chunks {
			rows[i] = store.Row{
				Path:         path,
				ChunkID:      ch.ID,
				Vector:       vectors[i],
				ContentHash:  content.Hash,
				LastModified: content.ModTime,
			}
		}
		return rows, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rows []store.Row
	var failed int
	var lastErr error
	for _, ch := range chunks {
		vecs, err := c.cfg.Embedder.EmbedTexts(ctx, []string{ch.Content})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			lastErr = err
			continue
		}
		rows = append(rows, store.Row{
			Path:         path,
			ChunkID:      ch.ID,
			Vector:       vecs[0],
			ContentHash:  content.Hash,
			LastModified: content.ModTime,
		})
	}

	if failed*2 > len(chunks) {
		return nil, errors.New(errors.ErrCodeIndexFailed,
			"too many chunks failed to embed", lastErr).
			WithDetail("failed", strconv.Itoa(failed)).
			WithDetail("total", strconv.Itoa(len(chunks)))
	}
	if failed > 0 {
		c.logger.Warn("dropped chunks that failed to embed",
			slog.String("path", path),
			slog.Int("failed", failed),
			slog.Int("total", len(chunks)))
	}
	return rows, nil
}

func (c *Coordinator) indexImage(ctx context.Context, t *tracker, file *scanner.FileInfo, content *extract.Content) fileState {
	table := c.cfg.Vectors.Images()
	if table == nil {
		t.failed(file.Path, errors.New(errors.ErrCodeSchemaMismatch, "image table is unavailable", nil))
		return stateFailed
	}

	vector, err := c.cfg.Embedder.EmbedImage(ctx, content.Data)
	if err != nil {
		if ctx.Err() != nil {
			t.skipped()
			return stateSkipped
		}
		t.failed(file.Path, err)
		return stateFailed
	}

	row := store.Row{
		Path:         file.Path,
		ChunkID:      0,
		Vector:       vector,
		ContentHash:  content.Hash,
		LastModified: content.ModTime,
		Width:        content.Width,
		Height:       content.Height,
	}
	if err := table.Upsert(file.Path, []store.Row{row}); err != nil {
		t.failed(file.Path, err)
		return stateFailed
	}
	if err := c.commitRecord(ctx, file, content, 1); err != nil {
		t.failed(file.Path, err)
		return stateFailed
	}
	t.stored(file.Path, "image", 1)
	return stateStored
}

func (c *Coordinator) commitRecord(ctx context.Context, file *scanner.FileInfo, content *extract.Content, chunkCount int) error {
	return c.cfg.Meta.Upsert(ctx, store.FileRecord{
		Path:        file.Path,
		ContentHash: content.Hash,
		Category:    string(file.Category),
		Modality:    content.Type.String(),
		Size:        content.Size,
		ModTime:     content.ModTime,
		ChunkCount:  chunkCount,
		IndexedAt:   time.Now(),
	})
}

// removePath propagates a deletion to all three stores.
func (c *Coordinator) removePath(ctx context.Context, t *tracker, path string) {
	removed := c.cfg.Vectors.Delete(path)
	if err := c.cfg.Meta.Delete(ctx, path); err != nil {
		c.logger.Warn("cannot delete file record",
			slog.String("path", path), slog.String("error", err.Error()))
	}
	if err := c.cfg.Names.Remove(path); err != nil {
		c.logger.Warn("cannot remove filename entry",
			slog.String("path", path), slog.String("error", err.Error()))
	}
	t.deleted()
	c.logger.Debug("path removed from index",
		slog.String("path", path), slog.Int("rows", removed))
}

// HandleEvents applies one debounced watcher batch. Events for
// directories fan out: a deleted directory removes every indexed path
// under it, a created one is scanned.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.statsMu.Lock()
	t := c.current
	c.statsMu.Unlock()

	for _, ev := range events {
		select {
		case <-ctx.Done():
			c.persist()
			return ctx.Err()
		default:
		}

		switch {
		case ev.IsDir && ev.Operation == watcher.OpDelete:
			c.removeTree(ctx, t, ev.Path)
		case ev.IsDir:
			c.indexSubtree(ctx, t, ev.Path)
		case ev.Operation == watcher.OpDelete:
			c.removePath(ctx, t, ev.Path)
		default:
			c.indexPath(ctx, t, ev.Path)
		}
	}

	c.persist()
	return nil
}

// indexPath stats a single path and runs it through the pipeline.
func (c *Coordinator) indexPath(ctx context.Context, t *tracker, path string) {
	info, err := os.Lstat(path)
	if err != nil {
		// Gone between the event and now: treat as a delete.
		if os.IsNotExist(err) {
			c.removePath(ctx, t, path)
			return
		}
		t.failed(path, err)
		return
	}
	if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		return
	}

	c.processFile(ctx, t, &scanner.FileInfo{
		Path:        path,
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Category:    extract.CategoryForPath(path),
		ContentType: extract.DetectContentType(path),
	})
}

// removeTree removes every indexed path under dir.
func (c *Coordinator) removeTree(ctx context.Context, t *tracker, dir string) {
	paths, err := c.cfg.Meta.Paths(ctx)
	if err != nil {
		c.logger.Warn("cannot list file records for tree removal",
			slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) {
			c.removePath(ctx, t, p)
		}
	}
}

// indexSubtree scans a newly created directory.
func (c *Coordinator) indexSubtree(ctx context.Context, t *tracker, dir string) {
	results, err := c.cfg.Scanner.Scan(ctx, dir)
	if err != nil {
		c.logger.Warn("cannot scan new directory",
			slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	for r := range results {
		if r.Err != nil {
			continue
		}
		c.processFile(ctx, t, r.File)
	}
}

// Reconcile compares the file-record store against the live tree under
// root and applies the difference: deletions first, then changed and
// new files. Run it once at startup before live watching begins.
func (c *Coordinator) Reconcile(ctx context.Context, root string) (IndexingStats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	t := c.beginRun()
	defer t.finish()

	records, err := c.cfg.Meta.Records(ctx)
	if err != nil {
		return t.snapshot(), err
	}
	recorded := make(map[string]store.FileRecord, len(records))
	for _, rec := range records {
		recorded[rec.Path] = rec
	}

	results, err := c.cfg.Scanner.Scan(ctx, root)
	if err != nil {
		return t.snapshot(), err
	}
	current := make(map[string]*scanner.FileInfo)
	for r := range results {
		if r.Err != nil || r.File == nil {
			continue
		}
		current[r.File.Path] = r.File
	}

	var gone, changed []string
	for path, rec := range recorded {
		file, ok := current[path]
		if !ok {
			gone = append(gone, path)
			continue
		}
		// Second precision: filesystem mtime resolution varies.
		if file.Size != rec.Size || !file.ModTime.Truncate(time.Second).Equal(rec.ModTime.Truncate(time.Second)) {
			changed = append(changed, path)
		}
	}
	var added []string
	for path := range current {
		if _, ok := recorded[path]; !ok {
			added = append(added, path)
		}
	}
	sort.Strings(gone)
	sort.Strings(changed)
	sort.Strings(added)

	for _, path := range gone {
		if ctx.Err() != nil {
			break
		}
		c.removePath(ctx, t, path)
	}
	for _, path := range append(changed, added...) {
		if ctx.Err() != nil {
			break
		}
		c.processFile(ctx, t, current[path])
	}

	c.persist()

	stats := t.snapshot()
	if stats.Processed > 0 || stats.Deleted > 0 {
		c.logger.Info("startup reconciliation finished",
			slog.Int("deleted", stats.Deleted),
			slog.Int("processed", stats.Processed))
	}
	return stats, ctx.Err()
}

// Clear empties the vector tables, the file records, and the filename
// index.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	var firstErr error
	if err := c.cfg.Vectors.Clear(); err != nil {
		firstErr = err
	}
	if err := c.cfg.Meta.Clear(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.cfg.Names.Clear(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.statsMu.Lock()
	c.current = newTracker()
	c.current.finish()
	c.statsMu.Unlock()
	return firstErr
}

// persist flushes the vector tables and the filename snapshot.
func (c *Coordinator) persist() {
	if err := c.cfg.Vectors.Save(); err != nil {
		c.logger.Warn("cannot save vector store", slog.String("error", err.Error()))
	}
	if err := c.cfg.Names.Save(); err != nil {
		c.logger.Warn("cannot save filename index", slog.String("error", err.Error()))
	}
}
