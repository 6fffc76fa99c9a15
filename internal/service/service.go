// Package service assembles the storage, indexing, and query components
// behind one facade shared by the CLI and the MCP server. Everything is
// constructed once in Open and passed by reference; there are no
// package-level singletons.
package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fileseer/fileseer/internal/chunk"
	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/embed"
	"github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/extract"
	"github.com/fileseer/fileseer/internal/index"
	"github.com/fileseer/fileseer/internal/namesearch"
	"github.com/fileseer/fileseer/internal/scanner"
	"github.com/fileseer/fileseer/internal/search"
	"github.com/fileseer/fileseer/internal/store"
	"github.com/fileseer/fileseer/internal/watcher"
)

// Service owns the index stores, the embed queue, the coordinator, and
// the search engine for one data directory.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	vectors *store.VectorStore
	meta    *store.MetaStore
	names   namesearch.Index
	queue   *embed.Queue
	coord   *index.Coordinator
	engine  *search.Engine

	lock      *embed.FileLock
	provider  embed.ProviderType
	stopQueue context.CancelFunc
}

// Open builds a Service from configuration. It creates the data
// directory, takes the instance lock, resolves the embedding backends,
// opens every store, and wires the coordinator and engine.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeDataDir, "cannot create data directory: "+dataDir, err)
	}

	lock := embed.NewFileLock(dataDir)
	held, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, errors.New(errors.ErrCodeDataDir,
			"data directory is locked by another fileseer process", nil).
			WithSuggestion("stop the other instance or point --config at a different data_dir")
	}

	s := &Service{cfg: cfg, logger: logger, lock: lock}
	if err := s.open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) open(ctx context.Context) error {
	cfg := s.cfg

	embedders, err := embed.NewFromConfig(ctx, cfg.Embeddings, s.logger)
	if err != nil {
		return err
	}
	s.provider = embedders.Provider

	s.queue = embed.NewQueue(embedders.Text, embedders.Image, cfg.Embeddings.QueueSize)
	queueCtx, cancel := context.WithCancel(context.Background())
	s.stopQueue = cancel
	s.queue.Start(queueCtx)

	s.vectors, err = store.OpenVectorStore(cfg.Paths.DataDir,
		embedders.Text.Dimensions(), embedders.Image.Dimensions(), s.logger)
	if err != nil {
		return err
	}
	s.meta, err = store.OpenMetaStore(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	s.names, err = namesearch.New(cfg.Filename, cfg.Paths.DataDir)
	if err != nil {
		return err
	}

	s.coord, err = index.New(index.Config{
		Extractor: extract.New(extract.Options{
			MaxFileSize: int64(cfg.Extraction.MaxFileSizeMB) * 1024 * 1024,
			MaxPDFChars: cfg.Extraction.MaxPDFChars,
		}),
		Chunker: chunk.NewWithOptions(chunk.Options{
			MinChunkSize: cfg.Chunking.MinChunkSize,
			MaxChunkSize: cfg.Chunking.MaxChunkSize,
			MaxChunks:    cfg.Chunking.MaxChunks,
		}),
		Embedder: s.queue,
		Vectors:  s.vectors,
		Meta:     s.meta,
		Names:    s.names,
		Scanner:  scanner.New(s.scanOptions(), s.logger),
		Logger:   s.logger,
		Workers:  cfg.Performance.Workers,
	})
	if err != nil {
		return err
	}

	s.engine, err = search.NewEngine(search.Config{
		Search:   cfg.Search,
		Filename: cfg.Filename,
		Embedder: s.queue,
		Vectors:  s.vectors,
		Names:    s.names,
		Meta:     s.meta,
		Logger:   s.logger,
	})
	return err
}

func (s *Service) scanOptions() scanner.Options {
	return scanner.Options{
		ExcludeDirs:   s.cfg.Paths.Exclude,
		IncludeHidden: s.cfg.Paths.IncludeHidden,
		MaxFileSize:   int64(s.cfg.Extraction.MaxFileSizeMB) * 1024 * 1024,
	}
}

// Provider reports which embedding backend was resolved at startup.
func (s *Service) Provider() embed.ProviderType { return s.provider }

// Config returns the configuration the service was opened with.
func (s *Service) Config() *config.Config { return s.cfg }

// IndexFolder walks a directory tree and indexes every supported file.
func (s *Service) IndexFolder(ctx context.Context, path string) (index.IndexingStats, error) {
	return s.coord.IndexFolder(ctx, path)
}

// Stats returns the stats of the current or most recent indexing run.
func (s *Service) Stats() index.IndexingStats {
	return s.coord.Stats()
}

// ClearIndex empties both vector tables and the file-record store. The
// filename index is kept; ClearFilenameIndex drops that one.
func (s *Service) ClearIndex(ctx context.Context) error {
	if err := s.vectors.Clear(); err != nil {
		return err
	}
	return s.meta.Clear(ctx)
}

// ClearFilenameIndex drops every filename entry.
func (s *Service) ClearFilenameIndex() error {
	return s.names.Clear()
}

// ClearAll resets every store, including the filename index.
func (s *Service) ClearAll(ctx context.Context) error {
	return s.coord.Clear(ctx)
}

// ScanDirectoryForFilenames walks a tree and registers file names in
// the filename index without extracting or embedding anything. Per-file
// problems are collected rather than aborting the walk.
func (s *Service) ScanDirectoryForFilenames(ctx context.Context, path string) (int, []string) {
	results, err := scanner.New(s.scanOptions(), s.logger).Scan(ctx, path)
	if err != nil {
		return 0, []string{err.Error()}
	}

	added := 0
	var errs []string
	for res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err.Error())
			continue
		}
		file := res.File
		err := s.names.Add(namesearch.Entry{
			Path:         file.Path,
			Name:         file.Name,
			Category:     string(file.Category),
			Size:         file.Size,
			LastModified: file.ModTime,
		})
		if err != nil {
			errs = append(errs, file.Path+": "+err.Error())
			continue
		}
		added++
	}
	if err := s.names.Save(); err != nil {
		errs = append(errs, err.Error())
	}
	return added, errs
}

// Search answers a query in the given mode.
func (s *Service) Search(ctx context.Context, query string, mode search.Mode, opts search.Options) (*search.Response, error) {
	return s.engine.Search(ctx, query, mode, opts)
}

// SemanticSearch answers a natural-language query over file content.
func (s *Service) SemanticSearch(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	return s.engine.Search(ctx, query, search.ModeSemantic, opts)
}

// FilenameSearch answers an approximate file-name query.
func (s *Service) FilenameSearch(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	return s.engine.Search(ctx, query, search.ModeFilename, opts)
}

// FilenameCount reports how many paths the filename index holds.
func (s *Service) FilenameCount() int {
	return s.names.Len()
}

// VectorDBStats reports row counts for the two vector tables.
func (s *Service) VectorDBStats() (text, image, total int) {
	stats := s.vectors.Stats()
	return stats.Documents.Rows, stats.Images.Rows, stats.Documents.Rows + stats.Images.Rows
}

// Watch reconciles the index against the tree at path and then applies
// debounced filesystem events until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, path string) error {
	if _, err := s.coord.Reconcile(ctx, path); err != nil {
		return err
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow:  s.cfg.DebounceDuration(),
		EventBufferSize: s.cfg.Watcher.QueueSize,
		ExcludeDirs:     s.cfg.Paths.Exclude,
		IncludeHidden:   s.cfg.Paths.IncludeHidden,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx, path); err != nil {
		return err
	}
	defer w.Stop()

	s.logger.Info("watching", slog.String("path", path))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			start := time.Now()
			if err := s.coord.HandleEvents(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("event batch failed", slog.String("error", err.Error()))
				continue
			}
			s.logger.Debug("event batch applied",
				slog.Int("events", len(batch)),
				slog.Duration("elapsed", time.Since(start)))
		case werr, ok := <-w.Errors():
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", slog.String("error", werr.Error()))
		}
	}
}

// Close releases every resource. Safe to call on a partially opened
// service.
func (s *Service) Close() error {
	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}

	if s.queue != nil {
		keep(s.queue.Close())
	}
	if s.stopQueue != nil {
		s.stopQueue()
	}
	if s.names != nil {
		keep(s.names.Close())
	}
	if s.meta != nil {
		keep(s.meta.Close())
	}
	if s.vectors != nil {
		keep(s.vectors.Close())
	}
	if s.lock != nil && s.lock.IsLocked() {
		keep(s.lock.Unlock())
	}
	return first
}
