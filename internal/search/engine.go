package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/namesearch"
	"github.com/fileseer/fileseer/internal/store"
)

// semanticOverfetch widens vector queries so collapsing chunk hits to
// one-per-path still fills the requested limit.
const semanticOverfetch = 4

// QueryEmbedder is the slice of the embed queue the engine needs for
// query vectors.
type QueryEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImageQuery(ctx context.Context, text string) ([]float32, error)
}

// Config wires the engine's collaborators.
type Config struct {
	Search   config.SearchConfig
	Filename config.FilenameConfig
	Embedder QueryEmbedder
	Vectors  *store.VectorStore
	Names    namesearch.Index
	Meta     *store.MetaStore
	Logger   *slog.Logger
}

// Engine answers queries in all three modes over one set of stores.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an engine. Embedder, Vectors and Names are required.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil || cfg.Vectors == nil || cfg.Names == nil {
		return nil, errors.New(errors.ErrCodeInternal, "search engine is missing a dependency", nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Search answers one query in the given mode. Empty or whitespace-only
// queries fail before any store or embedder is touched.
func (e *Engine) Search(ctx context.Context, query string, mode Mode, opts Options) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "search query is empty", nil)
	}

	start := time.Now()
	limit := e.limit(opts)

	var results []Result
	var err error
	switch mode {
	case ModeSemantic:
		results, err = e.semantic(ctx, query, limit, opts)
	case ModeFilename:
		results, err = e.filename(query, limit, opts)
	case ModeCombined:
		results, err = e.combined(ctx, query, limit, opts)
	default:
		return nil, errors.New(errors.ErrCodeInvalidMode,
			"unknown search mode: "+string(mode), nil).
			WithSuggestion(`use "semantic", "filename", or "combined"`)
	}
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.logger.Debug("query answered",
		slog.String("mode", string(mode)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", elapsed))

	return &Response{
		Query:   query,
		Mode:    mode,
		Results: results,
		Elapsed: elapsed,
	}, nil
}

func (e *Engine) limit(opts Options) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	if e.cfg.Search.Limit > 0 {
		return e.cfg.Search.Limit
	}
	return 20
}

func (e *Engine) minScore(opts Options) float32 {
	if opts.MinScore < 0 {
		return 0
	}
	if opts.MinScore > 0 {
		return float32(opts.MinScore)
	}
	return float32(e.cfg.Search.MinScore)
}

func (e *Engine) maxDistance(opts Options) int {
	if opts.MaxDistance >= 0 {
		return opts.MaxDistance
	}
	return e.cfg.Filename.MaxDistance
}

// semantic embeds the query and searches the document table, collapsing
// chunk hits to the best one per path. With cross-modal enabled the
// image table answers the same text query through the image tower.
func (e *Engine) semantic(ctx context.Context, query string, limit int, opts Options) ([]Result, error) {
	minScore := e.minScore(opts)

	results, err := e.semanticText(ctx, query, limit, minScore)
	if err != nil {
		return nil, err
	}

	if opts.CrossModal || e.cfg.Search.CrossModal {
		imageHits, err := e.semanticImages(ctx, query, limit, minScore)
		if err != nil {
			// Text results still stand when the image side fails.
			e.logger.Warn("cross-modal image query failed", slog.String("error", err.Error()))
		} else {
			results = append(results, imageHits...)
		}
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	e.enrich(ctx, results)
	return results, nil
}

func (e *Engine) semanticText(ctx context.Context, query string, limit int, minScore float32) ([]Result, error) {
	docs := e.cfg.Vectors.Documents()
	if docs == nil {
		return []Result{}, nil
	}

	vecs, err := e.cfg.Embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	hits, err := docs.Query(vecs[0], limit*semanticOverfetch, minScore)
	if err != nil {
		return nil, err
	}
	return collapseByPath(hits, ModalityText), nil
}

func (e *Engine) semanticImages(ctx context.Context, query string, limit int, minScore float32) ([]Result, error) {
	images := e.cfg.Vectors.Images()
	if images == nil {
		return []Result{}, nil
	}

	vec, err := e.cfg.Embedder.EmbedImageQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := images.Query(vec, limit*semanticOverfetch, minScore)
	if err != nil {
		return nil, err
	}
	return collapseByPath(hits, ModalityImage), nil
}

// collapseByPath keeps the best-scoring chunk per path. Store results
// arrive score-descending, so the first hit per path wins.
func collapseByPath(hits []store.QueryResult, modality Modality) []Result {
	seen := make(map[string]bool, len(hits))
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if seen[h.Path] {
			continue
		}
		seen[h.Path] = true
		results = append(results, Result{
			Path:     h.Path,
			Score:    float64(h.Score),
			Modality: modality,
			ChunkID:  h.ChunkID,
			ModTime:  h.LastModified,
		})
	}
	return results
}

// filename answers through the fuzzy name index.
func (e *Engine) filename(query string, limit int, opts Options) ([]Result, error) {
	matches, err := e.cfg.Names.Search(query, e.maxDistance(opts), opts.Categories, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Path:     m.Path,
			Score:    m.Score,
			Modality: ModalityFilename,
			Distance: m.Distance,
			Category: m.Category,
			Size:     m.Size,
			ModTime:  m.LastModified,
		})
	}
	return results, nil
}

// combined fuses the semantic and filename rankings. Each list is
// min-max normalized so the two sources interleave by score alone
// unless the configured weights bias one of them.
func (e *Engine) combined(ctx context.Context, query string, limit int, opts Options) ([]Result, error) {
	semantic, err := e.semantic(ctx, query, limit*2, opts)
	if err != nil {
		return nil, err
	}
	filename, err := e.filename(query, limit*2, opts)
	if err != nil {
		// A query can stem to nothing while still embedding fine, so
		// the semantic side stands on its own then.
		if errors.GetCode(err) != errors.ErrCodeQueryEmpty {
			return nil, err
		}
		filename = nil
	}

	normalizeScores(semantic)
	normalizeScores(filename)

	results := fuse(semantic, filename, fusionWeights{
		Semantic: e.weight(e.cfg.Search.SemanticWeight),
		Filename: e.weight(e.cfg.Search.FilenameWeight),
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// weight treats an unset weight as neutral.
func (e *Engine) weight(v float64) float64 {
	if v > 0 {
		return v
	}
	return 1.0
}

// enrich fills file metadata from the record store, best effort.
func (e *Engine) enrich(ctx context.Context, results []Result) {
	if e.cfg.Meta == nil {
		return
	}
	for i := range results {
		rec, err := e.cfg.Meta.Get(ctx, results[i].Path)
		if err != nil || rec == nil {
			continue
		}
		results[i].Category = rec.Category
		results[i].Size = rec.Size
		results[i].ModTime = rec.ModTime
	}
}
