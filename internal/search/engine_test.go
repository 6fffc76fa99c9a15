package search

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/embed"
	seerrors "github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/namesearch"
	"github.com/fileseer/fileseer/internal/store"
)

const (
	engineTextDims  = 64
	engineImageDims = 128
)

type engineFixture struct {
	engine  *Engine
	vectors *store.VectorStore
	meta    *store.MetaStore
	names   namesearch.Index
	queue   *embed.Queue
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	dataDir := t.TempDir()

	vectors, err := store.OpenVectorStore(dataDir, engineTextDims, engineImageDims, nil)
	require.NoError(t, err)
	meta, err := store.OpenMetaStore(dataDir)
	require.NoError(t, err)
	names := namesearch.NewBKTreeIndex()

	queue := embed.NewQueue(
		embed.NewStaticTextEmbedder(engineTextDims),
		embed.NewStaticImageEmbedder(engineImageDims),
		0,
	)
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)

	engine, err := NewEngine(Config{
		Search: config.SearchConfig{
			Limit:    10,
			MinScore: 0.95,
		},
		Filename: config.FilenameConfig{MaxDistance: 2},
		Embedder: queue,
		Vectors:  vectors,
		Names:    names,
		Meta:     meta,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		queue.Close()
		meta.Close()
		vectors.Close()
	})
	return &engineFixture{engine: engine, vectors: vectors, meta: meta, names: names, queue: queue}
}

// seedDoc indexes chunk texts for path into every store, the way the
// indexing pipeline would.
func (f *engineFixture) seedDoc(t *testing.T, path string, chunks []string, category string, size int64) {
	t.Helper()
	ctx := context.Background()
	modTime := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	vecs, err := f.queue.EmbedTexts(ctx, chunks)
	require.NoError(t, err)

	rows := make([]store.Row, len(chunks))
	for i, vec := range vecs {
		rows[i] = store.Row{
			Path:         path,
			ChunkID:      i,
			Vector:       vec,
			ContentHash:  "hash-" + path,
			LastModified: modTime,
		}
	}
	require.NoError(t, f.vectors.Documents().Upsert(path, rows))

	require.NoError(t, f.meta.Upsert(ctx, store.FileRecord{
		Path:        path,
		ContentHash: "hash-" + path,
		Category:    category,
		Modality:    "text",
		Size:        size,
		ModTime:     modTime,
		ChunkCount:  len(chunks),
		IndexedAt:   time.Now(),
	}))

	require.NoError(t, f.names.Add(namesearch.Entry{
		Path:         path,
		Name:         pathBase(path),
		Category:     category,
		Size:         size,
		LastModified: modTime,
	}))
}

func pathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEngine_EmptyQueryRejected(t *testing.T) {
	f := newEngineFixture(t)

	for _, mode := range []Mode{ModeSemantic, ModeFilename, ModeCombined} {
		_, err := f.engine.Search(context.Background(), "   ", mode, Options{})
		var serr *seerrors.SeerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, seerrors.ErrCodeQueryEmpty, serr.Code)
	}
}

func TestEngine_UnknownModeRejected(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Search(context.Background(), "anything", Mode("regex"), Options{})

	var serr *seerrors.SeerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, seerrors.ErrCodeInvalidMode, serr.Code)
}

func TestEngine_SemanticFindsMatchingContent(t *testing.T) {
	f := newEngineFixture(t)
	query := "quarterly revenue grew across all regions"
	f.seedDoc(t, "/docs/report.md", []string{query}, "document", 42)
	f.seedDoc(t, "/docs/garden.md", []string{"gardening tips for early spring"}, "document", 17)

	resp, err := f.engine.Search(context.Background(), query, ModeSemantic, Options{})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	got := resp.Results[0]
	assert.Equal(t, "/docs/report.md", got.Path)
	assert.Greater(t, got.Score, 0.99)
	assert.Equal(t, ModalityText, got.Modality)
	// Metadata comes from the record store.
	assert.Equal(t, "document", got.Category)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, ModeSemantic, resp.Mode)
	assert.Equal(t, query, resp.Query)
}

func TestEngine_SemanticCollapsesChunksPerPath(t *testing.T) {
	f := newEngineFixture(t)
	query := "database migration checklist"
	f.seedDoc(t, "/docs/runbook.md", []string{
		"introduction and scope of this runbook",
		query,
		"appendix with escalation contacts",
	}, "document", 100)

	resp, err := f.engine.Search(context.Background(), query, ModeSemantic, Options{MinScore: -1})
	require.NoError(t, err)

	// All three chunks can match, but the path appears once with its
	// best chunk.
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/docs/runbook.md", resp.Results[0].Path)
	assert.Equal(t, 1, resp.Results[0].ChunkID)
	assert.Greater(t, resp.Results[0].Score, 0.99)
}

func TestEngine_SemanticEmptyIndex(t *testing.T) {
	f := newEngineFixture(t)

	resp, err := f.engine.Search(context.Background(), "anything at all", ModeSemantic, Options{})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
}

func TestEngine_MinScoreThreshold(t *testing.T) {
	f := newEngineFixture(t)
	f.seedDoc(t, "/docs/notes.md", []string{"weekly standup notes"}, "document", 9)

	// Given an unrelated query, the default floor filters the hit
	resp, err := f.engine.Search(context.Background(), "volcanic rock formations", ModeSemantic, Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	// When the floor is disabled, the hit comes back with its raw score
	resp, err = f.engine.Search(context.Background(), "volcanic rock formations", ModeSemantic, Options{MinScore: -1})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestEngine_FilenameFuzzyMatch(t *testing.T) {
	f := newEngineFixture(t)
	modTime := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.names.Add(namesearch.Entry{
		Path: "/docs/readme.md", Name: "readme.md",
		Category: "document", Size: 5, LastModified: modTime,
	}))

	resp, err := f.engine.Search(context.Background(), "raedme", ModeFilename, Options{})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	got := resp.Results[0]
	assert.Equal(t, "/docs/readme.md", got.Path)
	assert.Equal(t, ModalityFilename, got.Modality)
	assert.Equal(t, 1, got.Distance)
	assert.Equal(t, "document", got.Category)
	assert.Equal(t, int64(5), got.Size)
	assert.Equal(t, modTime, got.ModTime)
}

func TestEngine_FilenameMaxDistanceOverride(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.names.Add(namesearch.Entry{Path: "/docs/readme.md", Name: "readme.md"}))

	resp, err := f.engine.Search(context.Background(), "raedme", ModeFilename, Options{MaxDistance: 0})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
}

func TestEngine_CombinedFusesRankings(t *testing.T) {
	f := newEngineFixture(t)
	f.seedDoc(t, "/notes/guide.md", []string{"guide"}, "document", 11)
	require.NoError(t, f.names.Add(namesearch.Entry{Path: "/notes/guida.md", Name: "guida.md", Category: "document"}))

	resp, err := f.engine.Search(context.Background(), "guide", ModeCombined, Options{})
	require.NoError(t, err)

	// guide.md tops both lists, so its normalized contributions sum.
	// guida.md only matches by name at distance one, which min-max
	// normalizes to the bottom of its list.
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "/notes/guide.md", resp.Results[0].Path)
	assert.InDelta(t, 2.0, resp.Results[0].Score, 1e-6)
	assert.Equal(t, ModalityText, resp.Results[0].Modality)

	assert.Equal(t, "/notes/guida.md", resp.Results[1].Path)
	assert.InDelta(t, 0.0, resp.Results[1].Score, 1e-6)
	assert.Equal(t, ModalityFilename, resp.Results[1].Modality)
}

func TestEngine_CombinedFilenameOnlyQuery(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.names.Add(namesearch.Entry{Path: "/docs/budget.xlsx", Name: "budget.xlsx"}))

	resp, err := f.engine.Search(context.Background(), "budget", ModeCombined, Options{})
	require.NoError(t, err)

	// An unweighted default: a name-only match keeps its full
	// normalized score instead of being scaled below semantic hits.
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/docs/budget.xlsx", resp.Results[0].Path)
	assert.Equal(t, ModalityFilename, resp.Results[0].Modality)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
}

func TestEngine_CrossModalIncludesImages(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	data := solidPNG(t, color.RGBA{R: 200, G: 30, B: 30, A: 255})
	vec, err := f.queue.EmbedImage(ctx, data)
	require.NoError(t, err)
	require.NoError(t, f.vectors.Images().Upsert("/pics/stop-sign.png", []store.Row{{
		Path: "/pics/stop-sign.png", ChunkID: 0, Vector: vec,
		ContentHash: "hash-img", Width: 8, Height: 8,
	}}))

	// Without cross-modal the text query never reaches the image table
	resp, err := f.engine.Search(ctx, "red", ModeSemantic, Options{MinScore: -1})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	// With it, the color-word query pulls in the matching image
	resp, err = f.engine.Search(ctx, "red", ModeSemantic, Options{MinScore: -1, CrossModal: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/pics/stop-sign.png", resp.Results[0].Path)
	assert.Equal(t, ModalityImage, resp.Results[0].Modality)
	assert.Greater(t, resp.Results[0].Score, 0.0)
}

func TestEngine_LimitTruncates(t *testing.T) {
	f := newEngineFixture(t)
	for _, name := range []string{"plan.md", "plen.md", "plon.md", "plun.md"} {
		require.NoError(t, f.names.Add(namesearch.Entry{Path: "/n/" + name, Name: name}))
	}

	resp, err := f.engine.Search(context.Background(), "plan", ModeFilename, Options{Limit: 2})
	require.NoError(t, err)

	assert.Len(t, resp.Results, 2)
}

func TestNewEngine_MissingDependency(t *testing.T) {
	_, err := NewEngine(Config{})

	var serr *seerrors.SeerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, seerrors.ErrCodeInternal, serr.Code)
}
