package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps a static embedder and counts backend calls.
type countingEmbedder struct {
	*StaticTextEmbedder
	embeds  atomic.Int64
	batches atomic.Int64
}

func newCountingEmbedder(dims int) *countingEmbedder {
	return &countingEmbedder{StaticTextEmbedder: NewStaticTextEmbedder(dims)}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds.Add(1)
	return c.StaticTextEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	c.embeds.Add(int64(len(texts)))
	return c.StaticTextEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsBackend(t *testing.T) {
	inner := newCountingEmbedder(128)
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	v1, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.embeds.Load())
}

func TestCachedEmbedder_BatchOnlySendsMisses(t *testing.T) {
	inner := newCountingEmbedder(128)
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	// Given one text already cached
	warm, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)
	require.Equal(t, int64(1), inner.embeds.Load())

	// When a batch mixes the cached text with new ones
	vecs, err := cached.EmbedBatch(ctx, []string{"cold one", "warm", "cold two"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Then only the two misses reached the backend
	assert.Equal(t, int64(3), inner.embeds.Load())
	assert.Equal(t, warm, vecs[1])
}

func TestCachedEmbedder_AllHitsNoBatchCall(t *testing.T) {
	inner := newCountingEmbedder(128)
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"a1", "b2"})
	require.NoError(t, err)
	require.Equal(t, int64(1), inner.batches.Load())

	_, err = cached.EmbedBatch(ctx, []string{"a1", "b2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batches.Load())
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := newCountingEmbedder(64)
	cached := NewCachedEmbedder(inner, 2)
	defer cached.Close()
	ctx := context.Background()

	_, err := cached.Embed(ctx, "one")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "two")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "three")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())

	// "one" was evicted, embedding it again hits the backend
	_, err = cached.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, int64(4), inner.embeds.Load())
}

func TestCachedEmbedder_PassThroughMetadata(t *testing.T) {
	inner := newCountingEmbedder(96)
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()

	assert.Equal(t, 96, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
}
