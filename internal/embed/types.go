// Package embed turns chunk text and image bytes into fixed-width vectors.
//
// Two interfaces cover the two index tables: TextEmbedder for document
// chunks and query strings, ImageEmbedder for raw image bytes plus the
// text tower used by cross-modal queries. Backends are "static"
// (deterministic, offline) and "ollama" (HTTP API). All indexing traffic
// is funneled through the sequential Queue so a backend never sees
// concurrent calls.
package embed

import (
	"context"
	"math"
	"time"
)

// TextEmbedder produces vectors for text. Implementations must be safe
// for concurrent use; the indexing path serializes calls anyway via Queue.
type TextEmbedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the width of vectors this embedder produces.
	Dimensions() int

	// ModelName identifies the model, for cache keys and stats.
	ModelName() string

	// Available reports whether the backend can serve requests right now.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// ImageEmbedder produces vectors for images in a space that also admits
// text, so natural-language queries can be matched against image rows.
type ImageEmbedder interface {
	// EmbedImage generates an embedding for raw image bytes.
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)

	// EmbedText projects a query string into the image vector space.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// Default dimensions for the two tables. Overridable via configuration;
// changing them invalidates existing index files.
const (
	DefaultTextDimensions  = 384
	DefaultImageDimensions = 512
)

// Ollama defaults.
const (
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultTextModel      = "nomic-embed-text"
	DefaultImageModel     = "llava"
	DefaultRequestTimeout = 30 * time.Second

	// ollamaConnectTimeout bounds the reachability probe used by
	// auto-detection. Short on purpose: a cold daemon answering /api/tags
	// takes well under a second.
	ollamaConnectTimeout = 3 * time.Second
)

// normalizeVector scales a vector to unit length in place and returns it.
// Zero vectors are returned unchanged.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
