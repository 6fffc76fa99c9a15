package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/fileseer/fileseer/internal/errors"
)

// StaticTextEmbedder generates deterministic embeddings without any
// external service. Tokens and character trigrams are hashed into a
// fixed-width vector, so identical text always maps to the identical
// vector. Quality is far below a learned model but it works offline,
// which makes it the fallback backend and the default for tests.
type StaticTextEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ TextEmbedder = (*StaticTextEmbedder)(nil)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// englishStopWords are dropped before hashing so vectors reflect content
// words rather than filler.
var englishStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "to": true,
	"was": true, "were": true, "will": true, "with": true,
}

// NewStaticTextEmbedder creates a static embedder producing vectors of
// the given width. Non-positive dims falls back to DefaultTextDimensions.
func NewStaticTextEmbedder(dims int) *StaticTextEmbedder {
	if dims <= 0 {
		dims = DefaultTextDimensions
	}
	return &StaticTextEmbedder{dims: dims}
}

// Embed generates a deterministic embedding for the text.
func (e *StaticTextEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.New(errors.ErrCodeEmbedderUnavailable, "static embedder is closed", nil)
	}
	return hashEmbedding(text, e.dims), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticTextEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (e *StaticTextEmbedder) Dimensions() int { return e.dims }

func (e *StaticTextEmbedder) ModelName() string { return "static" }

func (e *StaticTextEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *StaticTextEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// hashEmbedding builds the shared token+trigram hash vector used by the
// static text embedder and the static image text tower.
func hashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	if strings.TrimSpace(text) == "" {
		return vec
	}

	tokens := tokenize(text)
	for _, tok := range tokens {
		vec[hashToIndex(tok, dims)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, gram := range extractNgrams(normalized, ngramSize) {
		vec[hashToIndex(gram, dims)] += ngramWeight
	}

	return normalizeVector(vec)
}

// tokenize lowercases, splits camelCase and snake_case, and drops stop
// words so "userProfile.md" and "user profile" land near each other.
func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	var tokens []string
	for _, r := range raw {
		for _, part := range splitCamelCase(r) {
			part = strings.ToLower(part)
			if len(part) > 1 && !englishStopWords[part] {
				tokens = append(tokens, part)
			}
		}
	}
	return tokens
}

// splitCamelCase splits at lower-to-upper transitions: "fooBar" becomes
// ["foo", "Bar"]. Runs of capitals stay together.
func splitCamelCase(s string) []string {
	var parts []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// normalizeForNgrams keeps only lowercased letters and digits.
func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractNgrams returns all n-character sliding windows.
func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	grams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		grams = append(grams, text[i:i+n])
	}
	return grams
}

// hashToIndex maps a string to a vector index with FNV-64.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
