// Package chunk splits extracted text into embedding-sized pieces.
//
// Chunks target a size band in characters: paragraphs are packed
// together until the band's upper bound would be exceeded, and
// oversized paragraphs are split at sentence boundaries. Chunk IDs are
// positional, so re-chunking unchanged text yields identical IDs.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size band defaults, in characters.
const (
	DefaultMinChunkSize = 500
	DefaultMaxChunkSize = 1500
	DefaultMaxChunks    = 100
)

// Chunk is one embeddable unit of a document.
type Chunk struct {
	// ID is the zero-based position of the chunk within its document.
	ID int
	// Content is the chunk text.
	Content string
}

// Options configures a Chunker.
type Options struct {
	MinChunkSize int // Lower bound of the size band (default: 500)
	MaxChunkSize int // Upper bound of the size band (default: 1500)
	MaxChunks    int // Hard cap on chunks per document (default: 100)
}

// Chunker splits plain text into chunks.
type Chunker struct {
	options Options
}

var (
	// Matches paragraph breaks: a blank line, possibly with stray spaces
	paragraphBreakPattern = regexp.MustCompile(`\n[ \t]*\n+`)

	// Matches sentence ends followed by whitespace
	sentenceEndPattern = regexp.MustCompile(`[.!?][)"']*\s+`)
)

// New creates a chunker with default options.
func New() *Chunker {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a chunker with custom options.
func NewWithOptions(opts Options) *Chunker {
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.MaxChunkSize < opts.MinChunkSize {
		opts.MaxChunkSize = opts.MinChunkSize
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	return &Chunker{options: opts}
}

// Chunk splits text into chunks within the configured size band.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := paragraphBreakPattern.Split(text, -1)

	var pieces []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) <= c.options.MaxChunkSize {
			pieces = append(pieces, p)
			continue
		}
		pieces = append(pieces, c.splitOversized(p)...)
	}

	var chunks []Chunk
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{ID: len(chunks), Content: current.String()})
		current.Reset()
	}

	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+2+len(piece) > c.options.MaxChunkSize {
			flush()
		}
		if len(chunks) >= c.options.MaxChunks {
			break
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
	}
	if len(chunks) < c.options.MaxChunks {
		flush()
	}

	// Merge a trailing fragment below the band into its predecessor
	if n := len(chunks); n >= 2 && len(chunks[n-1].Content) < c.options.MinChunkSize {
		merged := chunks[n-2].Content + "\n\n" + chunks[n-1].Content
		if len(merged) <= c.options.MaxChunkSize {
			chunks[n-2].Content = merged
			chunks = chunks[:n-1]
		}
	}

	return chunks
}

// splitOversized splits a paragraph longer than the band at sentence
// boundaries, falling back to hard cuts for unbroken runs.
func (c *Chunker) splitOversized(p string) []string {
	var out []string
	var current strings.Builder

	ends := sentenceEndPattern.FindAllStringIndex(p, -1)
	prev := 0
	var sentences []string
	for _, loc := range ends {
		sentences = append(sentences, p[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(p) {
		sentences = append(sentences, p[prev:])
	}

	for _, s := range sentences {
		for len(s) > c.options.MaxChunkSize {
			// No sentence boundary in range: hard cut at a rune boundary
			if current.Len() > 0 {
				out = append(out, strings.TrimSpace(current.String()))
				current.Reset()
			}
			cut := c.options.MaxChunkSize
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			out = append(out, strings.TrimSpace(s[:cut]))
			s = s[cut:]
		}
		if current.Len()+len(s) > c.options.MaxChunkSize {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(s)
	}
	if strings.TrimSpace(current.String()) != "" {
		out = append(out, strings.TrimSpace(current.String()))
	}

	return out
}
