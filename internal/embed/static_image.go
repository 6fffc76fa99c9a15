package embed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	// Decoder registrations for the formats the indexer accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fileseer/fileseer/internal/errors"
)

// StaticImageEmbedder produces deterministic image vectors from a
// quantized color histogram over a coarse spatial grid. The text tower
// hashes query tokens into the same space and additionally projects
// recognized color words onto the histogram bins they describe, so
// "red sunset" has some pull toward predominantly red images even
// without a learned model.
type StaticImageEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ ImageEmbedder = (*StaticImageEmbedder)(nil)

const (
	// colorBins quantizes each RGB channel into this many levels.
	colorBins = 8
	// gridCells splits the image into gridCells x gridCells regions.
	gridCells = 4
	// colorWordWeight is the histogram-bin boost per recognized color word.
	colorWordWeight = 0.5
)

// colorNames maps query words to representative RGB values, quantized
// into histogram bins by the text tower.
var colorNames = map[string][3]uint8{
	"red":    {220, 40, 40},
	"orange": {240, 140, 30},
	"yellow": {235, 220, 50},
	"green":  {50, 170, 70},
	"blue":   {50, 90, 210},
	"purple": {140, 60, 180},
	"pink":   {235, 130, 180},
	"brown":  {130, 85, 50},
	"black":  {15, 15, 15},
	"white":  {245, 245, 245},
	"gray":   {128, 128, 128},
	"grey":   {128, 128, 128},
}

// NewStaticImageEmbedder creates a static image embedder with the given
// vector width. Non-positive dims falls back to DefaultImageDimensions.
func NewStaticImageEmbedder(dims int) *StaticImageEmbedder {
	if dims <= 0 {
		dims = DefaultImageDimensions
	}
	return &StaticImageEmbedder{dims: dims}
}

// EmbedImage decodes the image and builds its histogram vector.
func (e *StaticImageEmbedder) EmbedImage(_ context.Context, data []byte) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.New(errors.ErrCodeEmbedderUnavailable, "static image embedder is closed", nil)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(errors.ErrCodeImageDecode, "failed to decode image", err)
	}

	vec := make([]float32, e.dims)
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New(errors.ErrCodeImageDecode, "image has zero area", nil)
	}

	// Sample at most ~64 pixels per grid cell; huge images do not need a
	// per-pixel pass to produce a stable histogram.
	stepX := max(1, width/(gridCells*8))
	stepY := max(1, height/(gridCells*8))

	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			cellX := (x - bounds.Min.X) * gridCells / width
			cellY := (y - bounds.Min.Y) * gridCells / height
			key := binKey(uint8(r>>8), uint8(g>>8), uint8(b>>8), cellX, cellY)
			vec[hashToIndex(key, e.dims)]++
		}
	}

	return normalizeVector(vec), nil
}

// EmbedText projects a query string into the image vector space.
func (e *StaticImageEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.New(errors.ErrCodeEmbedderUnavailable, "static image embedder is closed", nil)
	}

	vec := make([]float32, e.dims)
	for _, tok := range tokenize(text) {
		vec[hashToIndex(tok, e.dims)] += tokenWeight

		rgb, ok := colorNames[tok]
		if !ok {
			continue
		}
		// Spread the color word over every spatial cell: the query does
		// not say where in the frame the color appears.
		for cy := 0; cy < gridCells; cy++ {
			for cx := 0; cx < gridCells; cx++ {
				key := binKey(rgb[0], rgb[1], rgb[2], cx, cy)
				vec[hashToIndex(key, e.dims)] += colorWordWeight
			}
		}
	}

	if strings.TrimSpace(text) == "" {
		return vec, nil
	}
	return normalizeVector(vec), nil
}

func (e *StaticImageEmbedder) Dimensions() int { return e.dims }

func (e *StaticImageEmbedder) ModelName() string { return "static-image" }

func (e *StaticImageEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *StaticImageEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// binKey names a quantized color bucket within a spatial cell.
func binKey(r, g, b uint8, cellX, cellY int) string {
	q := 256 / colorBins
	return fmt.Sprintf("c%d.%d:%d,%d,%d", cellX, cellY, int(r)/q, int(g)/q, int(b)/q)
}
