// Package search answers queries over the vector tables and the
// filename index. Three modes share one engine: semantic over document
// (and optionally image) vectors, filename over the fuzzy name index,
// and combined, which fuses the two with min-max normalized weighted
// scores.
package search

import (
	"time"
)

// Mode selects how a query is answered.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeFilename Mode = "filename"
	ModeCombined Mode = "combined"
)

// Modality tags which index produced a result.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityImage    Modality = "image"
	ModalityFilename Modality = "filename"
)

// modalityPriority breaks score ties: text beats image beats filename.
func modalityPriority(m Modality) int {
	switch m {
	case ModalityText:
		return 0
	case ModalityImage:
		return 1
	default:
		return 2
	}
}

// Options configures one query.
type Options struct {
	// Limit caps the result count. Zero uses the configured default.
	Limit int

	// MinScore drops semantic hits below this similarity. Negative
	// disables the floor; zero uses the configured default.
	MinScore float64

	// MaxDistance is the filename edit-distance radius. Negative uses
	// the configured default.
	MaxDistance int

	// Categories restricts filename results to these categories.
	Categories []string

	// CrossModal also queries the image table with text queries.
	CrossModal bool
}

// Result is one search hit.
type Result struct {
	// Path is the absolute file path.
	Path string `json:"path"`
	// Score is the mode-specific relevance in [0,1], already fused for
	// combined queries.
	Score float64 `json:"score"`
	// Modality says which index matched.
	Modality Modality `json:"modality"`
	// ChunkID is the best-matching chunk for text hits.
	ChunkID int `json:"chunk_id,omitempty"`
	// Distance is the name edit distance for filename hits.
	Distance int `json:"distance,omitempty"`

	// Category, Size and ModTime describe the file when known.
	Category string    `json:"category,omitempty"`
	Size     int64     `json:"size,omitempty"`
	ModTime  time.Time `json:"mod_time,omitempty"`
}

// Response wraps one answered query.
type Response struct {
	Query   string        `json:"query"`
	Mode    Mode          `json:"mode"`
	Results []Result      `json:"results"`
	Elapsed time.Duration `json:"elapsed"`
}
