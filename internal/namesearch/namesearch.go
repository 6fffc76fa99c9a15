// Package namesearch indexes file names for approximate-match lookup.
//
// Matching happens on the lowercased name stem (extension stripped), so
// "Report.PDF" and "report.pdf" are the same key and a typo'd query
// still lands. Two backends implement the Index interface: the default
// BK-tree gives exact bounded edit-distance listing, the bleve backend
// gives relevance-scored fuzzy ranking. They are not numerically
// equivalent; the config picks one.
package namesearch

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fileseer/fileseer/internal/config"
	"github.com/fileseer/fileseer/internal/errors"
)

// Entry is one indexed file name with its display metadata.
type Entry struct {
	Path         string
	Name         string
	Category     string
	Size         int64
	LastModified time.Time
}

// Match is one search hit. Distance is the edit distance between the
// query stem and the matched stem; Score is backend-specific (the
// BK-tree derives it from distance, bleve reports relevance).
type Match struct {
	Entry
	Distance int
	Score    float64
}

// Index is the filename index contract shared by both backends.
type Index interface {
	// Add inserts or replaces the entry keyed by its path.
	Add(entry Entry) error

	// Remove deletes the entry for path. Unknown paths are a no-op.
	Remove(path string) error

	// Search returns entries whose stem is within maxDistance of the
	// query stem, optionally restricted to the given categories.
	Search(query string, maxDistance int, categories []string, limit int) ([]Match, error)

	// Len reports the number of indexed paths.
	Len() int

	// Clear drops every entry, in memory and on disk.
	Clear() error

	// Save persists the index. A no-op for backends that write through.
	Save() error

	Close() error
}

// Backend names.
const (
	BackendBKTree = "bktree"
	BackendBleve  = "bleve"
)

// New builds the configured backend rooted under dataDir.
func New(cfg config.FilenameConfig, dataDir string) (Index, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendBKTree:
		return OpenBKTreeIndex(filepath.Join(dataDir, "filenames.gob"))
	case BackendBleve:
		return OpenBleveIndex(filepath.Join(dataDir, "filenames.bleve"))
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			"unknown filename index backend: "+cfg.Backend, nil).
			WithSuggestion(`use "bktree" or "bleve"`)
	}
}

// Stem lowercases a file name and strips its extension. Dotfiles like
// ".gitconfig" keep their name rather than collapsing to "".
func Stem(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ToLower(filepath.Base(name))
	ext := filepath.Ext(name)
	if ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// categoryAllowed checks the optional category filter.
func categoryAllowed(category string, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// sortMatches orders by distance, then score descending, then name and
// path ascending so equal hits rank deterministically.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].Path < matches[j].Path
	})
}
