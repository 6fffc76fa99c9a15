package namesearch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fileseer/fileseer/internal/errors"
)

// BleveIndex is the alternative filename backend: an on-disk bleve
// index with fuzzy term queries. Unlike the BK-tree it ranks by
// relevance score, not exact edit distance, and bleve caps fuzziness at
// 2 regardless of the requested radius.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveMaxFuzziness is the ceiling bleve enforces on fuzzy queries.
const bleveMaxFuzziness = 2

// OpenBleveIndex opens or creates the bleve index directory at path.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	var idx bleve.Index
	var err error

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, errors.New(errors.ErrCodeStoreIO, "cannot create filename index directory", mkErr)
		}
		idx, err = bleve.New(path, buildFilenameMapping())
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot open bleve filename index", err).
			WithSuggestion("run: fileseer clear --filenames")
	}
	return &BleveIndex{index: idx, path: path}, nil
}

func buildFilenameMapping() *mapping.IndexMappingImpl {
	// Stems and categories index as single keyword terms so fuzzy and
	// term queries match whole values, not analyzer tokens.
	stemField := bleve.NewTextFieldMapping()
	stemField.Analyzer = keyword.Name

	categoryField := bleve.NewTextFieldMapping()
	categoryField.Analyzer = keyword.Name

	storedText := bleve.NewTextFieldMapping()
	storedText.Index = false

	sizeField := bleve.NewNumericFieldMapping()
	sizeField.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("stem", stemField)
	doc.AddFieldMappingsAt("category", categoryField)
	doc.AddFieldMappingsAt("name", storedText)
	doc.AddFieldMappingsAt("mtime", storedText)
	doc.AddFieldMappingsAt("size", sizeField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// Add indexes or replaces the entry keyed by its path.
func (b *BleveIndex) Add(entry Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	if entry.Path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "filename entry has no path", nil)
	}
	if entry.Name == "" {
		entry.Name = filepath.Base(entry.Path)
	}

	doc := map[string]interface{}{
		"stem":     Stem(entry.Name),
		"name":     entry.Name,
		"category": entry.Category,
		"size":     entry.Size,
		"mtime":    entry.LastModified.Format(time.RFC3339Nano),
	}
	if err := b.index.Index(entry.Path, doc); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot index filename entry", err)
	}
	return nil
}

// Remove deletes the entry for path.
func (b *BleveIndex) Remove(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	if err := b.index.Delete(path); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot remove filename entry", err)
	}
	return nil
}

// Search runs a fuzzy term query on the stem field. The reported
// Distance is recomputed with the exact metric from the stored stem so
// both backends agree on what they display, but filtering and ranking
// here follow bleve's fuzzy semantics.
func (b *BleveIndex) Search(queryStr string, maxDistance int, categories []string, limit int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	queryStem := Stem(queryStr)
	if queryStem == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "filename query is empty", nil)
	}

	fuzziness := maxDistance
	if fuzziness > bleveMaxFuzziness {
		fuzziness = bleveMaxFuzziness
	}
	if fuzziness < 0 {
		fuzziness = 0
	}

	var q query.Query
	if fuzziness == 0 {
		term := bleve.NewTermQuery(queryStem)
		term.SetField("stem")
		q = term
	} else {
		fuzzy := bleve.NewFuzzyQuery(queryStem)
		fuzzy.SetField("stem")
		fuzzy.SetFuzziness(fuzziness)
		q = fuzzy
	}

	if len(categories) > 0 {
		terms := make([]query.Query, 0, len(categories))
		for _, c := range categories {
			term := bleve.NewTermQuery(strings.ToLower(c))
			term.SetField("category")
			terms = append(terms, term)
		}
		q = bleve.NewConjunctionQuery(q, bleve.NewDisjunctionQuery(terms...))
	}

	if limit <= 0 {
		limit = 50
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"stem", "name", "category", "size", "mtime"}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "filename search failed", err)
	}

	matches := make([]Match, 0, len(result.Hits))
	for _, hit := range result.Hits {
		entry := Entry{Path: hit.ID}
		stem := ""
		if v, ok := hit.Fields["stem"].(string); ok {
			stem = v
		}
		if v, ok := hit.Fields["name"].(string); ok {
			entry.Name = v
		}
		if v, ok := hit.Fields["category"].(string); ok {
			entry.Category = v
		}
		if v, ok := hit.Fields["size"].(float64); ok {
			entry.Size = int64(v)
		}
		if v, ok := hit.Fields["mtime"].(string); ok {
			if ts, perr := time.Parse(time.RFC3339Nano, v); perr == nil {
				entry.LastModified = ts
			}
		}
		matches = append(matches, Match{
			Entry:    entry,
			Distance: osaDistance(queryStem, stem),
			Score:    hit.Score,
		})
	}

	sortMatches(matches)
	return matches, nil
}

// Len reports the number of indexed paths.
func (b *BleveIndex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	count, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(count)
}

// Clear closes, deletes, and recreates the on-disk index.
func (b *BleveIndex) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	if err := b.index.Close(); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot close bleve index", err)
	}
	if err := os.RemoveAll(b.path); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot remove bleve index", err)
	}

	idx, err := bleve.New(b.path, buildFilenameMapping())
	if err != nil {
		return errors.New(errors.ErrCodeStoreIO,
			fmt.Sprintf("cannot recreate bleve index at %s", b.path), err)
	}
	b.index = idx
	return nil
}

// Save is a no-op: bleve writes through on every Add/Remove.
func (b *BleveIndex) Save() error { return nil }

// Close shuts the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

var _ Index = (*BleveIndex)(nil)
