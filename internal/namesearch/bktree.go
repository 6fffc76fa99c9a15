package namesearch

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/fileseer/fileseer/internal/errors"
)

// BKTreeIndex is the default filename backend: a BK-tree keyed by name
// stem, with exact bounded edit-distance search.
//
// Nodes live in an arena and reference each other by index, never by
// pointer, so the tree serializes trivially and concurrent readers walk
// it without chasing mutable links. Deleting a path only empties the
// node's path set; structural nodes are never removed.
//
// OSA distance does not satisfy the triangle inequality, which BK-tree
// pruning relies on. Traversal therefore widens the pruning radius by
// one and filters candidates by exact distance afterward, trading a few
// extra node visits for correct results.
type BKTreeIndex struct {
	mu      sync.RWMutex
	nodes   []bkNode
	entries map[string]Entry  // path -> entry
	stems   map[string]int    // stem -> node index
	path    string            // snapshot file, empty for in-memory
	dirty   bool
	closed  bool
}

type bkNode struct {
	Stem     string
	Paths    []string
	Children map[int]int // distance -> node index
}

const pruneSlack = 1

// NewBKTreeIndex creates an empty in-memory index.
func NewBKTreeIndex() *BKTreeIndex {
	return &BKTreeIndex{
		entries: make(map[string]Entry),
		stems:   make(map[string]int),
	}
}

// OpenBKTreeIndex opens the index backed by the gob snapshot at path,
// loading it when present.
func OpenBKTreeIndex(path string) (*BKTreeIndex, error) {
	idx := NewBKTreeIndex()
	idx.path = path

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot open filename index", err)
	}
	defer file.Close()

	var entries []Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "filename index is unreadable", err).
			WithSuggestion("run: fileseer clear --filenames")
	}
	for _, e := range entries {
		idx.addLocked(e)
	}
	idx.dirty = false
	return idx, nil
}

// Add inserts or replaces the entry for its path.
func (t *BKTreeIndex) Add(entry Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	if entry.Path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "filename entry has no path", nil)
	}
	if entry.Name == "" {
		entry.Name = filepath.Base(entry.Path)
	}
	t.addLocked(entry)
	t.dirty = true
	return nil
}

func (t *BKTreeIndex) addLocked(entry Entry) {
	if _, exists := t.entries[entry.Path]; exists {
		t.removeLocked(entry.Path)
	}
	t.entries[entry.Path] = entry

	stem := Stem(entry.Name)
	if nodeIdx, ok := t.stems[stem]; ok {
		t.nodes[nodeIdx].Paths = append(t.nodes[nodeIdx].Paths, entry.Path)
		return
	}

	newIdx := len(t.nodes)
	t.nodes = append(t.nodes, bkNode{
		Stem:     stem,
		Paths:    []string{entry.Path},
		Children: make(map[int]int),
	})
	t.stems[stem] = newIdx

	if newIdx == 0 {
		return
	}

	// Walk from the root to the insertion point.
	cur := 0
	for {
		d := osaDistance(stem, t.nodes[cur].Stem)
		child, ok := t.nodes[cur].Children[d]
		if !ok {
			t.nodes[cur].Children[d] = newIdx
			return
		}
		cur = child
	}
}

// Remove deletes the entry for path.
func (t *BKTreeIndex) Remove(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	if t.removeLocked(path) {
		t.dirty = true
	}
	return nil
}

func (t *BKTreeIndex) removeLocked(path string) bool {
	entry, ok := t.entries[path]
	if !ok {
		return false
	}
	delete(t.entries, path)

	stem := Stem(entry.Name)
	nodeIdx, ok := t.stems[stem]
	if !ok {
		return true
	}
	paths := t.nodes[nodeIdx].Paths
	for i, p := range paths {
		if p == path {
			t.nodes[nodeIdx].Paths = append(paths[:i], paths[i+1:]...)
			break
		}
	}
	return true
}

// Search lists entries whose stem is within maxDistance of the query
// stem. Distance 0 is exact match. Results order by distance, then name
// and path.
func (t *BKTreeIndex) Search(query string, maxDistance int, categories []string, limit int) ([]Match, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	queryStem := Stem(query)
	if queryStem == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "filename query is empty", nil)
	}
	if maxDistance < 0 {
		maxDistance = 0
	}
	if len(t.nodes) == 0 {
		return []Match{}, nil
	}

	radius := maxDistance + pruneSlack
	var matches []Match

	stack := []int{0}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.nodes[cur]

		d := osaDistance(queryStem, node.Stem)
		if d <= maxDistance {
			for _, p := range node.Paths {
				entry := t.entries[p]
				if !categoryAllowed(entry.Category, categories) {
					continue
				}
				matches = append(matches, Match{
					Entry:    entry,
					Distance: d,
					Score:    1.0 / float64(1+d),
				})
			}
		}

		for childDist, childIdx := range node.Children {
			if childDist >= d-radius && childDist <= d+radius {
				stack = append(stack, childIdx)
			}
		}
	}

	sortMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Len reports the number of indexed paths.
func (t *BKTreeIndex) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear drops every entry and deletes the snapshot file.
func (t *BKTreeIndex) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	t.nodes = nil
	t.entries = make(map[string]Entry)
	t.stems = make(map[string]int)
	t.dirty = false

	if t.path != "" {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			return errors.New(errors.ErrCodeStoreIO, "cannot remove filename snapshot", err)
		}
	}
	return nil
}

// Save writes the gob snapshot atomically. Clean or in-memory indexes
// are skipped.
func (t *BKTreeIndex) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "filename index is closed", nil)
	}
	if t.path == "" || !t.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot create filename index directory", err)
	}

	entries := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}

	tmp := t.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot create filename snapshot", err)
	}
	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		file.Close()
		os.Remove(tmp)
		return errors.New(errors.ErrCodeStoreIO, "cannot encode filename snapshot", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return errors.New(errors.ErrCodeStoreIO, "cannot close filename snapshot", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return errors.New(errors.ErrCodeStoreIO, "cannot replace filename snapshot", err)
	}
	t.dirty = false
	return nil
}

// Close persists pending changes and shuts the index.
func (t *BKTreeIndex) Close() error {
	if err := t.Save(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

var _ Index = (*BKTreeIndex)(nil)
