package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/fileseer/fileseer/internal/errors"
)

// Table is one persistent vector table over a coder/hnsw graph.
//
// String row identities map to uint64 graph keys. Deletion is lazy: the
// node stays in the graph and only the key mappings go away, which
// sidesteps coder/hnsw's broken-graph bug when the last node is removed.
// Query compensates by over-fetching past the orphan count.
type Table struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	name TableKind
	path string
	dims int

	rows    map[uint64]rowMeta
	byPath  map[string][]uint64
	nextKey uint64
	dirty   bool
	closed  bool
}

// rowMeta is the persisted per-row metadata. Vectors live in the graph.
type rowMeta struct {
	Path         string
	ChunkID      int
	ContentHash  string
	LastModified int64 // unix nanos, gob-friendly
	Width        int
	Height       int
}

// tableSidecar is the gob payload written next to the graph file.
type tableSidecar struct {
	Dimensions int
	NextKey    uint64
	Rows       map[uint64]rowMeta
}

const (
	hnswM        = 16
	hnswEfSearch = 20
)

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = hnswM
	g.EfSearch = hnswEfSearch
	g.Ml = 0.25
	return g
}

// OpenTable opens or creates the table at path (e.g.
// <data>/vectors/documents.hnsw). An existing sidecar whose dimensions
// disagree with dims fails with a schema error; the caller decides
// whether to rebuild.
func OpenTable(path string, name TableKind, dims int) (*Table, error) {
	if dims <= 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("table %s: dimensions must be positive, got %d", name, dims), nil)
	}

	t := &Table{
		graph:  newGraph(),
		name:   name,
		path:   path,
		dims:   dims,
		rows:   make(map[uint64]rowMeta),
		byPath: make(map[string][]uint64),
	}

	if _, err := os.Stat(path + ".meta"); os.IsNotExist(err) {
		return t, nil
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) load() error {
	metaFile, err := os.Open(t.path + ".meta")
	if err != nil {
		return errors.New(errors.ErrCodeStoreIO,
			fmt.Sprintf("table %s: cannot open sidecar", t.name), err)
	}
	defer metaFile.Close()

	var sidecar tableSidecar
	if err := gob.NewDecoder(metaFile).Decode(&sidecar); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("table %s: sidecar is unreadable", t.name), err).
			WithSuggestion("run: fileseer clear")
	}

	if sidecar.Dimensions != t.dims {
		return errors.New(errors.ErrCodeSchemaMismatch,
			fmt.Sprintf("table %s: index has %d dimensions, config expects %d",
				t.name, sidecar.Dimensions, t.dims), nil).
			WithSuggestion("run: fileseer clear")
	}

	graphFile, err := os.Open(t.path)
	if err != nil {
		return errors.New(errors.ErrCodeStoreIO,
			fmt.Sprintf("table %s: cannot open graph file", t.name), err)
	}
	defer graphFile.Close()

	// coder/hnsw Import needs an io.ByteReader.
	if err := t.graph.Import(bufio.NewReader(graphFile)); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("table %s: graph file is unreadable", t.name), err).
			WithSuggestion("run: fileseer clear")
	}

	t.rows = sidecar.Rows
	t.nextKey = sidecar.NextKey
	t.byPath = make(map[string][]uint64)
	for key, meta := range t.rows {
		t.byPath[meta.Path] = append(t.byPath[meta.Path], key)
	}
	return nil
}

// Upsert replaces every row stored for path with rows, atomically with
// respect to concurrent queries. An empty rows slice is a plain delete.
func (t *Table) Upsert(path string, rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "table is closed", nil)
	}
	for _, row := range rows {
		if len(row.Vector) != t.dims {
			return errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("table %s: row for %s has %d dimensions, expected %d",
					t.name, path, len(row.Vector), t.dims), nil)
		}
	}

	t.removePathLocked(path)

	keys := make([]uint64, 0, len(rows))
	for _, row := range rows {
		key := t.nextKey
		t.nextKey++

		vec := make([]float32, len(row.Vector))
		copy(vec, row.Vector)
		normalizeInPlace(vec)
		t.graph.Add(hnsw.MakeNode(key, vec))

		t.rows[key] = rowMeta{
			Path:         row.Path,
			ChunkID:      row.ChunkID,
			ContentHash:  row.ContentHash,
			LastModified: row.LastModified.UnixNano(),
			Width:        row.Width,
			Height:       row.Height,
		}
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		t.byPath[path] = keys
	}
	t.dirty = true
	return nil
}

// Delete removes every row for path. Returns the number of rows removed.
func (t *Table) Delete(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0
	}
	n := t.removePathLocked(path)
	if n > 0 {
		t.dirty = true
	}
	return n
}

func (t *Table) removePathLocked(path string) int {
	keys := t.byPath[path]
	for _, key := range keys {
		delete(t.rows, key)
	}
	delete(t.byPath, path)
	return len(keys)
}

// Query returns up to k rows scoring at least minScore, ordered by
// descending score with path then chunk id breaking ties.
func (t *Table) Query(vector []float32, k int, minScore float32) ([]QueryResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, errors.New(errors.ErrCodeStoreIO, "table is closed", nil)
	}
	if len(vector) != t.dims {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("table %s: query has %d dimensions, expected %d",
				t.name, len(vector), t.dims), nil)
	}
	if k <= 0 || t.graph.Len() == 0 {
		return []QueryResult{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	// Orphaned nodes still occupy graph slots; fetch past them so lazy
	// deletions cannot starve the result set.
	fetch := k + (t.graph.Len() - len(t.rows))
	if fetch > t.graph.Len() {
		fetch = t.graph.Len()
	}

	nodes := t.graph.Search(query, fetch)

	results := make([]QueryResult, 0, k)
	for _, node := range nodes {
		meta, ok := t.rows[node.Key]
		if !ok {
			continue
		}
		score := distanceToScore(t.graph.Distance(query, node.Value))
		if score < minScore {
			continue
		}
		results = append(results, queryResultFrom(meta, score))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// HashForPath returns the content hash stored for path, if any.
func (t *Table) HashForPath(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := t.byPath[path]
	if len(keys) == 0 {
		return "", false
	}
	return t.rows[keys[0]].ContentHash, true
}

// Contains reports whether any row exists for path.
func (t *Table) Contains(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byPath[path]) > 0
}

// Paths returns every indexed path, for reconciliation sweeps.
func (t *Table) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.byPath))
	for p := range t.byPath {
		paths = append(paths, p)
	}
	return paths
}

// Stats reports row, path, and orphan counts.
func (t *Table) Stats() TableStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return TableStats{Dimensions: t.dims}
	}
	return TableStats{
		Rows:       len(t.rows),
		Paths:      len(t.byPath),
		Orphans:    t.graph.Len() - len(t.rows),
		Dimensions: t.dims,
	}
}

// Save writes the graph and sidecar atomically (temp file + rename).
// A clean table is skipped.
func (t *Table) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "table is closed", nil)
	}
	if !t.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return storeWriteError(t.name, "create directory", err)
	}

	tmpGraph := t.path + ".tmp"
	file, err := os.Create(tmpGraph)
	if err != nil {
		return storeWriteError(t.name, "create graph file", err)
	}
	if err := t.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpGraph)
		return storeWriteError(t.name, "export graph", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpGraph)
		return storeWriteError(t.name, "close graph file", err)
	}

	tmpMeta := t.path + ".meta.tmp"
	metaFile, err := os.Create(tmpMeta)
	if err != nil {
		os.Remove(tmpGraph)
		return storeWriteError(t.name, "create sidecar", err)
	}
	sidecar := tableSidecar{
		Dimensions: t.dims,
		NextKey:    t.nextKey,
		Rows:       t.rows,
	}
	if err := gob.NewEncoder(metaFile).Encode(sidecar); err != nil {
		metaFile.Close()
		os.Remove(tmpGraph)
		os.Remove(tmpMeta)
		return storeWriteError(t.name, "encode sidecar", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(tmpGraph)
		os.Remove(tmpMeta)
		return storeWriteError(t.name, "close sidecar", err)
	}

	// Graph first, sidecar second. A crash between the two leaves a
	// graph with a stale sidecar, which load treats as authoritative
	// row metadata; orphaned graph nodes are harmless.
	if err := os.Rename(tmpGraph, t.path); err != nil {
		os.Remove(tmpGraph)
		os.Remove(tmpMeta)
		return storeWriteError(t.name, "rename graph file", err)
	}
	if err := os.Rename(tmpMeta, t.path+".meta"); err != nil {
		os.Remove(tmpMeta)
		return storeWriteError(t.name, "rename sidecar", err)
	}

	t.dirty = false
	return nil
}

// Clear drops every row and removes the on-disk files.
func (t *Table) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.New(errors.ErrCodeStoreIO, "table is closed", nil)
	}
	t.graph = newGraph()
	t.rows = make(map[uint64]rowMeta)
	t.byPath = make(map[string][]uint64)
	t.nextKey = 0
	t.dirty = false

	for _, p := range []string{t.path, t.path + ".meta"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return storeWriteError(t.name, "remove index file", err)
		}
	}
	return nil
}

// Close persists pending changes and releases the graph.
func (t *Table) Close() error {
	if err := t.Save(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.graph = nil
	return nil
}

func queryResultFrom(meta rowMeta, score float32) QueryResult {
	return QueryResult{
		Path:         meta.Path,
		ChunkID:      meta.ChunkID,
		Score:        score,
		ContentHash:  meta.ContentHash,
		LastModified: timeFromNanos(meta.LastModified),
		Width:        meta.Width,
		Height:       meta.Height,
	}
}

func storeWriteError(name TableKind, op string, err error) error {
	if isDiskFull(err) {
		return errors.New(errors.ErrCodeDiskFull,
			fmt.Sprintf("table %s: %s: disk full", name, op), err)
	}
	return errors.New(errors.ErrCodeStoreIO,
		fmt.Sprintf("table %s: failed to %s", name, op), err)
}
