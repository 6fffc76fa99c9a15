// Package store persists the two vector tables (documents and images)
// and the SQLite file-record database that backs change detection.
//
// Each table is an HNSW graph with a gob sidecar carrying row metadata.
// Rows are grouped by file path: Upsert replaces every row of a path
// under one write lock, so readers never observe a file half-indexed.
package store

import (
	goerrors "errors"
	"math"
	"syscall"
	"time"
)

// TableKind names one of the two vector tables.
type TableKind string

const (
	TableDocuments TableKind = "documents"
	TableImages    TableKind = "images"
)

// Row is one vector with its provenance, as written by the indexer.
type Row struct {
	Path        string
	ChunkID     int
	Vector      []float32
	ContentHash string

	// LastModified is the source file's mtime at indexing time.
	LastModified time.Time

	// Width and Height are set for image rows, zero otherwise.
	Width  int
	Height int
}

// QueryResult is one scored row returned by Table.Query.
type QueryResult struct {
	Path        string
	ChunkID     int
	Score       float32
	ContentHash string

	LastModified time.Time
	Width        int
	Height       int
}

// TableStats summarizes a table for the stats surface.
type TableStats struct {
	Rows  int
	Paths int

	// Orphans counts lazily deleted graph nodes awaiting compaction.
	Orphans int

	Dimensions int
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps cosine distance (0..2) onto a 0..1 similarity.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}

// timeFromNanos converts persisted unix nanos back to a time, keeping
// the zero value zero.
func timeFromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// isDiskFull detects ENOSPC anywhere in the error chain.
func isDiskFull(err error) bool {
	return goerrors.Is(err, syscall.ENOSPC)
}
