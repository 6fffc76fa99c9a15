package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorStore_OpenCreatesLayout(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenVectorStore(dir, 8, 4, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.DirExists(t, filepath.Join(dir, "vectors"))
	require.NotNil(t, s.Documents())
	require.NotNil(t, s.Images())
	assert.Equal(t, 8, s.Documents().Stats().Dimensions)
	assert.Equal(t, 4, s.Images().Stats().Dimensions)
}

func TestVectorStore_DeleteSpansTables(t *testing.T) {
	s, err := OpenVectorStore(t.TempDir(), 8, 4, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Documents().Upsert("/mixed.pdf", []Row{docRow("/mixed.pdf", 0, unitVec(8, 0))}))
	require.NoError(t, s.Images().Upsert("/photo.png", []Row{docRow("/photo.png", 0, unitVec(4, 0))}))

	assert.Equal(t, 1, s.Delete("/mixed.pdf"))
	assert.Equal(t, 1, s.Delete("/photo.png"))
	assert.Equal(t, 0, s.Delete("/photo.png"))
}

func TestVectorStore_SchemaMismatchIsolatedPerTable(t *testing.T) {
	dir := t.TempDir()

	// Given an index written with 8-dim documents and 4-dim images
	s, err := OpenVectorStore(dir, 8, 4, nil)
	require.NoError(t, err)
	require.NoError(t, s.Documents().Upsert("/a.txt", []Row{docRow("/a.txt", 0, unitVec(8, 0))}))
	require.NoError(t, s.Images().Upsert("/a.png", []Row{docRow("/a.png", 0, unitVec(4, 0))}))
	require.NoError(t, s.Close())

	// When reopening with changed document dimensions
	s2, err := OpenVectorStore(dir, 16, 4, nil)
	require.Error(t, err)

	// Then only the documents table is down
	assert.Nil(t, s2.Documents())
	require.NotNil(t, s2.Images())
	assert.Equal(t, 1, s2.Images().Stats().Rows)
	require.NoError(t, s2.Close())
}

func TestVectorStore_StatsAggregates(t *testing.T) {
	s, err := OpenVectorStore(t.TempDir(), 8, 4, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Documents().Upsert("/a.txt", []Row{
		docRow("/a.txt", 0, unitVec(8, 0)),
		docRow("/a.txt", 1, unitVec(8, 1)),
	}))
	require.NoError(t, s.Images().Upsert("/a.png", []Row{docRow("/a.png", 0, unitVec(4, 0))}))

	stats := s.Stats()
	assert.Equal(t, 2, stats.Documents.Rows)
	assert.Equal(t, 1, stats.Documents.Paths)
	assert.Equal(t, 1, stats.Images.Rows)
}

func TestVectorStore_ClearResolvesSchemaMismatch(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenVectorStore(dir, 8, 4, nil)
	require.NoError(t, err)
	require.NoError(t, s.Documents().Upsert("/a.txt", []Row{docRow("/a.txt", 0, unitVec(8, 0))}))
	require.NoError(t, s.Close())

	// Reopen with mismatched dims, then clear the stale files
	s2, err := OpenVectorStore(dir, 16, 4, nil)
	require.Error(t, err)
	require.NoError(t, s2.Clear())
	require.NoError(t, s2.Close())

	// A fresh open at the new dimensions succeeds
	s3, err := OpenVectorStore(dir, 16, 4, nil)
	require.NoError(t, err)
	defer s3.Close()
	assert.NotNil(t, s3.Documents())
}
