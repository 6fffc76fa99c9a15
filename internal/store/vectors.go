package store

import (
	"log/slog"
	"os"
	"path/filepath"

	goerrors "errors"

	"github.com/fileseer/fileseer/internal/errors"
)

// VectorStore bundles the documents and images tables under
// <data>/vectors/. A schema mismatch in one table does not take the
// other down: the failed table stays unavailable and its open error is
// reported, while the healthy table keeps serving.
type VectorStore struct {
	dir string

	documents *Table
	images    *Table

	documentsErr error
	imagesErr    error
}

// VectorStoreStats aggregates both tables for the stats surface.
type VectorStoreStats struct {
	Documents TableStats
	Images    TableStats
}

// OpenVectorStore opens both tables under dataDir. The returned error is
// non-nil when any table failed to open; the store is still usable for
// the tables that opened.
func OpenVectorStore(dataDir string, textDims, imageDims int, logger *slog.Logger) (*VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Join(dataDir, "vectors")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeDataDir, "cannot create vectors directory", err)
	}

	s := &VectorStore{dir: dir}
	s.documents, s.documentsErr = OpenTable(filepath.Join(dir, "documents.hnsw"), TableDocuments, textDims)
	s.images, s.imagesErr = OpenTable(filepath.Join(dir, "images.hnsw"), TableImages, imageDims)

	if s.documentsErr != nil {
		logger.Error("documents table unavailable", "error", s.documentsErr)
	}
	if s.imagesErr != nil {
		logger.Error("images table unavailable", "error", s.imagesErr)
	}
	return s, goerrors.Join(s.documentsErr, s.imagesErr)
}

// Table returns the requested table, or the error it failed to open with.
func (s *VectorStore) Table(kind TableKind) (*Table, error) {
	switch kind {
	case TableDocuments:
		if s.documentsErr != nil {
			return nil, s.documentsErr
		}
		return s.documents, nil
	case TableImages:
		if s.imagesErr != nil {
			return nil, s.imagesErr
		}
		return s.images, nil
	default:
		return nil, errors.New(errors.ErrCodeInternal, "unknown table: "+string(kind), nil)
	}
}

// Documents returns the documents table, nil when it failed to open.
func (s *VectorStore) Documents() *Table {
	if s.documentsErr != nil {
		return nil
	}
	return s.documents
}

// Images returns the images table, nil when it failed to open.
func (s *VectorStore) Images() *Table {
	if s.imagesErr != nil {
		return nil
	}
	return s.images
}

// Delete removes path from every healthy table. Returns total rows removed.
func (s *VectorStore) Delete(path string) int {
	n := 0
	if s.documentsErr == nil {
		n += s.documents.Delete(path)
	}
	if s.imagesErr == nil {
		n += s.images.Delete(path)
	}
	return n
}

// Save flushes both tables.
func (s *VectorStore) Save() error {
	var errs []error
	if s.documentsErr == nil {
		errs = append(errs, s.documents.Save())
	}
	if s.imagesErr == nil {
		errs = append(errs, s.images.Save())
	}
	return goerrors.Join(errs...)
}

// Clear wipes both tables, including tables that failed to open: a
// schema mismatch is resolved by deleting the stale files.
func (s *VectorStore) Clear() error {
	var errs []error
	if s.documentsErr == nil {
		errs = append(errs, s.documents.Clear())
	}
	if s.imagesErr == nil {
		errs = append(errs, s.images.Clear())
	}
	for _, name := range []string{"documents.hnsw", "documents.hnsw.meta", "images.hnsw", "images.hnsw.meta"} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return goerrors.Join(errs...)
}

// Stats reports both tables. Failed tables report zero rows.
func (s *VectorStore) Stats() VectorStoreStats {
	var stats VectorStoreStats
	if s.documentsErr == nil {
		stats.Documents = s.documents.Stats()
	}
	if s.imagesErr == nil {
		stats.Images = s.images.Stats()
	}
	return stats
}

// Close flushes and closes both tables.
func (s *VectorStore) Close() error {
	var errs []error
	if s.documentsErr == nil {
		errs = append(errs, s.documents.Close())
	}
	if s.imagesErr == nil {
		errs = append(errs, s.images.Close())
	}
	return goerrors.Join(errs...)
}
