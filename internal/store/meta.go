package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fileseer/fileseer/internal/errors"
)

// metaSchemaVersion tracks the files table layout. Bump on any change.
const metaSchemaVersion = 1

// FileRecord is one indexed file's bookkeeping row. The coordinator
// consults it for change detection without touching vector tables.
type FileRecord struct {
	Path        string
	ContentHash string
	Category    string
	Modality    string
	Size        int64
	ModTime     time.Time
	ChunkCount  int
	IndexedAt   time.Time
}

// MetaStore is the SQLite file-record database at <data>/files.db.
type MetaStore struct {
	db   *sql.DB
	path string
}

// OpenMetaStore opens or creates the file-record database under dataDir.
func OpenMetaStore(dataDir string) (*MetaStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeDataDir, "cannot create data directory", err)
	}
	path := filepath.Join(dataDir, "files.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot open file database", err)
	}

	// Single connection: one writer, no lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New(errors.ErrCodeStoreIO, "cannot configure file database", err)
		}
	}

	s := &MetaStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MetaStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS files (
		path         TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT '',
		modality     TEXT NOT NULL DEFAULT '',
		size         INTEGER NOT NULL DEFAULT 0,
		mod_time     INTEGER NOT NULL DEFAULT 0,
		chunk_count  INTEGER NOT NULL DEFAULT 0,
		indexed_at   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_files_hash ON files(content_hash);
	CREATE INDEX IF NOT EXISTS idx_files_category ON files(category);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot create file database schema", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", metaSchemaVersion); err != nil {
			return errors.New(errors.ErrCodeStoreIO, "cannot record schema version", err)
		}
	case err != nil:
		return errors.New(errors.ErrCodeStoreIO, "cannot read schema version", err)
	case version != metaSchemaVersion:
		return errors.New(errors.ErrCodeSchemaMismatch,
			fmt.Sprintf("file database has schema version %d, expected %d", version, metaSchemaVersion), nil).
			WithSuggestion("run: fileseer clear")
	}
	return nil
}

// Upsert writes or replaces the record for rec.Path.
func (s *MetaStore) Upsert(ctx context.Context, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (path, content_hash, category, modality, size, mod_time, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			category     = excluded.category,
			modality     = excluded.modality,
			size         = excluded.size,
			mod_time     = excluded.mod_time,
			chunk_count  = excluded.chunk_count,
			indexed_at   = excluded.indexed_at`,
		rec.Path, rec.ContentHash, rec.Category, rec.Modality,
		rec.Size, rec.ModTime.UnixNano(), rec.ChunkCount, rec.IndexedAt.UnixNano())
	if err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot write file record", err)
	}
	return nil
}

// Get fetches the record for path. Missing paths return (nil, nil).
func (s *MetaStore) Get(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, content_hash, category, modality, size, mod_time, chunk_count, indexed_at
		FROM files WHERE path = ?`, path)

	var rec FileRecord
	var modTime, indexedAt int64
	err := row.Scan(&rec.Path, &rec.ContentHash, &rec.Category, &rec.Modality,
		&rec.Size, &modTime, &rec.ChunkCount, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot read file record", err)
	}
	rec.ModTime = timeFromNanos(modTime)
	rec.IndexedAt = timeFromNanos(indexedAt)
	return &rec, nil
}

// HashForPath returns the stored content hash for path, if present.
func (s *MetaStore) HashForPath(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.New(errors.ErrCodeStoreIO, "cannot read file record", err)
	}
	return hash, true, nil
}

// Delete removes the record for path. Unknown paths are a no-op.
func (s *MetaStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot delete file record", err)
	}
	return nil
}

// Paths lists every recorded path, for reconciliation sweeps.
func (s *MetaStore) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot list file records", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.New(errors.ErrCodeStoreIO, "cannot scan file record", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot list file records", err)
	}
	return paths, nil
}

// Records lists every file record ordered by path, for startup
// reconciliation against the live tree.
func (s *MetaStore) Records(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, content_hash, category, modality, size, mod_time, chunk_count, indexed_at
		FROM files ORDER BY path`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot list file records", err)
	}
	defer rows.Close()

	var recs []FileRecord
	for rows.Next() {
		var rec FileRecord
		var modTime, indexedAt int64
		if err := rows.Scan(&rec.Path, &rec.ContentHash, &rec.Category, &rec.Modality,
			&rec.Size, &modTime, &rec.ChunkCount, &indexedAt); err != nil {
			return nil, errors.New(errors.ErrCodeStoreIO, "cannot scan file record", err)
		}
		rec.ModTime = timeFromNanos(modTime)
		rec.IndexedAt = timeFromNanos(indexedAt)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot list file records", err)
	}
	return recs, nil
}

// Count returns the number of recorded files.
func (s *MetaStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeStoreIO, "cannot count file records", err)
	}
	return n, nil
}

// CountByCategory returns record counts grouped by file category.
func (s *MetaStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM files GROUP BY category")
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot count file records", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, errors.New(errors.ErrCodeStoreIO, "cannot scan category count", err)
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreIO, "cannot count file records", err)
	}
	return counts, nil
}

// Clear deletes every record.
func (s *MetaStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return errors.New(errors.ErrCodeStoreIO, "cannot clear file records", err)
	}
	return nil
}

// Close closes the database.
func (s *MetaStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *MetaStore) Path() string { return s.path }
