// Package scanner walks a directory tree and streams the files worth
// indexing. Filtering happens here so the rest of the pipeline only
// ever sees candidate paths: hidden entries, excluded directory names,
// oversized files, and anything matched by a .seerignore file at the
// scan root are dropped during the walk.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/fileseer/fileseer/internal/errors"
	"github.com/fileseer/fileseer/internal/extract"
)

// IgnoreFileName is looked for at the scan root; its patterns use
// gitignore syntax.
const IgnoreFileName = ".seerignore"

// defaultResultBuffer sizes the result channel.
const defaultResultBuffer = 256

// FileInfo describes one discovered file.
type FileInfo struct {
	// Path is the absolute path of the file.
	Path string
	// Name is the base name.
	Name string
	Size int64
	// ModTime is the file's last modification time.
	ModTime time.Time
	// Category classifies the file by extension for the filename index.
	Category extract.Category
	// ContentType says whether content indexing applies (text, image,
	// or unsupported for filename-only files).
	ContentType extract.ContentType
}

// Result is one item on the scan stream: a file or a walk error.
type Result struct {
	File *FileInfo
	Err  error
}

// Options configures a scan.
type Options struct {
	// ExcludeDirs lists directory names skipped wherever they appear.
	ExcludeDirs []string

	// IncludeHidden descends into dot-directories and emits dotfiles
	// when true.
	IncludeHidden bool

	// MaxFileSize skips files larger than this many bytes. Zero means
	// no limit.
	MaxFileSize int64

	// FollowSymlinks emits symlinked files when true. Symlinked
	// directories are never followed.
	FollowSymlinks bool
}

// Scanner streams indexable files from a root directory.
type Scanner struct {
	opts     Options
	excluded map[string]bool
	logger   *slog.Logger
}

// New creates a scanner with the given options.
func New(opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	excluded := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		excluded[d] = true
	}
	return &Scanner{opts: opts, excluded: excluded, logger: logger}
}

// Scan walks root and streams discovered files. The channel closes when
// the walk finishes or ctx is cancelled. Unreadable entries are skipped,
// not fatal.
func (s *Scanner) Scan(ctx context.Context, root string) (<-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, "cannot resolve scan root", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "scan root does not exist: "+absRoot, err)
		}
		return nil, errors.New(errors.ErrCodeFilePermission, "cannot stat scan root", err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "scan root is not a directory: "+absRoot, nil)
	}

	ignorer := s.loadIgnoreFile(absRoot)

	results := make(chan Result, defaultResultBuffer)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, ignorer, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, ignorer *gitignore.GitIgnore, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			s.logger.Debug("skipping unreadable entry",
				slog.String("path", path), slog.String("error", walkErr.Error()))
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if s.skipDir(name) {
				return filepath.SkipDir
			}
			if ignorer != nil && ignorer.MatchesPath(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !s.opts.FollowSymlinks {
			return nil
		}
		if ignorer != nil && ignorer.MatchesPath(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
			s.logger.Debug("skipping oversized file",
				slog.String("path", path), slog.Int64("size", info.Size()))
			return nil
		}

		file := &FileInfo{
			Path:        path,
			Name:        name,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Category:    extract.CategoryForPath(path),
			ContentType: extract.DetectContentType(path),
		}

		select {
		case results <- Result{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Err: err}:
		default:
		}
	}
}

func (s *Scanner) skipDir(name string) bool {
	if s.excluded[name] {
		return true
	}
	return !s.opts.IncludeHidden && strings.HasPrefix(name, ".")
}

// loadIgnoreFile compiles the .seerignore at root, if present. A broken
// ignore file is logged and skipped rather than failing the scan.
func (s *Scanner) loadIgnoreFile(absRoot string) *gitignore.GitIgnore {
	path := filepath.Join(absRoot, IgnoreFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ignorer, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		s.logger.Warn("cannot parse ignore file",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	return ignorer
}
