// Package extract turns files on disk into indexable content.
//
// Text files are read directly, PDFs are converted to plain text, and
// images are validated and passed through as raw bytes for the image
// embedder. Every extraction carries a SHA-256 content hash so callers
// can skip files whose content has not changed.
package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ledongthuc/pdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	seerrors "github.com/fileseer/fileseer/internal/errors"
)

// ContentType classifies what an extractor produces for a file.
type ContentType int

const (
	// TypeUnsupported means the file is skipped entirely.
	TypeUnsupported ContentType = iota
	// TypeText means the file yields plain text for chunking.
	TypeText
	// TypeImage means the file yields raw bytes for image embedding.
	TypeImage
)

// String returns a string representation of the content type.
func (t ContentType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeImage:
		return "image"
	default:
		return "unsupported"
	}
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true, ".org": true,
	".tex": true, ".csv": true, ".tsv": true, ".log": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".html": true, ".htm": true, ".css": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".java": true,
	".rb": true, ".php": true, ".sh": true, ".sql": true,
	".pdf": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
}

// DetectContentType classifies a path by extension.
func DetectContentType(path string) ContentType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return TypeImage
	case textExtensions[ext]:
		return TypeText
	default:
		return TypeUnsupported
	}
}

// Content is the result of extracting a single file.
type Content struct {
	// Path is the absolute path the content came from.
	Path string
	// Type is the extracted content type.
	Type ContentType
	// Text holds the extracted text for TypeText files.
	Text string
	// Data holds the raw bytes for TypeImage files.
	Data []byte
	// Hash is the SHA-256 hex digest of the raw file bytes.
	Hash string
	// Size is the file size in bytes.
	Size int64
	// ModTime is the file modification time.
	ModTime time.Time
	// Width and Height are set for TypeImage files.
	Width  int
	Height int
}

// Options configures an Extractor.
type Options struct {
	// MaxFileSize skips files larger than this many bytes. Zero disables the check.
	MaxFileSize int64
	// MaxPDFChars truncates extracted PDF text. Zero means 100000.
	MaxPDFChars int
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.MaxPDFChars <= 0 {
		o.MaxPDFChars = 100000
	}
	return o
}

// Extractor reads files and produces indexable content.
type Extractor struct {
	opts Options
}

// New creates an Extractor with the given options.
func New(opts Options) *Extractor {
	return &Extractor{opts: opts.WithDefaults()}
}

// Extract reads the file at path and produces its content.
// Unsupported files return a Content with TypeUnsupported and no error so
// callers can record them as skipped rather than failed.
func (e *Extractor) Extract(ctx context.Context, path string) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, seerrors.New(seerrors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", path), err)
		}
		if os.IsPermission(err) {
			return nil, seerrors.New(seerrors.ErrCodeFilePermission,
				fmt.Sprintf("permission denied: %s", path), err)
		}
		return nil, seerrors.ExtractionError(fmt.Sprintf("stat failed: %s", path), err)
	}

	ctype := DetectContentType(path)
	if ctype == TypeUnsupported {
		return &Content{Path: path, Type: TypeUnsupported, Size: info.Size(), ModTime: info.ModTime()}, nil
	}

	if e.opts.MaxFileSize > 0 && info.Size() > e.opts.MaxFileSize {
		return nil, seerrors.New(seerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("file exceeds size limit: %s (%d bytes)", path, info.Size()), nil).
			WithDetail("limit", fmt.Sprintf("%d", e.opts.MaxFileSize))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, seerrors.New(seerrors.ErrCodeFilePermission,
				fmt.Sprintf("permission denied: %s", path), err)
		}
		return nil, seerrors.ExtractionError(fmt.Sprintf("read failed: %s", path), err)
	}

	content := &Content{
		Path:    path,
		Type:    ctype,
		Hash:    hashBytes(raw),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	switch ctype {
	case TypeImage:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return nil, seerrors.New(seerrors.ErrCodeImageDecode,
				fmt.Sprintf("undecodable image: %s", path), err)
		}
		content.Data = raw
		content.Width = cfg.Width
		content.Height = cfg.Height

	case TypeText:
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			text, err := e.extractPDF(path)
			if err != nil {
				return nil, err
			}
			content.Text = text
		} else {
			if !utf8.Valid(raw) || isBinaryContent(raw) {
				return nil, seerrors.New(seerrors.ErrCodeFileCorrupt,
					fmt.Sprintf("file is not valid text: %s", path), nil)
			}
			content.Text = string(raw)
		}
	}

	return content, nil
}

// extractPDF converts a PDF to plain text, capped at MaxPDFChars.
func (e *Extractor) extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", seerrors.New(seerrors.ErrCodePDFParse,
			fmt.Sprintf("failed to open PDF: %s", path), err)
	}
	defer f.Close()

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page does not fail the document
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")

		if sb.Len() >= e.opts.MaxPDFChars {
			break
		}
	}

	text := sb.String()
	if len(text) > e.opts.MaxPDFChars {
		text = truncateUTF8(text, e.opts.MaxPDFChars)
	}
	return text, nil
}

// hashBytes returns the SHA-256 hex digest of data.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the SHA-256 hex digest of the file at path.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

// isBinaryContent reports whether data looks like binary rather than text.
// A NUL byte in the first 8KB is the usual giveaway.
func isBinaryContent(data []byte) bool {
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// truncateUTF8 cuts s at a rune boundary at or below max bytes.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
