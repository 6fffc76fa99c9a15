package extract

import (
	"path/filepath"
	"strings"
)

// Category is a coarse file classification used by the filename index.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryArchive  Category = "archive"
	CategoryCode     Category = "code"
	CategoryOther    Category = "other"
)

var categoryByExtension = map[string]Category{
	// Documents
	".txt": CategoryDocument, ".md": CategoryDocument, ".markdown": CategoryDocument,
	".rst": CategoryDocument, ".org": CategoryDocument, ".tex": CategoryDocument,
	".pdf": CategoryDocument, ".doc": CategoryDocument, ".docx": CategoryDocument,
	".odt": CategoryDocument, ".rtf": CategoryDocument, ".epub": CategoryDocument,
	".csv": CategoryDocument, ".tsv": CategoryDocument, ".log": CategoryDocument,

	// Images
	".png": CategoryImage, ".jpg": CategoryImage, ".jpeg": CategoryImage,
	".gif": CategoryImage, ".bmp": CategoryImage, ".webp": CategoryImage,
	".tiff": CategoryImage, ".tif": CategoryImage, ".svg": CategoryImage,
	".ico": CategoryImage, ".heic": CategoryImage,

	// Video
	".mp4": CategoryVideo, ".mkv": CategoryVideo, ".mov": CategoryVideo,
	".avi": CategoryVideo, ".webm": CategoryVideo, ".wmv": CategoryVideo,

	// Audio
	".mp3": CategoryAudio, ".wav": CategoryAudio, ".flac": CategoryAudio,
	".ogg": CategoryAudio, ".m4a": CategoryAudio, ".aac": CategoryAudio,

	// Archives
	".zip": CategoryArchive, ".tar": CategoryArchive, ".gz": CategoryArchive,
	".bz2": CategoryArchive, ".xz": CategoryArchive, ".7z": CategoryArchive,
	".rar": CategoryArchive,

	// Code
	".go": CategoryCode, ".py": CategoryCode, ".js": CategoryCode,
	".ts": CategoryCode, ".jsx": CategoryCode, ".tsx": CategoryCode,
	".rs": CategoryCode, ".c": CategoryCode, ".h": CategoryCode,
	".cpp": CategoryCode, ".hpp": CategoryCode, ".java": CategoryCode,
	".rb": CategoryCode, ".php": CategoryCode, ".swift": CategoryCode,
	".kt": CategoryCode, ".sh": CategoryCode, ".sql": CategoryCode,
	".html": CategoryCode, ".css": CategoryCode, ".json": CategoryCode,
	".yaml": CategoryCode, ".yml": CategoryCode, ".toml": CategoryCode,
	".xml": CategoryCode,
}

// CategoryForPath classifies a path by its extension.
func CategoryForPath(path string) Category {
	ext := strings.ToLower(filepath.Ext(path))
	if cat, ok := categoryByExtension[ext]; ok {
		return cat
	}
	return CategoryOther
}
