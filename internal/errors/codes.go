// Package errors provides structured error handling for Fileseer.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Extraction errors (file access, parsing)
//   - 3XX: Embedding errors
//   - 4XX: Query errors
//   - 5XX: Storage errors
//   - 6XX: Watcher errors
//   - 7XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryExtraction indicates content extraction errors.
	CategoryExtraction Category = "EXTRACTION"
	// CategoryEmbedding indicates embedding backend errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryQuery indicates search query validation errors.
	CategoryQuery Category = "QUERY"
	// CategoryStorage indicates index persistence errors.
	CategoryStorage Category = "STORAGE"
	// CategoryWatcher indicates filesystem watch errors.
	CategoryWatcher Category = "WATCHER"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeDataDir        = "ERR_103_DATA_DIR"

	// Extraction errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeUnsupportedType = "ERR_203_UNSUPPORTED_TYPE"
	ErrCodeFileTooLarge    = "ERR_204_FILE_TOO_LARGE"
	ErrCodePDFParse        = "ERR_205_PDF_PARSE"
	ErrCodeImageDecode     = "ERR_206_IMAGE_DECODE"
	ErrCodeFileCorrupt     = "ERR_207_FILE_CORRUPT"

	// Embedding errors (300-399)
	ErrCodeEmbedTimeout        = "ERR_301_EMBED_TIMEOUT"
	ErrCodeEmbedderUnavailable = "ERR_302_EMBEDDER_UNAVAILABLE"
	ErrCodeEmbeddingFailed     = "ERR_303_EMBEDDING_FAILED"
	ErrCodeModelMissing        = "ERR_304_MODEL_MISSING"

	// Query errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeInvalidPath       = "ERR_404_INVALID_PATH"
	ErrCodeInvalidMode       = "ERR_405_INVALID_MODE"

	// Storage errors (500-599)
	ErrCodeCorruptIndex   = "ERR_501_CORRUPT_INDEX"
	ErrCodeStoreIO        = "ERR_502_STORE_IO"
	ErrCodeSchemaMismatch = "ERR_503_SCHEMA_MISMATCH"
	ErrCodeDiskFull       = "ERR_504_DISK_FULL"

	// Watcher errors (600-699)
	ErrCodeWatchFailed   = "ERR_601_WATCH_FAILED"
	ErrCodeWatchOverflow = "ERR_602_WATCH_OVERFLOW"

	// Internal errors (700-799)
	ErrCodeInternal     = "ERR_701_INTERNAL"
	ErrCodeIndexFailed  = "ERR_702_INDEX_FAILED"
	ErrCodeSearchFailed = "ERR_703_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_FILE_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryExtraction
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryQuery
	case '5':
		return CategoryStorage
	case '6':
		return CategoryWatcher
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors
	switch code {
	case ErrCodeCorruptIndex, ErrCodeSchemaMismatch, ErrCodeDiskFull:
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	// Default to error severity
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedTimeout, ErrCodeEmbedderUnavailable, ErrCodeModelMissing:
		return true
	default:
		return false
	}
}
