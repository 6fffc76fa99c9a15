package errors

import (
	"fmt"
)

// SeerError is the structured error type for Fileseer.
// It provides rich context for error handling, logging, and user presentation.
type SeerError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Extraction, Embedding, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SeerError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SeerError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SeerError.
func (e *SeerError) Is(target error) bool {
	if t, ok := target.(*SeerError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SeerError) WithDetail(key, value string) *SeerError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SeerError) WithSuggestion(suggestion string) *SeerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SeerError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SeerError {
	return &SeerError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SeerError from an existing error.
// The error's message becomes the SeerError message.
func Wrap(code string, err error) *SeerError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SeerError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ExtractionError creates a content-extraction error.
func ExtractionError(message string, cause error) *SeerError {
	return New(ErrCodeFileCorrupt, message, cause)
}

// EmbeddingError creates an embedding-backend error.
func EmbeddingError(message string, cause error) *SeerError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// QueryError creates a query validation error.
func QueryError(message string, cause error) *SeerError {
	return New(ErrCodeInvalidInput, message, cause)
}

// StorageError creates an index persistence error.
func StorageError(message string, cause error) *SeerError {
	return New(ErrCodeStoreIO, message, cause)
}

// WatcherError creates a filesystem watch error.
func WatcherError(message string, cause error) *SeerError {
	return New(ErrCodeWatchFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SeerError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SeerError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SeerError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SeerError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SeerError.
// Returns empty string if not a SeerError.
func GetCode(err error) string {
	if se, ok := err.(*SeerError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SeerError.
// Returns empty string if not a SeerError.
func GetCategory(err error) Category {
	if se, ok := err.(*SeerError); ok {
		return se.Category
	}
	return ""
}
