// Package errors provides structured error types for spatialbench.
// All errors include a category, code, message, and retryable flag so the
// CLI can map failures to diagnostics and exit codes consistently.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryTransport  ErrorCategory = "TRANSPORT"
	ErrCategoryIndex      ErrorCategory = "INDEX"
	ErrCategoryBenchmark  ErrorCategory = "BENCHMARK"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidDimensions = "INVALID_DIMENSIONS"
	CodeMismatchedBox     = "MISMATCHED_BOX"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeInvalidFilter     = "INVALID_FILTER"

	// Transport codes
	CodeRequestFailed = "REQUEST_FAILED"
	CodeBadStatus     = "BAD_STATUS"
	CodeUnavailable   = "UNAVAILABLE"

	// Index codes
	CodeDecodeFailed  = "DECODE_FAILED"
	CodeEmptyStats    = "EMPTY_STATS"
	CodeCoreNotFound  = "CORE_NOT_FOUND"
	CodeMissingFacets = "MISSING_FACETS"

	// Benchmark codes
	CodeWarmupFailed = "WARMUP_FAILED"
	CodeWorkerFailed = "WORKER_FAILED"
	CodeNoQueries    = "NO_QUERIES"
	CodeDiscovery    = "DISCOVERY_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodeRunNotFound = "RUN_NOT_FOUND"
	CodeWriteFailed = "WRITE_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// SpatialError is the structured error type used throughout the system.
type SpatialError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SpatialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SpatialError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SpatialError) Is(target error) bool {
	var t *SpatialError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SpatialError.
func New(category ErrorCategory, code, message string) *SpatialError {
	return &SpatialError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new SpatialError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SpatialError {
	return &SpatialError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *SpatialError) WithDetails(details map[string]interface{}) *SpatialError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Nothing in the query core retries; the flag is informational for callers
// that configure retries at the transport layer.
func IsRetryable(err error) bool {
	var se *SpatialError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SpatialError.
func GetCategory(err error) ErrorCategory {
	var se *SpatialError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SpatialError.
func GetCode(err error) string {
	var se *SpatialError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// StatusCode returns the HTTP status recorded on the first transport error in
// the chain, or 0.
func StatusCode(err error) int {
	var se *SpatialError
	for errors.As(err, &se) {
		if code, ok := se.Details["status"].(int); ok {
			return code
		}
		err = se.Cause
	}
	return 0
}

func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryTransport && code == CodeUnavailable
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *SpatialError {
	return New(ErrCategoryValidation, code, message)
}

func NewTransportError(code, message string, cause error) *SpatialError {
	return Wrap(ErrCategoryTransport, code, message, cause)
}

func NewIndexError(code, message string, cause error) *SpatialError {
	return Wrap(ErrCategoryIndex, code, message, cause)
}

func NewBenchmarkError(code, message string, cause error) *SpatialError {
	return Wrap(ErrCategoryBenchmark, code, message, cause)
}

func NewStorageError(code, message string, cause error) *SpatialError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *SpatialError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewInternalError(message string, cause error) *SpatialError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
