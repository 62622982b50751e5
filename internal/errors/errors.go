// Package errors provides the categorized error taxonomy for the price ETL
// pipeline and its HTTP mapping for the query API.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/price-etl/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryTransientFetch represents a network/timeout error from a source;
	// safe to retry on the next trigger, no state corruption
	CategoryTransientFetch ErrorCategory = "transient_fetch"
	// CategoryMalformedRecord represents a single-record validation failure;
	// isolated as a rejection, never aborts the batch
	CategoryMalformedRecord ErrorCategory = "malformed_record"
	// CategoryMalformedResponse represents a source response the adapter
	// cannot parse; non-retryable, distinct from a transient fault
	CategoryMalformedResponse ErrorCategory = "malformed_response"
	// CategoryStorage represents a write failure; aborts the current run,
	// checkpoint untouched
	CategoryStorage ErrorCategory = "storage"
	// CategoryUnexpected represents anything uncaught; handled like storage
	CategoryUnexpected ErrorCategory = "unexpected"
	// CategoryConflict represents a rejected concurrent trigger
	CategoryConflict ErrorCategory = "conflict"
	// CategoryUserInput represents invalid query-API input
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryNotFound represents a missing resource on the query API
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryUnavailable represents a dependency that is not configured or down
	CategoryUnavailable ErrorCategory = "unavailable"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Pipeline errors

// NewTransientFetchError creates a retryable source-fetch error
func NewTransientFetchError(source types.SourceID, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransientFetch,
		StatusCode: http.StatusBadGateway,
		Code:       "TRANSIENT_FETCH_ERROR",
		Message:    fmt.Sprintf("transient fetch error from source %s", source),
		Cause:      cause,
		Details: map[string]interface{}{
			"source": string(source),
		},
	}
}

// NewMalformedResponseError creates a non-retryable source-fetch error for
// a response the adapter cannot interpret
func NewMalformedResponseError(source types.SourceID, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMalformedResponse,
		StatusCode: http.StatusBadGateway,
		Code:       "MALFORMED_RESPONSE",
		Message:    fmt.Sprintf("malformed response from source %s", source),
		Cause:      cause,
		Details: map[string]interface{}{
			"source": string(source),
		},
	}
}

// NewMalformedRecordError creates a single-record validation error
func NewMalformedRecordError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMalformedRecord,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "MALFORMED_RECORD",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewStorageError creates a storage write/read error
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorage,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORAGE_ERROR",
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewUnexpectedError wraps anything uncaught
func NewUnexpectedError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUnexpected,
		StatusCode: http.StatusInternalServerError,
		Code:       "UNEXPECTED_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewRunInProgressError creates a conflict error for a concurrent trigger
// on the same source
func NewRunInProgressError(source types.SourceID) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "RUN_IN_PROGRESS",
		Message:    fmt.Sprintf("ingestion run already in progress for source %s", source),
		Details: map[string]interface{}{
			"source": string(source),
		},
	}
}

// Query API errors

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewUnknownSourceError creates a not found error for an unregistered source
func NewUnknownSourceError(source string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "UNKNOWN_SOURCE",
		Message:    fmt.Sprintf("source not registered: %s", source),
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// NewUnavailableError creates an error for an unconfigured or unreachable dependency
func NewUnavailableError(dependency string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUnavailable,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    fmt.Sprintf("dependency unavailable: %s", dependency),
		Details: map[string]interface{}{
			"dependency": dependency,
		},
	}
}

// Categorize categorizes an existing error, defaulting to unexpected
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewUnexpectedError("unexpected error", err)
}

// CategoryOf returns the category of an error
func CategoryOf(err error) ErrorCategory {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Category
	}
	return CategoryUnexpected
}

// IsTransient reports whether an error is safe to retry on the next trigger
func IsTransient(err error) bool {
	return CategoryOf(err) == CategoryTransientFetch
}

// IsValidation reports whether an error is a single-record rejection
func IsValidation(err error) bool {
	return CategoryOf(err) == CategoryMalformedRecord
}

// IsConflict reports whether an error is a rejected concurrent trigger
func IsConflict(err error) bool {
	return CategoryOf(err) == CategoryConflict
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
