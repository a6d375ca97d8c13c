// Package errors provides standardized error handling for form submissions and persistence actions.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingPrecondition  ErrorCode = "MISSING_PRECONDITION"
	ErrCodeSubmissionInProgress ErrorCode = "SUBMISSION_IN_PROGRESS"

	ErrCodeDocumentCreateFailed ErrorCode = "DOCUMENT_CREATE_FAILED"
	ErrCodeDocumentUpdateFailed ErrorCode = "DOCUMENT_UPDATE_FAILED"
	ErrCodeDocumentReadFailed   ErrorCode = "DOCUMENT_READ_FAILED"
	ErrCodeDocumentNotFound     ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeDocumentConflict     ErrorCode = "DOCUMENT_CONFLICT"

	ErrCodeCacheFailed            ErrorCode = "CACHE_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError reports a form that did not pass its schema.
func NewValidationFailedError(form string, fieldCount int) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Form validation failed",
		Details:   fmt.Sprintf("form: %s, invalidFields: %d", form, fieldCount),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingPreconditionError reports a request that cannot be built because an identifier is absent.
func NewMissingPreconditionError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingPrecondition,
		Message:   "Required identifier is missing",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionInProgressError rejects a second submit while the first is awaited.
func NewSubmissionInProgressError(form string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInProgress,
		Message:   "Submission already in progress",
		Details:   fmt.Sprintf("form: %s", form),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDocumentCreateFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentCreateFailed,
		Message:   "Document create failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDocumentUpdateFailedError(collection, id string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentUpdateFailed,
		Message:   "Document update failed",
		Details:   fmt.Sprintf("collection: %s, id: %s, error: %s", collection, id, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDocumentReadFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentReadFailed,
		Message:   "Document read failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDocumentNotFoundError(collection, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDocumentConflictError(collection, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentConflict,
		Message:   "Document already exists",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCacheFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheFailed,
		Message:   "View cache operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard returns the first StandardError in err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "DOCUMENT"):
		return "STORE"
	case strings.HasPrefix(codeStr, "CACHE"):
		return "CACHE"
	case strings.HasPrefix(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case code == ErrCodeValidationFailed || code == ErrCodeMissingPrecondition:
		return "VALIDATION"
	case code == ErrCodeSubmissionInProgress:
		return "FORM"
	default:
		return "OTHER"
	}
}
