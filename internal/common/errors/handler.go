// internal/common/errors/handler.go
package errors

import (
	"net/http"
	"time"
)

// ErrorHandler turns any error raised while serving a form into an HTTP status
// and a message that can be shown above the form.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Outcome is what the transport layer needs to answer a failed submission.
type Outcome struct {
	Status      int
	FormMessage string
	Err         *StandardError
}

// Describe normalizes err, logs it and picks the response status and form message.
func (h *ErrorHandler) Describe(err error, fields map[string]interface{}) Outcome {
	stdErr := h.normalizeError(err)
	h.logError(stdErr, fields)

	return Outcome{
		Status:      HTTPStatus(stdErr.Code),
		FormMessage: FormMessage(stdErr.Code),
		Err:         stdErr,
	}
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (h *ErrorHandler) logError(stdErr *StandardError, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	if HTTPStatus(stdErr.Code) >= http.StatusInternalServerError {
		h.logger.Error("request failed", entry)
		return
	}
	h.logger.Warn("request rejected", entry)
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeMissingPrecondition:
		return http.StatusBadRequest
	case ErrCodeSubmissionInProgress, ErrCodeDocumentConflict:
		return http.StatusConflict
	case ErrCodeDocumentNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FormMessage is the user-facing text rendered above a form for the code.
func FormMessage(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "Please correct the highlighted fields."
	case ErrCodeMissingPrecondition:
		return "We could not find your patient record. Please complete registration first."
	case ErrCodeSubmissionInProgress:
		return "Your request is already being processed."
	case ErrCodeDocumentNotFound:
		return "The requested record does not exist."
	case ErrCodeDocumentConflict:
		return "This record already exists."
	default:
		return "Something went wrong while saving. Please try again."
	}
}
