package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	warns  []map[string]interface{}
	errors []map[string]interface{}
}

func (r *recordingLogger) Warn(_ string, fields map[string]interface{}) {
	r.warns = append(r.warns, fields)
}

func (r *recordingLogger) Error(_ string, fields map[string]interface{}) {
	r.errors = append(r.errors, fields)
}

func TestStandardError_ChainHelpers(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("create appointment: %w", NewDocumentCreateFailedError("appointments", cause))

	assert.True(t, HasCode(err, ErrCodeDocumentCreateFailed))
	assert.False(t, HasCode(err, ErrCodeDocumentNotFound))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeDocumentCreateFailed}))

	stdErr, ok := AsStandard(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "appointments")
}

func TestRetryableByCode(t *testing.T) {
	cause := stderrors.New("timeout")
	assert.True(t, NewDocumentCreateFailedError("users", cause).Retryable)
	assert.True(t, NewNotificationSendFailedError("sms", cause).Retryable)
	assert.False(t, NewValidationFailedError("user", 2).Retryable)
	assert.False(t, NewSubmissionInProgressError("user").Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "STORE", GetErrorCategory(ErrCodeDocumentNotFound))
	assert.Equal(t, "CACHE", GetErrorCategory(ErrCodeCacheFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeMissingPrecondition))
	assert.Equal(t, "FORM", GetErrorCategory(ErrCodeSubmissionInProgress))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestErrorHandler_Describe(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantLevel  string
	}{
		{"validation", NewValidationFailedError("appointment.create", 2), http.StatusUnprocessableEntity, ErrCodeValidationFailed, "warn"},
		{"precondition", NewMissingPreconditionError("patientId"), http.StatusBadRequest, ErrCodeMissingPrecondition, "warn"},
		{"in progress", NewSubmissionInProgressError("appointment.create"), http.StatusConflict, ErrCodeSubmissionInProgress, "warn"},
		{"store failure", NewDocumentCreateFailedError("appointments", stderrors.New("boom")), http.StatusInternalServerError, ErrCodeDocumentCreateFailed, "error"},
		{"plain error", stderrors.New("unexpected"), http.StatusInternalServerError, ErrCodeInternal, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := NewErrorHandler(log)

			out := h.Describe(tt.err, map[string]interface{}{"form": "test"})

			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantCode, out.Err.Code)
			assert.NotEmpty(t, out.FormMessage)

			if tt.wantLevel == "warn" {
				require.Len(t, log.warns, 1)
				assert.Equal(t, "test", log.warns[0]["form"])
			} else {
				require.Len(t, log.errors, 1)
				assert.Equal(t, string(tt.wantCode), log.errors[0]["errorCode"])
			}
		})
	}
}

func TestStandardError_WithMetadata(t *testing.T) {
	err := NewDocumentNotFoundError("appointments", "apt-1").WithMetadata("appointmentId", "apt-1")
	assert.Equal(t, "apt-1", err.Metadata["appointmentId"])
	assert.Equal(t, "StandardError[DOCUMENT_NOT_FOUND]: Document not found", err.Error())
}
