// Package actions holds what the persistence actions share: the cache
// revalidation hook, instrumentation and store error mapping.
package actions

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/metrics"
	"carepulse/internal/common/observability"
	"carepulse/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// AdminPath is the dashboard page every write makes stale.
const AdminPath = "/admin"

// Store operations, used as metric labels.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpRead   = "read"
)

// Revalidator marks cached pages stale.
type Revalidator interface {
	Revalidate(ctx context.Context, paths ...string) error
}

// RevalidateAdmin marks the dashboard stale after a write. A failure is only
// logged: the write already happened.
func RevalidateAdmin(ctx context.Context, views Revalidator, log logger.Logger) {
	if views == nil {
		return
	}
	if err := views.Revalidate(ctx, AdminPath); err != nil {
		log.Warn("view revalidation failed", map[string]interface{}{
			"path":  AdminPath,
			"error": err,
		})
	}
}

// WithTimeout bounds one store round trip. A zero timeout only adds a cancel.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// LogFailure logs a failed action with its trace id, at Warn for client-side
// rejections and Error otherwise.
func LogFailure(ctx context.Context, log logger.Logger, action string, err error, fields map[string]interface{}) {
	entry := map[string]interface{}{"action": action, "error": err}
	status := http.StatusInternalServerError
	if stdErr, ok := apperrors.AsStandard(err); ok {
		entry["errorCode"] = string(stdErr.Code)
		status = apperrors.HTTPStatus(stdErr.Code)
	}
	for k, v := range fields {
		entry[k] = v
	}
	log = observability.WithTrace(ctx, log)
	if status < http.StatusInternalServerError {
		log.Warn("action rejected", entry)
		return
	}
	log.Error("action failed", entry)
}

// Instrument runs fn inside a span named after action and records its
// duration and outcome.
func Instrument(ctx context.Context, obs *observability.Observability, action string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	start := time.Now()
	ctx, span := obs.StartSpan(ctx, action, attrs...)

	err := fn(ctx)

	status := metrics.OutcomeSuccess
	if err != nil {
		status = metrics.OutcomeFailed
	}
	elapsed := time.Since(start)
	metrics.PersistenceDuration.WithLabelValues(action).Observe(elapsed.Seconds())
	obs.RecordAction(ctx, action, status, elapsed)
	observability.EndSpan(span, err)
	return err
}

// CountWrite records one document write.
func CountWrite(collection, op string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	metrics.DocumentWrites.WithLabelValues(collection, op, outcome).Inc()
}

// StoreError converts a backend error into the matching StandardError.
func StoreError(op, collection, id string, err error) *apperrors.StandardError {
	if stdErr, ok := apperrors.AsStandard(err); ok {
		return stdErr
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewDocumentNotFoundError(collection, id)
	case errors.Is(err, store.ErrConflict):
		return apperrors.NewDocumentConflictError(collection, id)
	}
	switch op {
	case OpCreate:
		return apperrors.NewDocumentCreateFailedError(collection, err)
	case OpUpdate:
		return apperrors.NewDocumentUpdateFailedError(collection, id, err)
	default:
		return apperrors.NewDocumentReadFailedError(collection, err)
	}
}
