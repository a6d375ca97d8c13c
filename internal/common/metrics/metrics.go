// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomeBusy       = "busy"
	OutcomeIncomplete = "incomplete"
)

var (
	FormSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_form_submissions_total",
			Help: "Total number of form submissions by form and outcome",
		},
		[]string{"form", "outcome"},
	)

	FormSubmissionsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carepulse_form_submissions_in_flight",
			Help: "Number of submissions currently awaiting the persistence call",
		},
		[]string{"form"},
	)

	DocumentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_document_writes_total",
			Help: "Total number of document writes by collection, operation and outcome",
		},
		[]string{"collection", "operation", "outcome"},
	)

	PersistenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carepulse_persistence_duration_seconds",
			Help:    "Duration of persistence actions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	ViewRevalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_view_revalidations_total",
			Help: "Total number of cached views marked stale",
		},
		[]string{"path"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_notifications_total",
			Help: "Total number of appointment notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)
