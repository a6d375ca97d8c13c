// internal/actions/appointment/handler.go
package appointment

import (
	"context"
	"time"
	_ "time/tzdata"

	"carepulse/internal/actions"
	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/observability"
	"carepulse/internal/models"
	"carepulse/internal/notify"
	"carepulse/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

const (
	ActionCreateAppointment     = "create-appointment"
	ActionGetAppointment        = "get-appointment"
	ActionUpdateAppointment     = "update-appointment"
	ActionGetRecentAppointments = "get-recent-appointments"
)

// ViewCache serves the admin dashboard between writes.
type ViewCache interface {
	actions.Revalidator
	Get(ctx context.Context, path string, dest interface{}) (bool, error)
	Generation(ctx context.Context, path string) (int64, error)
	SetIfCurrent(ctx context.Context, path string, generation int64, value interface{}) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, to notify.Recipient, msg notify.Message) *notify.Result
}

// Handler persists appointments and keeps the admin view fresh.
type Handler struct {
	config   *Config
	store    store.Store
	views    ViewCache
	notifier Notifier
	obs      *observability.Observability
	logger   logger.Logger
}

func NewHandler(config *Config, st store.Store, views ViewCache, notifier Notifier, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Handler{
		config:   config,
		store:    st,
		views:    views,
		notifier: notifier,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "appointment-actions"}),
	}
}

func (h *Handler) CreateAppointment(ctx context.Context, params models.CreateAppointmentParams) (*models.Appointment, error) {
	var appt models.Appointment
	err := actions.Instrument(ctx, h.obs, ActionCreateAppointment, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		data, err := store.Encode(params)
		if err != nil {
			return apperrors.NewDocumentCreateFailedError(h.config.AppointmentsCollection, err)
		}
		doc, err := h.store.CreateDocument(ctx, h.config.DatabaseID, h.config.AppointmentsCollection, store.UniqueID, data)
		actions.CountWrite(h.config.AppointmentsCollection, actions.OpCreate, err)
		if err != nil {
			return actions.StoreError(actions.OpCreate, h.config.AppointmentsCollection, "", err)
		}
		if err := store.Decode(doc, &appt); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.AppointmentsCollection, err)
		}

		actions.RevalidateAdmin(ctx, h.views, h.logger)
		h.logger.Info("appointment created", map[string]interface{}{
			"appointmentId": appt.ID,
			"patientId":     appt.PatientID,
			"status":        string(appt.Status),
		})
		return nil
	}, attribute.String("userId", params.UserID))
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionCreateAppointment, err, map[string]interface{}{"userId": params.UserID})
		return nil, err
	}
	return &appt, nil
}

func (h *Handler) GetAppointment(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	var appt models.Appointment
	err := actions.Instrument(ctx, h.obs, ActionGetAppointment, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		doc, err := h.store.GetDocument(ctx, h.config.DatabaseID, h.config.AppointmentsCollection, appointmentID)
		if err != nil {
			return actions.StoreError(actions.OpRead, h.config.AppointmentsCollection, appointmentID, err)
		}
		if err := store.Decode(doc, &appt); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.AppointmentsCollection, err)
		}
		return nil
	}, attribute.String("appointmentId", appointmentID))
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionGetAppointment, err, map[string]interface{}{"appointmentId": appointmentID})
		return nil, err
	}
	return &appt, nil
}

// UpdateAppointment applies a schedule or cancel decision and tells the
// patient about it. Notification problems never fail the update.
func (h *Handler) UpdateAppointment(ctx context.Context, params models.UpdateAppointmentParams) (*models.Appointment, error) {
	var appt models.Appointment
	err := actions.Instrument(ctx, h.obs, ActionUpdateAppointment, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		patch := map[string]interface{}{
			"primaryPhysician": params.Appointment.PrimaryPhysician,
			"schedule":         params.Appointment.Schedule.UTC().Format(time.RFC3339),
			"status":           string(params.Appointment.Status),
		}
		if params.Appointment.CancellationReason != "" {
			patch["cancellationReason"] = params.Appointment.CancellationReason
		}

		doc, err := h.store.UpdateDocument(ctx, h.config.DatabaseID, h.config.AppointmentsCollection, params.AppointmentID, patch)
		actions.CountWrite(h.config.AppointmentsCollection, actions.OpUpdate, err)
		if err != nil {
			return actions.StoreError(actions.OpUpdate, h.config.AppointmentsCollection, params.AppointmentID, err)
		}
		if err := store.Decode(doc, &appt); err != nil {
			return apperrors.NewDocumentReadFailedError(h.config.AppointmentsCollection, err)
		}

		actions.RevalidateAdmin(ctx, h.views, h.logger)
		h.logger.Info("appointment updated", map[string]interface{}{
			"appointmentId": appt.ID,
			"status":        string(appt.Status),
			"purpose":       string(params.Purpose),
		})
		return nil
	}, attribute.String("appointmentId", params.AppointmentID), attribute.String("purpose", string(params.Purpose)))
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionUpdateAppointment, err, map[string]interface{}{"appointmentId": params.AppointmentID})
		return nil, err
	}

	h.notifyPatient(ctx, params, appt)
	return &appt, nil
}

// GetRecentAppointmentList returns the dashboard counts and the newest
// appointments, from the view cache when it is fresh.
func (h *Handler) GetRecentAppointmentList(ctx context.Context) (*models.AppointmentList, error) {
	var list *models.AppointmentList
	err := actions.Instrument(ctx, h.obs, ActionGetRecentAppointments, func(ctx context.Context) error {
		ctx, cancel := actions.WithTimeout(ctx, h.config.Timeout)
		defer cancel()

		cacheable := false
		var generation int64
		if h.views != nil {
			var cached models.AppointmentList
			hit, err := h.views.Get(ctx, actions.AdminPath, &cached)
			if err != nil {
				h.logger.Warn("view cache read failed", map[string]interface{}{"error": err})
			}
			if hit {
				list = &cached
				return nil
			}
			generation, err = h.views.Generation(ctx, actions.AdminPath)
			if err != nil {
				h.logger.Warn("view generation read failed", map[string]interface{}{"error": err})
			}
			cacheable = err == nil
		}

		docs, err := h.store.ListDocuments(ctx, h.config.DatabaseID, h.config.AppointmentsCollection,
			store.Limit(h.config.RecentLimit))
		if err != nil {
			return actions.StoreError(actions.OpRead, h.config.AppointmentsCollection, "", err)
		}

		appts := make([]models.Appointment, 0, len(docs))
		patients := make(map[string]*models.Patient)
		for _, doc := range docs {
			var a models.Appointment
			if err := store.Decode(doc, &a); err != nil {
				return apperrors.NewDocumentReadFailedError(h.config.AppointmentsCollection, err)
			}
			a.Patient = h.resolvePatient(ctx, patients, a.PatientID)
			appts = append(appts, a)
		}
		list = models.NewAppointmentList(appts)

		if cacheable {
			stored, err := h.views.SetIfCurrent(ctx, actions.AdminPath, generation, list)
			if err != nil {
				h.logger.Warn("view cache write failed", map[string]interface{}{"error": err})
			} else if !stored {
				h.logger.Debug("dashboard changed while listing, not cached", map[string]interface{}{
					"generation": generation,
				})
			}
		}
		return nil
	})
	if err != nil {
		actions.LogFailure(ctx, h.logger, ActionGetRecentAppointments, err, nil)
		return nil, err
	}
	return list, nil
}

func (h *Handler) resolvePatient(ctx context.Context, seen map[string]*models.Patient, patientID string) *models.Patient {
	if patientID == "" {
		return nil
	}
	if p, ok := seen[patientID]; ok {
		return p
	}
	var p *models.Patient
	doc, err := h.store.GetDocument(ctx, h.config.DatabaseID, h.config.PatientsCollection, patientID)
	if err == nil {
		p = &models.Patient{}
		if err = store.Decode(doc, p); err != nil {
			p = nil
		}
	}
	if err != nil {
		h.logger.Warn("patient lookup failed", map[string]interface{}{
			"patientId": patientID,
			"error":     err,
		})
	}
	seen[patientID] = p
	return p
}

func (h *Handler) notifyPatient(ctx context.Context, params models.UpdateAppointmentParams, appt models.Appointment) {
	if h.notifier == nil || params.Purpose == models.PurposeCreate {
		return
	}

	doc, err := h.store.GetDocument(ctx, h.config.DatabaseID, h.config.UsersCollection, params.UserID)
	if err != nil {
		h.logger.Warn("notification recipient not found", map[string]interface{}{
			"userId": params.UserID,
			"error":  err,
		})
		return
	}
	var user models.User
	if err := store.Decode(doc, &user); err != nil {
		h.logger.Warn("notification recipient unreadable", map[string]interface{}{
			"userId": params.UserID,
			"error":  err,
		})
		return
	}

	loc, err := time.LoadLocation(params.TimeZone)
	if err != nil || params.TimeZone == "" {
		loc = time.UTC
	}

	result := h.notifier.Send(ctx,
		notify.Recipient{Name: user.Name, Email: user.Email, Phone: user.Phone},
		notify.AppointmentMessage(params.Purpose, appt, loc),
	)
	h.logger.Info("appointment notification processed", map[string]interface{}{
		"appointmentId":  appt.ID,
		"notificationId": result.NotificationID,
		"status":         result.Status,
	})
}
