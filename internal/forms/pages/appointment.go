package pages

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"carepulse/internal/catalog"
	"carepulse/internal/common/validation"
	"carepulse/internal/forms/controller"
	"carepulse/internal/forms/field"
	"carepulse/internal/models"
)

type (
	CreateAppointmentFunc func(ctx context.Context, params models.CreateAppointmentParams) (*models.Appointment, error)
	UpdateAppointmentFunc func(ctx context.Context, params models.UpdateAppointmentParams) (*models.Appointment, error)
)

func AppointmentFormName(purpose models.Purpose) string {
	return "appointment." + string(purpose)
}

// AppointmentFields lists the fields shown for purpose. Cancelling asks only
// for a reason; scheduling keeps the patient's reason and note read-only.
func AppointmentFields(cat *catalog.Catalog, purpose models.Purpose) []field.Descriptor {
	if purpose == models.PurposeCancel {
		return []field.Descriptor{
			{Kind: field.KindTextarea, Name: "cancellationReason", Label: "Reason for cancellation", Placeholder: "Urgent meeting came up"},
		}
	}
	readOnly := purpose == models.PurposeSchedule
	return []field.Descriptor{
		{Kind: field.KindSelect, Name: "primaryPhysician", Label: "Doctor", Placeholder: "Select a doctor", Options: cat.DoctorOptions()},
		{Kind: field.KindDatePicker, Name: "schedule", Label: "Expected appointment date", ShowTimeSelect: true, DateFormat: "MM/dd/yyyy  -  h:mm aa"},
		{Kind: field.KindTextarea, Name: "reason", Label: "Appointment reason", Placeholder: "Annual monthly check-up", Disabled: readOnly},
		{Kind: field.KindTextarea, Name: "note", Label: "Comments/notes", Placeholder: "Prefer afternoon appointments, if possible", Disabled: readOnly},
	}
}

// AppointmentDefaults seeds the form from existing, or from now when
// booking a new appointment.
func AppointmentDefaults(existing *models.Appointment, now time.Time) map[string]interface{} {
	defaults := map[string]interface{}{
		"primaryPhysician":   "",
		"schedule":           now,
		"reason":             "",
		"note":               "",
		"cancellationReason": "",
	}
	if existing != nil {
		defaults["primaryPhysician"] = existing.PrimaryPhysician
		if !existing.Schedule.IsZero() {
			defaults["schedule"] = existing.Schedule
		}
		defaults["reason"] = existing.Reason
		defaults["note"] = existing.Note
		defaults["cancellationReason"] = existing.CancellationReason
	}
	return defaults
}

func SuccessPath(userID, appointmentID string) string {
	return fmt.Sprintf("/patients/%s/new-appointment/success?appointmentId=%s",
		url.PathEscape(userID), url.QueryEscape(appointmentID))
}

// CreateAppointmentForm books a new appointment for the patient. It needs
// both ids to build the request.
func CreateAppointmentForm(cat *catalog.Catalog, userID, patientID string, now time.Time, create CreateAppointmentFunc) (controller.Definition[models.CreateAppointmentParams, models.Appointment], map[string]interface{}) {
	def := controller.Definition[models.CreateAppointmentParams, models.Appointment]{
		Name:   AppointmentFormName(models.PurposeCreate),
		Schema: validation.AppointmentSchema(string(models.PurposeCreate)),
		Fields: AppointmentFields(cat, models.PurposeCreate),
		Build: func(values map[string]interface{}) (models.CreateAppointmentParams, error) {
			if err := requireIDs([2]string{"userId", userID}, [2]string{"patientId", patientID}); err != nil {
				return models.CreateAppointmentParams{}, err
			}
			return models.CreateAppointmentParams{
				UserID:           userID,
				PatientID:        patientID,
				PrimaryPhysician: str(values, "primaryPhysician"),
				Schedule:         instant(values, "schedule"),
				Reason:           str(values, "reason"),
				Note:             str(values, "note"),
				Status:           models.StatusForPurpose(models.PurposeCreate),
			}, nil
		},
		Action: create,
		Redirect: func(a *models.Appointment) string {
			return SuccessPath(userID, a.ID)
		},
	}
	return def, AppointmentDefaults(nil, now)
}

// UpdateAppointmentForm schedules or cancels existing.
func UpdateAppointmentForm(cat *catalog.Catalog, purpose models.Purpose, existing *models.Appointment, timeZone string, now time.Time, update UpdateAppointmentFunc) (controller.Definition[models.UpdateAppointmentParams, models.Appointment], map[string]interface{}) {
	var appointmentID, userID string
	if existing != nil {
		appointmentID, userID = existing.ID, existing.UserID
	}

	def := controller.Definition[models.UpdateAppointmentParams, models.Appointment]{
		Name:   AppointmentFormName(purpose),
		Schema: validation.AppointmentSchema(string(purpose)),
		Fields: AppointmentFields(cat, purpose),
		Build: func(values map[string]interface{}) (models.UpdateAppointmentParams, error) {
			if err := requireIDs([2]string{"appointmentId", appointmentID}, [2]string{"userId", userID}); err != nil {
				return models.UpdateAppointmentParams{}, err
			}
			return models.UpdateAppointmentParams{
				AppointmentID: appointmentID,
				UserID:        userID,
				TimeZone:      timeZone,
				Purpose:       purpose,
				Appointment: models.AppointmentChanges{
					PrimaryPhysician:   str(values, "primaryPhysician"),
					Schedule:           instant(values, "schedule"),
					Status:             models.StatusForPurpose(purpose),
					CancellationReason: str(values, "cancellationReason"),
				},
			}, nil
		},
		Action: update,
		Redirect: func(*models.Appointment) string {
			return "/admin"
		},
	}
	return def, AppointmentDefaults(existing, now)
}
