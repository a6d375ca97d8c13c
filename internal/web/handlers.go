package web

import (
	"net/http"

	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/forms/pages"
	"carepulse/internal/models"
	"carepulse/internal/notify"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
)

func (s *Server) userPage(c *gin.Context) {
	def, defaults := pages.UserForm(s.deps.Patients.CreateUser)
	serveForm(s, c, def, defaults, formPage{
		Title:    "Hi there",
		Subtitle: "Get started with appointments.",
		Button:   "Get Started",
	})
}

func (s *Server) registerPage(c *gin.Context) {
	user, err := s.deps.Patients.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.renderActionError(c, err)
		return
	}

	def, defaults := pages.RegisterForm(s.deps.Catalog, user, s.deps.Now(), s.deps.Patients.RegisterPatient)
	serveForm(s, c, def, defaults, formPage{
		Title:    "Welcome",
		Subtitle: "Let us know more about yourself.",
		Button:   "Submit and Continue",
		Sections: pages.RegisterSections(s.deps.Catalog),
	})
}

// newAppointmentPage renders even without a patient record; submitting it
// then fails with MISSING_PRECONDITION.
func (s *Server) newAppointmentPage(c *gin.Context) {
	userID := c.Param("userId")
	var patientID string
	patient, err := s.deps.Patients.GetPatient(c.Request.Context(), userID)
	switch {
	case err == nil:
		patientID = patient.ID
	case apperrors.HasCode(err, apperrors.ErrCodeDocumentNotFound):
	default:
		s.renderActionError(c, err)
		return
	}

	def, defaults := pages.CreateAppointmentForm(s.deps.Catalog, userID, patientID, s.deps.Now(), s.deps.Appointments.CreateAppointment)
	serveForm(s, c, def, defaults, formPage{
		Title:    "New Appointment",
		Subtitle: "Request a new appointment in 10 seconds.",
		Button:   models.PurposeCreate.ButtonLabel(),
	})
}

func (s *Server) successPage(c *gin.Context) {
	appointmentID := c.Query("appointmentId")
	if appointmentID == "" {
		s.renderError(c, http.StatusBadRequest, "Missing appointment", "No appointment was given.")
		return
	}
	appt, err := s.deps.Appointments.GetAppointment(c.Request.Context(), appointmentID)
	if err != nil {
		s.renderActionError(c, err)
		return
	}

	doctor, _ := s.deps.Catalog.Doctor(appt.PrimaryPhysician)
	if doctor.Name == "" {
		doctor.Name = appt.PrimaryPhysician
	}
	s.renderPage(c, http.StatusOK, "success.html", pongo2.Context{
		"title":    "Appointment requested",
		"doctor":   doctor,
		"schedule": appt.Schedule.In(s.config.Location).Format(notify.DateTimeLayout),
		"userId":   c.Param("userId"),
	})
}

type adminRow struct {
	ID          string
	Patient     string
	Status      string
	Schedule    string
	Doctor      string
	DoctorImage string
}

func (s *Server) adminPage(c *gin.Context) {
	list, err := s.deps.Appointments.GetRecentAppointmentList(c.Request.Context())
	if err != nil {
		s.renderActionError(c, err)
		return
	}

	rows := make([]adminRow, 0, len(list.Documents))
	for _, a := range list.Documents {
		row := adminRow{
			ID:       a.ID,
			Status:   string(a.Status),
			Schedule: a.Schedule.In(s.config.Location).Format(notify.DateTimeLayout),
			Doctor:   a.PrimaryPhysician,
		}
		if a.Patient != nil {
			row.Patient = a.Patient.Name
		}
		if d, ok := s.deps.Catalog.Doctor(a.PrimaryPhysician); ok {
			row.DoctorImage = d.Image
		}
		rows = append(rows, row)
	}

	s.renderPage(c, http.StatusOK, "admin.html", pongo2.Context{
		"title": "Admin",
		"list":  list,
		"rows":  rows,
	})
}

func (s *Server) updateAppointmentPage(c *gin.Context) {
	purpose, ok := models.ParsePurpose(c.Param("purpose"))
	if !ok || purpose == models.PurposeCreate {
		s.renderError(c, http.StatusNotFound, "Page not found", "Appointments can only be scheduled or cancelled here.")
		return
	}

	appt, err := s.deps.Appointments.GetAppointment(c.Request.Context(), c.Param("appointmentId"))
	if err != nil {
		s.renderActionError(c, err)
		return
	}

	tz := s.timeZone(c)
	def, defaults := pages.UpdateAppointmentForm(s.deps.Catalog, purpose, appt, tz, s.deps.Now(), s.deps.Appointments.UpdateAppointment)

	page := formPage{
		Title:    "Schedule Appointment",
		Subtitle: "Please fill in the following details to schedule",
		Button:   purpose.ButtonLabel(),
		TimeZone: tz,
	}
	if purpose == models.PurposeCancel {
		page.Title = "Cancel Appointment"
		page.Subtitle = "Are you sure you want to cancel your appointment?"
		page.ButtonClass = "shad-danger-btn"
	}
	serveForm(s, c, def, defaults, page)
}

// renderActionError shows a failed lookup as a page with the error's status.
func (s *Server) renderActionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := apperrors.ErrCodeInternal
	if stdErr, ok := apperrors.AsStandard(err); ok {
		status = apperrors.HTTPStatus(stdErr.Code)
		code = stdErr.Code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("page lookup failed", map[string]interface{}{"path": c.Request.URL.Path, "error": err.Error()})
	}
	s.renderError(c, status, http.StatusText(status), apperrors.FormMessage(code))
}
