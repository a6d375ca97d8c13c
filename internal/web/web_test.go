package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	appointmentactions "carepulse/internal/actions/appointment"
	patientactions "carepulse/internal/actions/patient"
	"carepulse/internal/cache"
	"carepulse/internal/catalog"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/validation"
	"carepulse/internal/forms/controller"
	"carepulse/internal/forms/render"
	"carepulse/internal/models"
	"carepulse/internal/notify"
	"carepulse/internal/store/badgerstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// ==========================
// Test Helpers
// ==========================

type fixture struct {
	router       http.Handler
	patients     *patientactions.Handler
	appointments *appointmentactions.Handler
	guard        *controller.LocalGuard
	ready        map[string]ReadinessCheck
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := badgerstore.New(db)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	views := cache.NewViewCache(client, time.Minute)

	patients := patientactions.NewHandler(&patientactions.Config{
		DatabaseID: "carepulse", UsersCollection: "users", PatientsCollection: "patients", Timeout: 5 * time.Second,
	}, st, views, nil, log)
	appointments := appointmentactions.NewHandler(&appointmentactions.Config{
		DatabaseID: "carepulse", UsersCollection: "users", PatientsCollection: "patients",
		AppointmentsCollection: "appointments", Timeout: 5 * time.Second, RecentLimit: 10,
	}, st, views, notify.New(notify.Config{}, nil, nil, log), nil, log)

	cat, err := catalog.Default()
	require.NoError(t, err)
	renderer, err := render.New()
	require.NoError(t, err)
	validator, err := validation.NewValidator()
	require.NoError(t, err)

	guard := controller.NewLocalGuard()
	ready := map[string]ReadinessCheck{}
	srv, err := NewServer(&Config{Location: time.UTC}, Deps{
		Patients:     patients,
		Appointments: appointments,
		Catalog:      cat,
		Renderer:     renderer,
		Validator:    validator,
		Guard:        guard,
		Readiness:    ready,
		Now:          func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) },
	}, log)
	require.NoError(t, err)

	return &fixture{router: srv.Router(), patients: patients, appointments: appointments, guard: guard, ready: ready}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func (f *fixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seedPatient(t *testing.T) (*models.User, *models.Patient) {
	t.Helper()
	ctx := context.Background()
	user, err := f.patients.CreateUser(ctx, models.CreateUserParams{Name: "Jane Doe", Email: "jane@example.com", Phone: "+919876543210"})
	require.NoError(t, err)
	patient, err := f.patients.RegisterPatient(ctx, models.RegisterPatientParams{
		UserID: user.ID,
		PatientDetails: models.PatientDetails{
			Name: "Jane Doe", Email: "jane@example.com", Phone: "+919876543210",
			PrimaryPhysician: "John Green", PrivacyConsent: true,
		},
	})
	require.NoError(t, err)
	return user, patient
}

func parse(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// inputs maps every input name to its value attribute.
func inputs(t *testing.T, body string) map[string]string {
	t.Helper()
	out := map[string]string{}
	walk(parse(t, body), func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			name, _ := attr(n, "name")
			value, _ := attr(n, "value")
			if _, seen := out[name]; !seen {
				out[name] = value
			}
		}
	})
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(b.String())
}

// statCount reads the number shown in the admin stat card with class.
func statCount(t *testing.T, body, class string) string {
	t.Helper()
	var found string
	walk(parse(t, body), func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "div" {
			return
		}
		if c, _ := attr(n, "class"); strings.Contains(c, class) {
			for h := n.FirstChild; h != nil; h = h.NextSibling {
				if h.Type == html.ElementNode && h.Data == "h2" {
					found = text(h)
				}
			}
		}
	})
	return found
}

// ==========================
// User intake
// ==========================

func TestUserPage_Get(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/")
	require.Equal(t, http.StatusOK, w.Code)

	got := inputs(t, w.Body.String())
	assert.Contains(t, got, "name")
	assert.Contains(t, got, "email")
	assert.Contains(t, got, "phone")
	assert.NotEmpty(t, got[controller.TokenField])
}

func TestUserPage_PostCreatesUserAndRedirects(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/", url.Values{
		"name": {"Adrian Hajdin"}, "email": {"adrian@example.com"}, "phone": {"+919876543210"},
		controller.TokenField: {"tok-1"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	loc := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/patients/") && strings.HasSuffix(loc, "/register"), loc)
	userID := strings.TrimSuffix(strings.TrimPrefix(loc, "/patients/"), "/register")

	user, err := f.patients.GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "adrian@example.com", user.Email)
}

func TestUserPage_PostInvalidRendersErrors(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/", url.Values{"name": {"A"}, "email": {"adrian@example.com"}, "phone": {""}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Please correct the highlighted fields.")
	assert.Contains(t, body, "Name must be at least 2 characters.")
	assert.Equal(t, "A", inputs(t, body)["name"])
}

func TestUserPage_PostWhileTokenHeld(t *testing.T) {
	f := newFixture(t)
	ok, err := f.guard.TryAcquire(context.Background(), "tok-busy")
	require.NoError(t, err)
	require.True(t, ok)

	w := f.post(t, "/", url.Values{
		"name": {"Adrian Hajdin"}, "email": {"adrian@example.com"}, "phone": {"+919876543210"},
		controller.TokenField: {"tok-busy"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Your request is already being processed.")
	assert.Equal(t, "tok-busy", inputs(t, w.Body.String())[controller.TokenField])
}

// ==========================
// Registration
// ==========================

func TestRegisterPage_UnknownUser(t *testing.T) {
	f := newFixture(t)
	w := f.get(t, "/patients/missing/register")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterPage_Flow(t *testing.T) {
	f := newFixture(t)
	user, err := f.patients.CreateUser(context.Background(), models.CreateUserParams{
		Name: "Jane Doe", Email: "jane@example.com", Phone: "+919876543210",
	})
	require.NoError(t, err)
	path := "/patients/" + user.ID + "/register"

	w := f.get(t, path)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Personal Information")
	assert.Contains(t, body, "Consent and Privacy")
	assert.Equal(t, "Jane Doe", inputs(t, body)["name"])
	assert.Equal(t, 3, strings.Count(body, `type="radio"`))

	w = f.post(t, path, url.Values{
		"name": {"Jane Doe"}, "email": {"jane@example.com"}, "phone": {"+919876543210"},
		"birthDate": {"1990-01-02"}, "gender": {"Female"},
		"address": {"14 Street, New York"}, "occupation": {"Engineer"},
		"emergencyContactName": {"Guardian"}, "emergencyContactNumber": {"+919876543211"},
		"primaryPhysician": {"John Green"}, "insuranceProvider": {"BlueCross"},
		"insurancePolicyNumber": {"ABC123456789"}, "identificationType": {"Birth Certificate"},
		"identificationNumber": {"123456789"},
		"treatmentConsent": {"on"}, "disclosureConsent": {"on"}, "privacyConsent": {"on"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/patients/"+user.ID+"/new-appointment", w.Header().Get("Location"))

	patient, err := f.patients.GetPatient(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Gender("Female"), patient.Gender)
	assert.True(t, patient.PrivacyConsent)
}

// ==========================
// Appointments
// ==========================

func TestNewAppointment_WithoutPatient(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/patients/user-x/new-appointment", url.Values{
		"primaryPhysician": {"John Green"}, "schedule": {"2026-11-03T09:30"}, "reason": {"Annual checkup"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "complete registration first")
}

func TestAppointmentFlow(t *testing.T) {
	f := newFixture(t)
	user, _ := f.seedPatient(t)

	w := f.post(t, "/patients/"+user.ID+"/new-appointment", url.Values{
		"primaryPhysician": {"John Green"}, "schedule": {"2026-11-03T09:30"},
		"reason": {"Annual checkup"}, "note": {"Mornings"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/patients/"+user.ID+"/new-appointment/success", loc.Path)
	appointmentID := loc.Query().Get("appointmentId")
	require.NotEmpty(t, appointmentID)

	w = f.get(t, loc.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dr. John Green")
	assert.Contains(t, w.Body.String(), "Nov 3, 2026, 9:30 AM")

	w = f.get(t, "/admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", statCount(t, w.Body.String(), "stat-pending"))
	assert.Equal(t, "0", statCount(t, w.Body.String(), "stat-scheduled"))
	assert.Contains(t, w.Body.String(), "Jane Doe")

	w = f.get(t, "/admin/appointments/"+appointmentID+"/schedule")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UTC", inputs(t, w.Body.String())["timeZone"])

	w = f.post(t, "/admin/appointments/"+appointmentID+"/schedule", url.Values{
		"primaryPhysician": {"Leila Cameron"}, "schedule": {"2026-11-04T10:00"}, "timeZone": {"Asia/Kolkata"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	appt, err := f.appointments.GetAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, appt.Status)
	assert.Equal(t, "Leila Cameron", appt.PrimaryPhysician)

	w = f.get(t, "/admin")
	assert.Equal(t, "1", statCount(t, w.Body.String(), "stat-scheduled"))
	assert.Equal(t, "0", statCount(t, w.Body.String(), "stat-pending"))
}

func TestCancelAppointment_RequiresReason(t *testing.T) {
	f := newFixture(t)
	user, patient := f.seedPatient(t)
	appt, err := f.appointments.CreateAppointment(context.Background(), models.CreateAppointmentParams{
		UserID: user.ID, PatientID: patient.ID, PrimaryPhysician: "John Green",
		Schedule: time.Date(2026, 11, 3, 9, 30, 0, 0, time.UTC), Reason: "Checkup", Status: models.StatusPending,
	})
	require.NoError(t, err)
	path := "/admin/appointments/" + appt.ID + "/cancel"

	w := f.post(t, path, url.Values{"cancellationReason": {""}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Reason is required.")

	w = f.post(t, path, url.Values{"cancellationReason": {"Urgent meeting came up"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	got, err := f.appointments.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "Urgent meeting came up", got.CancellationReason)
}

func TestUpdateAppointment_UnknownPurpose(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/admin/appointments/a-1/create").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/admin/appointments/a-1/delete").Code)
}

func TestSuccessPage_UnknownAppointment(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/patients/u-1/new-appointment/success?appointmentId=nope").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/patients/u-1/new-appointment/success").Code)
}

// ==========================
// Health
// ==========================

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	f.ready["store"] = func(context.Context) error { return nil }
	assert.Equal(t, http.StatusOK, f.get(t, "/ready").Code)

	f.ready["redis"] = func(context.Context) error { return assert.AnError }
	w = f.get(t, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"unavailable"`)

	assert.Equal(t, http.StatusOK, f.get(t, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/nowhere").Code)
}
