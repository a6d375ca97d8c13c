// Package web serves the CarePulse pages over gin: the patient intake and
// booking forms and the admin dashboard.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carepulse/internal/actions"
	"carepulse/internal/catalog"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/observability"
	"carepulse/internal/forms/controller"
	"carepulse/internal/forms/render"
	"carepulse/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

// PatientActions is the persistence the intake and registration pages use.
type PatientActions interface {
	CreateUser(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	RegisterPatient(ctx context.Context, params models.RegisterPatientParams) (*models.Patient, error)
	GetPatient(ctx context.Context, userID string) (*models.Patient, error)
}

// AppointmentActions is the persistence the booking and admin pages use.
type AppointmentActions interface {
	CreateAppointment(ctx context.Context, params models.CreateAppointmentParams) (*models.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID string) (*models.Appointment, error)
	UpdateAppointment(ctx context.Context, params models.UpdateAppointmentParams) (*models.Appointment, error)
	GetRecentAppointmentList(ctx context.Context) (*models.AppointmentList, error)
}

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

type Config struct {
	// Location is the zone times are shown in and submitted dates are read in.
	Location     *time.Location
	ReadyTimeout time.Duration
}

type Deps struct {
	Patients      PatientActions
	Appointments  AppointmentActions
	Catalog       *catalog.Catalog
	Renderer      *render.Renderer
	Validator     controller.Validator
	Guard         controller.Guard
	Observability *observability.Observability
	Readiness     map[string]ReadinessCheck
	Now           func() time.Time
}

type Server struct {
	config *Config
	deps   Deps
	pages  *pageSet
	logger logger.Logger
}

func NewServer(config *Config, deps Deps, log logger.Logger) (*Server, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 2 * time.Second
	}
	if deps.Patients == nil || deps.Appointments == nil || deps.Catalog == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("web: actions, catalog and renderer are required")
	}
	if deps.Guard == nil {
		deps.Guard = controller.NewLocalGuard()
	}
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	pages, err := newPageSet()
	if err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		deps:   deps,
		pages:  pages,
		logger: log.WithFields(map[string]interface{}{"component": "web"}),
	}, nil
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", s.userPage)
	r.POST("/", s.userPage)

	patients := r.Group("/patients/:userId")
	{
		patients.GET("/register", s.registerPage)
		patients.POST("/register", s.registerPage)
		patients.GET("/new-appointment", s.newAppointmentPage)
		patients.POST("/new-appointment", s.newAppointmentPage)
		patients.GET("/new-appointment/success", s.successPage)
	}

	admin := r.Group(actions.AdminPath)
	{
		admin.GET("", s.adminPage)
		admin.GET("/appointments/:appointmentId/:purpose", s.updateAppointmentPage)
		admin.POST("/appointments/:appointmentId/:purpose", s.updateAppointmentPage)
	}

	r.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "Page not found", "The page you are looking for does not exist.")
	})
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := s.deps.Observability.StartSpan(c.Request.Context(), "http "+c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		var spanErr error
		if status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("http status %d", status)
		}
		observability.EndSpan(span, spanErr)

		if route == "/metrics" || route == "/healthz" {
			return
		}
		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start).String(),
		}
		log := observability.WithTrace(ctx, s.logger)
		if spanErr != nil {
			log.Error("request failed", fields)
			return
		}
		log.Info("request served", fields)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   s.deps.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ReadyTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Readiness))
	status := http.StatusOK
	for name, check := range s.deps.Readiness {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   s.deps.Now().UTC().Format(time.RFC3339),
	})
}
