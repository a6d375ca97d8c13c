package web

import (
	"net/http"
	"time"

	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/forms/controller"
	"carepulse/internal/forms/pages"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
)

// formPage is the chrome around a form.
type formPage struct {
	Title       string
	Subtitle    string
	Button      string
	ButtonClass string
	// Sections groups the fields under headings. Without it every field is
	// rendered in one untitled group.
	Sections []pages.Section
	TimeZone string
}

type renderedSection struct {
	Heading  string
	Controls []string
}

// redirect captures where a successful submission should go.
type redirect struct {
	url string
}

func (r *redirect) Navigate(url string) { r.url = url }

// serveForm renders def on GET. On POST it submits the posted values and
// either redirects with 303 or renders the form again with the status of
// the failure.
func serveForm[Req, Res any](s *Server, c *gin.Context, def controller.Definition[Req, Res], defaults map[string]interface{}, page formPage) {
	nav := &redirect{}
	ctrl := controller.New(def, defaults, controller.Deps{
		Renderer:  s.deps.Renderer,
		Validator: s.deps.Validator,
		Guard:     s.deps.Guard,
		Navigator: nav,
		Logger:    s.logger,
	})

	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			s.renderError(c, http.StatusBadRequest, "Invalid request", "The submitted form could not be read.")
			return
		}
		_, err := ctrl.Submit(c.Request.Context(), c.Request.PostForm)
		if err == nil {
			c.Redirect(http.StatusSeeOther, nav.url)
			return
		}
		status = http.StatusInternalServerError
		if stdErr, ok := apperrors.AsStandard(err); ok {
			status = apperrors.HTTPStatus(stdErr.Code)
		}
	}

	sections := page.Sections
	if len(sections) == 0 {
		sections = []pages.Section{{Fields: def.Fields}}
	}
	rendered := make([]renderedSection, 0, len(sections))
	for _, section := range sections {
		controls, err := s.deps.Renderer.RenderAll(section.Fields, ctrl.State())
		if err != nil {
			s.logger.Error("form render failed", map[string]interface{}{"form": def.Name, "error": err.Error()})
			s.renderError(c, http.StatusInternalServerError, "Something went wrong", "The form could not be displayed.")
			return
		}
		rendered = append(rendered, renderedSection{Heading: section.Heading, Controls: controls})
	}

	buttonClass := page.ButtonClass
	if buttonClass == "" {
		buttonClass = "shad-primary-btn"
	}
	s.renderPage(c, status, "form.html", pongo2.Context{
		"title":       page.Title,
		"subtitle":    page.Subtitle,
		"action":      c.Request.URL.RequestURI(),
		"token":       ctrl.Token(),
		"timeZone":    page.TimeZone,
		"sections":    rendered,
		"formErrors":  ctrl.State().FormErrors(),
		"button":      page.Button,
		"buttonClass": buttonClass,
	})
}

// timeZone is the zone posted with the form, or the server's zone when the
// posted one is missing or unknown.
func (s *Server) timeZone(c *gin.Context) string {
	if tz := c.PostForm("timeZone"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	return s.config.Location.String()
}
