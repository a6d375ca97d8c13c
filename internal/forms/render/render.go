// Package render turns field descriptors into HTML controls bound to a form
// state, and flows submitted values back through the same bindings.
package render

import (
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"sync"
	"time"

	"carepulse/internal/forms/field"
	"carepulse/internal/forms/formstate"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.tpl
var templateFS embed.FS

// Renderer renders controls from an embedded pongo2 template set.
type Renderer struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template

	region   string
	location *time.Location
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithDefaultRegion sets the region used to interpret phone numbers typed
// without a country calling code.
func WithDefaultRegion(region string) Option {
	return func(r *Renderer) {
		if region != "" {
			r.region = region
		}
	}
}

// WithLocation sets the zone used to interpret submitted dates.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.location = loc
		}
	}
}

func New(opts ...Option) (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("render: open templates: %w", err)
	}

	r := &Renderer{
		set:       pongo2.NewSet("carepulse-controls", pongo2.NewFSLoader(sub)),
		templates: make(map[string]*pongo2.Template),
		region:    field.DefaultPhoneCountry,
		location:  time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// FieldError is a value that could not be converted into its binding type.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// control is one kind's view of a bound field.
type control interface {
	template() string
	context() (pongo2.Context, error)
	decode(raw []string) error
}

// controlFor dispatches on the closed kind set. A kind without a branch here
// has no control and renders nothing.
func (r *Renderer) controlFor(d field.Descriptor, s *formstate.State) (control, bool) {
	switch d.Kind {
	case field.KindInput:
		return newTextControl(d, s, "input.tpl"), true
	case field.KindTextarea:
		return newTextControl(d, s, "textarea.tpl"), true
	case field.KindPhoneInput:
		return &phoneControl{desc: d, binding: formstate.Bind[string](s, d.Name), region: r.region}, true
	case field.KindCheckbox:
		return &checkboxControl{desc: d, binding: formstate.Bind[bool](s, d.Name)}, true
	case field.KindDatePicker:
		return &dateControl{desc: d, binding: formstate.Bind[time.Time](s, d.Name), location: r.location}, true
	case field.KindSelect:
		return &selectControl{desc: d, binding: formstate.Bind[string](s, d.Name)}, true
	case field.KindSkeleton:
		return &slotControl{desc: d, binding: formstate.Bind[string](s, d.Name)}, true
	case field.KindUnknown:
	}
	return nil, false
}

// Render produces the control for d wrapped in its label and first error.
// An unrecognised kind renders as the empty string without error.
func (r *Renderer) Render(d field.Descriptor, s *formstate.State) (string, error) {
	c, ok := r.controlFor(d, s)
	if !ok {
		return "", nil
	}

	ctx, err := c.context()
	if err != nil {
		return "", fmt.Errorf("render %s %q: %w", d.Kind, d.Name, err)
	}
	inner, err := r.execute(c.template(), ctx)
	if err != nil {
		return "", fmt.Errorf("render %s %q: %w", d.Kind, d.Name, err)
	}

	var firstErr string
	if errs := s.FieldErrors(d.Name); len(errs) > 0 {
		firstErr = errs[0]
	}

	return r.execute("field.tpl", pongo2.Context{
		"kind":      d.Kind.String(),
		"name":      d.Name,
		"label":     d.Label,
		"hideLabel": d.Kind == field.KindCheckbox,
		"control":   inner,
		"error":     firstErr,
	})
}

// RenderAll renders every descriptor in order, skipping empty renders.
func (r *Renderer) RenderAll(ds []field.Descriptor, s *formstate.State) ([]string, error) {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		html, err := r.Render(d, s)
		if err != nil {
			return nil, err
		}
		if html != "" {
			out = append(out, html)
		}
	}
	return out, nil
}

// Decode writes the submitted value of d into s through the kind's binding.
// Unrecognised kinds are ignored.
func (r *Renderer) Decode(d field.Descriptor, s *formstate.State, form url.Values) error {
	if d.Disabled {
		return nil
	}
	c, ok := r.controlFor(d, s)
	if !ok {
		return nil
	}
	return c.decode(form[d.Name])
}

// DecodeAll decodes every descriptor and returns the conversion failures.
func (r *Renderer) DecodeAll(ds []field.Descriptor, s *formstate.State, form url.Values) []*FieldError {
	var errs []*FieldError
	for _, d := range ds {
		if err := r.Decode(d, s, form); err != nil {
			fe, ok := err.(*FieldError)
			if !ok {
				fe = &FieldError{Field: d.Name, Message: err.Error()}
			}
			errs = append(errs, fe)
		}
	}
	return errs
}

func (r *Renderer) execute(name string, ctx pongo2.Context) (string, error) {
	tpl, err := r.template(name)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return out, nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.RLock()
	if tpl, ok := r.templates[name]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.templates[name]; ok {
		return tpl, nil
	}

	tpl, err := r.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", name, err)
	}
	r.templates[name] = tpl
	return tpl, nil
}
