// Package controller runs one form for one page visit: it seeds defaults,
// renders the fields, and takes a submission through decoding, validation,
// request building and the persistence action.
package controller

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/common/logger"
	"carepulse/internal/common/metrics"
	"carepulse/internal/common/validation"
	"carepulse/internal/forms/field"
	"carepulse/internal/forms/formstate"
	"carepulse/internal/forms/render"

	"github.com/google/uuid"
)

// TokenField is the hidden input carrying the visit's form token.
const TokenField = "formToken"

// Navigator receives the destination of a successful submission.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

type Validator interface {
	Validate(schema string, values map[string]interface{}) (*validation.ValidationResult, error)
}

// Definition is everything a page declares about its form.
type Definition[Req, Res any] struct {
	// Name labels logs and metrics, e.g. "appointment.create".
	Name   string
	Schema string
	Fields []field.Descriptor
	// Build turns validated values into the request. It returns a
	// MISSING_PRECONDITION error when an identifier the request needs is absent.
	Build func(values map[string]interface{}) (Req, error)
	// Action persists the request. A nil result counts as a failure.
	Action   func(ctx context.Context, req Req) (*Res, error)
	Redirect func(res *Res) string
}

type Deps struct {
	Renderer  *render.Renderer
	Validator Validator
	Guard     Guard
	Navigator Navigator
	Logger    logger.Logger
}

type Controller[Req, Res any] struct {
	def        Definition[Req, Res]
	deps       Deps
	state      *formstate.State
	token      atomic.Value
	errors     *apperrors.ErrorHandler
	logger     logger.Logger
	inProgress atomic.Bool
}

func New[Req, Res any](def Definition[Req, Res], defaults map[string]interface{}, deps Deps) *Controller[Req, Res] {
	if deps.Guard == nil {
		deps.Guard = NewLocalGuard()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	log := deps.Logger.WithFields(map[string]interface{}{"form": def.Name})
	c := &Controller[Req, Res]{
		def:    def,
		deps:   deps,
		state:  formstate.New(defaults),
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
	c.token.Store(uuid.New().String())
	return c
}

func (c *Controller[Req, Res]) Name() string { return c.def.Name }

func (c *Controller[Req, Res]) State() *formstate.State { return c.state }

// Token identifies this form visit across the GET that rendered it and the
// POST that submits it.
func (c *Controller[Req, Res]) Token() string { return c.token.Load().(string) }

func (c *Controller[Req, Res]) InProgress() bool { return c.inProgress.Load() }

// Render returns the markup of every field in declaration order.
func (c *Controller[Req, Res]) Render() ([]string, error) {
	return c.deps.Renderer.RenderAll(c.def.Fields, c.state)
}

// Submit runs one submission. A nil form skips decoding and submits the
// current state. Every returned error is a *StandardError and the matching
// message has been added to the form state.
//
// A posted token replaces the visit token only after the in-progress flag
// is taken, and each submission releases the token it acquired.
func (c *Controller[Req, Res]) Submit(ctx context.Context, form url.Values) (*Res, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		return nil, c.reject(apperrors.NewSubmissionInProgressError(c.def.Name), metrics.OutcomeBusy)
	}
	defer c.inProgress.Store(false)

	token := c.Token()
	if t := form.Get(TokenField); t != "" {
		token = t
		c.token.Store(t)
	}

	acquired, err := c.deps.Guard.TryAcquire(ctx, token)
	if err != nil {
		return nil, c.reject(err, metrics.OutcomeFailed)
	}
	if !acquired {
		return nil, c.reject(apperrors.NewSubmissionInProgressError(c.def.Name), metrics.OutcomeBusy)
	}
	defer func() {
		if err := c.deps.Guard.Release(context.WithoutCancel(ctx), token); err != nil {
			c.logger.Warn("submission lock release failed", map[string]interface{}{"error": err})
		}
	}()

	inFlight := metrics.FormSubmissionsInFlight.WithLabelValues(c.def.Name)
	inFlight.Inc()
	defer inFlight.Dec()

	c.state.ClearErrors()

	if invalid, err := c.validate(form); err != nil {
		return nil, c.reject(err, metrics.OutcomeFailed)
	} else if invalid > 0 {
		return nil, c.reject(apperrors.NewValidationFailedError(c.def.Name, invalid), metrics.OutcomeInvalid)
	}

	req, err := c.def.Build(c.state.Snapshot())
	if err != nil {
		return nil, c.reject(err, metrics.OutcomeIncomplete)
	}

	res, err := c.def.Action(ctx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("%s: persistence returned no result", c.def.Name)
	}
	if err != nil {
		outcome := metrics.OutcomeFailed
		if stdErr, ok := apperrors.AsStandard(err); ok && apperrors.HTTPStatus(stdErr.Code) < 500 {
			outcome = metrics.OutcomeRejected
		}
		return nil, c.reject(err, outcome)
	}

	c.state.Reset()
	metrics.FormSubmissions.WithLabelValues(c.def.Name, metrics.OutcomeSuccess).Inc()
	c.logger.Info("form submitted", nil)
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(c.def.Redirect(res))
	}
	return res, nil
}

// validate decodes form into the state and checks it against the schema. It
// returns how many fields ended up with errors.
func (c *Controller[Req, Res]) validate(form url.Values) (int, error) {
	errs := make(map[string][]string)

	if form != nil {
		for _, fe := range c.deps.Renderer.DecodeAll(c.def.Fields, c.state, form) {
			errs[fe.Field] = append(errs[fe.Field], fe.Message)
		}
	}

	if c.deps.Validator != nil && c.def.Schema != "" {
		result, err := c.deps.Validator.Validate(c.def.Schema, c.state.Snapshot())
		if err != nil {
			return 0, fmt.Errorf("validate %s: %w", c.def.Schema, err)
		}
		if !result.Valid {
			c.logger.Debug("schema validation failed", map[string]interface{}{
				"schema": c.def.Schema,
				"errors": result.GetErrorMessages(),
			})
		}
		for name, msgs := range result.ByField() {
			// A value that failed to decode already explains itself.
			if _, ok := errs[name]; ok {
				continue
			}
			errs[name] = msgs
		}
	}

	for name, msgs := range errs {
		c.state.SetFieldErrors(name, msgs)
	}
	return len(errs), nil
}

func (c *Controller[Req, Res]) reject(err error, outcome string) error {
	metrics.FormSubmissions.WithLabelValues(c.def.Name, outcome).Inc()
	out := c.errors.Describe(err, map[string]interface{}{
		"form":    c.def.Name,
		"outcome": outcome,
	})
	c.state.AddFormError(out.FormMessage)
	return out.Err
}
