// Package submission validates a registration snapshot and posts it to the
// backend as one multipart request.
package submission

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"guest-intake/intake/api"
	"guest-intake/intake/form"
	"guest-intake/intake/validation"
)

// ErrInFlight is returned when Submit is called while a submission is
// still running.
var ErrInFlight = errors.New("submission: a registration is already being submitted")

// ValidationError aborts a submission before any network call.
type ValidationError struct {
	Result validation.Result
}

func (e *ValidationError) Error() string {
	return "submission: " + e.Result.Summary()
}

type Registrar interface {
	Register(ctx context.Context, contentType string, body io.Reader) (api.RegisterResponse, error)
}

type Orchestrator struct {
	registrar Registrar
	logger    *zap.Logger
	rules     []validation.Option
	inFlight  atomic.Bool
}

type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithValidation passes options through to validation.Validate.
func WithValidation(opts ...validation.Option) Option {
	return func(o *Orchestrator) { o.rules = append(o.rules, opts...) }
}

func New(registrar Registrar, opts ...Option) *Orchestrator {
	o := &Orchestrator{registrar: registrar, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InFlight reports whether a submission is running.
func (o *Orchestrator) InFlight() bool { return o.inFlight.Load() }

// Validate runs the configured rules against m.
func (o *Orchestrator) Validate(m form.Model) validation.Result {
	return validation.Validate(m, o.rules...)
}

// Submit validates m and, when clean, posts it. The backend call is
// atomic: it either registers everything or nothing.
func (o *Orchestrator) Submit(ctx context.Context, m form.Model) (*api.RegisterResponse, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer o.inFlight.Store(false)

	if res := o.Validate(m); !res.Valid() {
		o.logger.Info("registration rejected by validation", zap.Int("errors", len(res.Errors)))
		return nil, &ValidationError{Result: res}
	}

	payload, err := BuildPayload(m)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("submitting registration",
		zap.Int("bytes", len(payload.Body)),
		zap.Int("parts", len(payload.Parts)),
		zap.Int("adults", m.Adults.Len()),
		zap.Int("children", m.Children.Len()))

	resp, err := o.registrar.Register(ctx, payload.ContentType, bytes.NewReader(payload.Body))
	if err != nil {
		o.logger.Warn("registration failed", zap.Error(err))
		return nil, err
	}
	o.logger.Info("registration stored",
		zap.Uint("registration_id", resp.RegistrationID),
		zap.String("reference", resp.Reference))
	return &resp, nil
}
