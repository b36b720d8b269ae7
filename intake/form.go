// Package intake hosts the guest registration workflow: the editable form
// model, camera capture, advisory ID verification and submission.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"guest-intake/intake/api"
	"guest-intake/intake/capture"
	"guest-intake/intake/form"
	"guest-intake/intake/imagecodec"
	"guest-intake/intake/submission"
	"guest-intake/intake/validation"
	"guest-intake/intake/verification"
)

// ErrClosed is returned by operations on a torn-down form.
var ErrClosed = errors.New("intake: form is closed")

const registerFailedMessage = "Registration failed. Please try again."

// Backend is the set of endpoints the workflow depends on. *api.Client
// implements it.
type Backend interface {
	verification.Uploader
	verification.Matcher
	submission.Registrar
}

// Form is the top-level state container for one registration screen. All
// methods are safe for concurrent use.
type Form struct {
	logger       *zap.Logger
	notifier     Notifier
	onRegistered func(api.RegisterResponse)

	session   *capture.Session
	verifier  *verification.Orchestrator
	submitter *submission.Orchestrator

	mu     sync.Mutex
	model  *form.Model
	target form.CaptureTarget
	closed bool
}

type settings struct {
	logger       *zap.Logger
	notifier     Notifier
	now          func() time.Time
	onRegistered func(api.RegisterResponse)
	verifyOpts   []verification.Option
	rules        []validation.Option
}

type Option func(*settings)

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *settings) { s.notifier = n }
}

// WithClock sets the clock used for age derivation.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithOnRegistered registers the host callback run after a successful
// registration, e.g. to refresh a guest list.
func WithOnRegistered(fn func(api.RegisterResponse)) Option {
	return func(s *settings) { s.onRegistered = fn }
}

func WithVerification(opts ...verification.Option) Option {
	return func(s *settings) { s.verifyOpts = append(s.verifyOpts, opts...) }
}

func WithValidation(opts ...validation.Option) Option {
	return func(s *settings) { s.rules = append(s.rules, opts...) }
}

// New builds a form bound to backend and camera. camera may be nil, in
// which case every capture attempt reports capture.ErrNoCamera.
func New(backend Backend, camera capture.Camera, opts ...Option) *Form {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}

	verifyOpts := append([]verification.Option{
		verification.WithLogger(s.logger.Named("verification")),
		verification.WithNotifier(s.notifier),
	}, s.verifyOpts...)

	return &Form{
		logger:       s.logger,
		notifier:     s.notifier,
		onRegistered: s.onRegistered,
		session:      capture.NewSession(camera, capture.WithLogger(s.logger.Named("capture"))),
		verifier:     verification.New(backend, backend, verifyOpts...),
		submitter: submission.New(backend,
			submission.WithLogger(s.logger.Named("submission")),
			submission.WithValidation(s.rules...)),
		model: form.New(form.WithClock(s.now)),
	}
}

// mutate runs fn against the model and re-arms verification when the
// primary name or ID front image changed.
func (f *Form) mutate(fn func(m *form.Model) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	name, front := f.model.Primary.Name, f.model.Primary.IDImageFront
	if err := fn(f.model); err != nil {
		return err
	}
	if f.model.Primary.Name != name || f.model.Primary.IDImageFront != front {
		f.verifier.Trigger(f.model.Primary.Name, f.model.Primary.IDImageFront)
	}
	return nil
}

// SetField applies a legacy string path such as "adults[1].idNumber".
func (f *Form) SetField(path, value string) error {
	return f.mutate(func(m *form.Model) error { return m.SetPath(path, value) })
}

func (f *Form) SetPrimary(field form.Field, value string) error {
	return f.mutate(func(m *form.Model) error { return m.SetPrimary(field, value) })
}

func (f *Form) SetGuest(ref form.GuestRef, field form.Field, value string) error {
	return f.mutate(func(m *form.Model) error { return m.SetGuest(ref, field, value) })
}

func (f *Form) SetImage(ref form.GuestRef, field form.ImageField, img imagecodec.Reference) error {
	return f.mutate(func(m *form.Model) error { return m.SetImage(ref, field, img) })
}

// AddGuest appends a blank accompanying guest and returns its position
// and stable reference.
func (f *Form) AddGuest(kind form.Kind) (int, form.GuestRef, error) {
	var (
		idx int
		id  form.GuestID
	)
	err := f.mutate(func(m *form.Model) error {
		var err error
		idx, id, err = m.AddGuest(kind)
		return err
	})
	if err != nil {
		return -1, form.GuestRef{}, err
	}
	return idx, form.GuestRef{Kind: kind, ID: id}, nil
}

// RemoveGuest removes by position. An open capture aimed at the removed
// guest is cancelled.
func (f *Form) RemoveGuest(kind form.Kind, index int) error {
	return f.mutate(func(m *form.Model) error {
		ref, err := m.Ref(kind, index)
		if err != nil {
			return err
		}
		if err := m.RemoveGuest(kind, index); err != nil {
			return err
		}
		if f.target.Guest == ref {
			f.session.Cancel()
			f.target = form.CaptureTarget{}
		}
		return nil
	})
}

// OpenCapture starts a camera session aimed at target. On failure no
// capture is open and the host may retry or give up.
func (f *Form) OpenCapture(ctx context.Context, target form.CaptureTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if target.IsZero() {
		return fmt.Errorf("%w: empty capture target", form.ErrUnknownField)
	}
	if _, err := f.model.Guest(target.Guest); err != nil {
		return err
	}
	if err := f.session.Open(ctx, target.DestinationKey()); err != nil {
		return err
	}
	f.target = target
	return nil
}

// Capture takes the photo for the open target and stores it.
func (f *Form) Capture() (imagecodec.Reference, error) {
	var ref imagecodec.Reference
	err := f.mutate(func(m *form.Model) error {
		target := f.target
		if target.IsZero() {
			return capture.ErrNotOpen
		}
		f.target = form.CaptureTarget{}
		img, err := f.session.Capture()
		if err != nil {
			return err
		}
		ref = img
		return m.SetImage(target.Guest, target.Field, img)
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// CancelCapture closes the camera without changing the model.
func (f *Form) CancelCapture() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Cancel()
	f.target = form.CaptureTarget{}
}

// CaptureTarget is the slot an open capture will fill; zero when none.
func (f *Form) CaptureTarget() form.CaptureTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

// Snapshot returns a deep copy of the current model.
func (f *Form) Snapshot() form.Model {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model.Snapshot()
}

// Verification returns the advisory status of the primary ID.
func (f *Form) Verification() verification.State {
	return f.verifier.Status()
}

// Submitting reports whether a submission is in flight; hosts disable the
// submit control while it is true.
func (f *Form) Submitting() bool {
	return f.submitter.InFlight()
}

// Submit validates and posts the registration. Validation failures set the
// error map; backend failures leave every input untouched. Verification
// status does not gate submission.
//
// On success the form is reset, so edits made while the request was in
// flight are discarded. A form closed during the request is left alone and
// no notification or OnRegistered callback fires.
func (f *Form) Submit(ctx context.Context) (*api.RegisterResponse, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	snap := f.model.Snapshot()
	f.mu.Unlock()

	resp, err := f.submitter.Submit(ctx, snap)

	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		f.mu.Lock()
		f.model.SetErrors(verr.Result.Errors)
		f.mu.Unlock()
		f.notifier.Error(verr.Result.Summary())
		return nil, err
	case errors.Is(err, submission.ErrInFlight):
		return nil, err
	case err != nil:
		f.notifier.Error(api.MessageOf(err, registerFailedMessage))
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return resp, nil
	}
	f.model.Reset()
	f.session.Cancel()
	f.target = form.CaptureTarget{}
	f.mu.Unlock()
	f.verifier.Reset()

	msg := resp.Message
	if msg == "" {
		msg = "Guest registered successfully"
	}
	f.notifier.Success(msg)
	if f.onRegistered != nil {
		f.onRegistered(*resp)
	}
	return resp, nil
}

// Close tears the form down: the camera is released and pending
// verification can no longer write status.
func (f *Form) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.session.Cancel()
	f.target = form.CaptureTarget{}
	f.mu.Unlock()
	f.verifier.Close()
}

// WaitVerification blocks until no verification is pending.
func (f *Form) WaitVerification() {
	f.verifier.Wait()
}
