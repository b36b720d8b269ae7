// Package verification cross-checks the primary guest's photographed ID
// against the typed name. Results are advisory and never block the form.
package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"guest-intake/intake/api"
	"guest-intake/intake/imagecodec"
)

const (
	DefaultDebounce = time.Second
	DefaultTimeout  = 12 * time.Second
)

// Phase of the verification status.
type Phase string

const (
	PhaseIdle      Phase = ""
	PhaseVerifying Phase = "verifying"
	PhaseSuccess   Phase = "success"
	PhaseFailed    Phase = "failed"
)

// State is the status shown next to the primary ID photo.
type State struct {
	Phase   Phase
	Message string
}

type Uploader interface {
	UploadImage(ctx context.Context, blob *imagecodec.Blob) (string, error)
}

type Matcher interface {
	VerifyIDText(ctx context.Context, imageURL, name string) (api.MatchResult, error)
}

// Notifier surfaces transient error messages to staff.
type Notifier interface {
	Error(msg string)
}

type Orchestrator struct {
	uploader Uploader
	matcher  Matcher
	debounce time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	notifier Notifier
	listener func(State)

	mu        sync.Mutex
	timer     *time.Timer
	triggers  uint64 // bumped per Trigger; a firing timer must match it
	runs      uint64 // bumped per started run; results must match it
	cancelRun context.CancelFunc
	pending   request
	state     State
	version   uint64
	closed    bool
	wg        sync.WaitGroup

	emitMu  sync.Mutex
	emitted uint64
}

type request struct {
	name  string
	image imagecodec.Reference
}

type Option func(*Orchestrator)

func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) { o.debounce = d }
}

// WithTimeout bounds the upload and match calls of one run.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithStatusListener registers a callback invoked on every applied status
// change, in order. It must not call back into the orchestrator.
func WithStatusListener(fn func(State)) Option {
	return func(o *Orchestrator) { o.listener = fn }
}

func New(uploader Uploader, matcher Matcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		uploader: uploader,
		matcher:  matcher,
		debounce: DefaultDebounce,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the current verification state.
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Trigger records the latest name and ID image and restarts the debounce
// window. Only the last trigger inside a window proceeds.
func (o *Orchestrator) Trigger(name string, image imagecodec.Reference) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.pending = request{name: name, image: image}
	o.stopTimerLocked()
	o.triggers++
	gen := o.triggers
	o.wg.Add(1)
	o.timer = time.AfterFunc(o.debounce, func() { o.fire(gen) })
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil && o.timer.Stop() {
		o.wg.Done()
	}
	o.timer = nil
}

func (o *Orchestrator) fire(gen uint64) {
	defer o.wg.Done()

	o.mu.Lock()
	if o.closed || gen != o.triggers {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	req := o.pending
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	o.runs++
	// Incomplete inputs only retire any in-flight run; the status stays.
	if strings.TrimSpace(req.name) == "" || req.image.IsZero() {
		o.mu.Unlock()
		return
	}
	seq := o.runs
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	o.cancelRun = cancel
	v := o.setLocked(State{Phase: PhaseVerifying})
	o.mu.Unlock()
	o.emit(v, State{Phase: PhaseVerifying})

	defer cancel()
	o.run(ctx, seq, req)
}

func (o *Orchestrator) run(ctx context.Context, seq uint64, req request) {
	log := o.logger.With(zap.Uint64("run", seq))

	blob, err := imagecodec.Decode(req.image, "idImageFront")
	if err != nil {
		log.Warn("id image decode failed", zap.Error(err))
		o.finish(seq, State{Phase: PhaseFailed, Message: "The ID photo could not be read"}, true)
		return
	}

	url, err := o.uploader.UploadImage(ctx, blob)
	if err != nil {
		log.Warn("id image upload failed", zap.Error(err))
		o.finish(seq, State{Phase: PhaseFailed, Message: failureMessage(ctx, err, "Could not upload the ID photo")}, true)
		return
	}

	res, err := o.matcher.VerifyIDText(ctx, url, req.name)
	if err != nil {
		log.Warn("id match request failed", zap.Error(err))
		o.finish(seq, State{Phase: PhaseFailed, Message: failureMessage(ctx, err, "Could not verify the ID")}, true)
		return
	}

	st := State{Phase: PhaseFailed, Message: res.Message}
	if res.Match {
		st.Phase = PhaseSuccess
	}
	if st.Message == "" {
		st.Message = defaultMessage(res.Match)
	}
	log.Debug("id match finished", zap.Bool("match", res.Match))
	o.finish(seq, st, false)
}

func failureMessage(ctx context.Context, err error, fallback string) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "Verification timed out"
	}
	return api.MessageOf(err, fallback)
}

func defaultMessage(match bool) string {
	if match {
		return "Name matches the ID document"
	}
	return "Name does not match the ID document"
}

// finish applies st only when seq is still the latest run and the
// orchestrator is open. Late results of superseded runs are dropped.
func (o *Orchestrator) finish(seq uint64, st State, notify bool) {
	o.mu.Lock()
	if o.closed || seq != o.runs {
		o.mu.Unlock()
		o.logger.Debug("discarding stale verification result", zap.Uint64("run", seq))
		return
	}
	o.cancelRun = nil
	v := o.setLocked(st)
	o.mu.Unlock()

	o.emit(v, st)
	if notify && o.notifier != nil {
		o.notifier.Error(st.Message)
	}
}

func (o *Orchestrator) setLocked(st State) uint64 {
	o.state = st
	o.version++
	return o.version
}

func (o *Orchestrator) emit(v uint64, st State) {
	if o.listener == nil {
		return
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	if v <= o.emitted {
		return
	}
	o.emitted = v
	o.listener(st)
}

// Reset cancels the pending debounce and any in-flight run, and returns
// the status to idle.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.resetLocked()
	v := o.setLocked(State{})
	o.mu.Unlock()
	o.emit(v, State{})
}

func (o *Orchestrator) resetLocked() {
	o.stopTimerLocked()
	o.triggers++
	o.runs++
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	o.pending = request{}
}

// Close tears the orchestrator down. No status is written afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.resetLocked()
	o.closed = true
}

// Wait blocks until no debounce timer is pending and no run is in flight.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
