// Package capture owns the camera preview lifecycle used to photograph
// identity documents and guest portraits.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"

	"go.uber.org/zap"

	"guest-intake/intake/imagecodec"
)

var (
	ErrNoCamera = errors.New("capture: no camera stream available")
	ErrBusy     = errors.New("capture: a capture session is already open")
	ErrNotOpen  = errors.New("capture: no capture session is open")
)

// Facing selects the physical camera.
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// FacingFor picks the rear camera for document destinations and the front
// camera for everything else.
func FacingFor(destinationKey string) Facing {
	if strings.Contains(strings.ToLower(destinationKey), "id") {
		return FacingEnvironment
	}
	return FacingUser
}

// State of a capture session.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCapturing:
		return "capturing"
	default:
		return "closed"
	}
}

// Camera acquires a live stream for the requested facing mode.
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an acquired camera device. Stop must release it.
type Stream interface {
	Frame() (image.Image, error)
	Stop()
}

const jpegQuality = 92

// Session drives one capture at a time. It is safe for concurrent use.
type Session struct {
	camera Camera
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	stream Stream
	key    string
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSession(camera Camera, opts ...Option) *Session {
	s := &Session{camera: camera, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Destination returns the key the open session will populate.
func (s *Session) Destination() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Open acquires the camera facing the way destinationKey implies. Failures
// leave the session closed so the caller can retry or cancel.
func (s *Session) Open(ctx context.Context, destinationKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return ErrBusy
	}
	if s.camera == nil {
		return ErrNoCamera
	}
	facing := FacingFor(destinationKey)
	stream, err := s.camera.Open(ctx, facing)
	if err != nil {
		s.logger.Warn("camera open failed",
			zap.String("destination", destinationKey),
			zap.String("facing", string(facing)),
			zap.Error(err))
		if errors.Is(err, ErrNoCamera) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	if stream == nil {
		return ErrNoCamera
	}

	s.stream = stream
	s.key = destinationKey
	s.state = StateOpen
	return nil
}

// Capture rasterises the current frame to JPEG and closes the session.
// The stream is released whether or not the capture succeeds.
func (s *Session) Capture() (imagecodec.Reference, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return "", ErrNotOpen
	}
	s.state = StateCapturing
	stream := s.stream
	s.mu.Unlock()

	ref, err := encodeFrame(stream)

	s.mu.Lock()
	// A cancel during encoding may have been followed by a new Open.
	if s.stream == stream {
		s.releaseLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return ref, nil
}

// Cancel closes the session without producing an image.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Session) releaseLocked() {
	if s.stream != nil {
		s.stream.Stop()
	}
	s.stream = nil
	s.key = ""
	s.state = StateClosed
}

func encodeFrame(stream Stream) (imagecodec.Reference, error) {
	frame, err := stream.Frame()
	if err != nil {
		return "", fmt.Errorf("capture: read frame: %w", err)
	}
	if frame == nil {
		return "", errors.New("capture: empty frame")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("capture: encode jpeg: %w", err)
	}
	return imagecodec.Encode("image/jpeg", buf.Bytes()), nil
}
