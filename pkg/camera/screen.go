package camera

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"sync"

	"github.com/kbinani/screenshot"
)

// ScreenSource captures the primary display instead of a camera. Useful for
// demoing the live session on a machine without a camera attached.
type ScreenSource struct {
	cfg     Config
	logger  *slog.Logger
	display int

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewScreenSource creates a screen capture source for the primary display.
func NewScreenSource(cfg Config, logger *slog.Logger) *ScreenSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenSource{
		cfg:    cfg,
		logger: logger.With("component", "camera.screen"),
	}
}

// Start verifies a display is present.
func (s *ScreenSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrDeviceUnavailable
	}
	if screenshot.NumActiveDisplays() < 1 {
		return ErrNoDisplay
	}
	s.started = true

	bounds := screenshot.GetDisplayBounds(s.display)
	s.logger.Info("screen capture ready",
		"display", s.display,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
	)
	return nil
}

// Grab captures the display and JPEG-encodes it.
func (s *ScreenSource) Grab(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	started := s.started
	display := s.display
	s.mu.Unlock()

	if !started {
		return nil, ErrNotStarted
	}

	img, err := screenshot.CaptureDisplay(display)
	if err != nil {
		return nil, ErrCaptureFailed
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.Quality}); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &Frame{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// Stop marks the source stopped. Safe to call multiple times.
func (s *ScreenSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// Config returns the capture configuration.
func (s *ScreenSource) Config() Config {
	return s.cfg
}

// Name returns "screen".
func (s *ScreenSource) Name() string {
	return "screen"
}

// Close releases all resources.
func (s *ScreenSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.started = false
	return nil
}

var _ Source = (*ScreenSource)(nil)
