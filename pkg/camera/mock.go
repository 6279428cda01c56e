package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MockSource is a deterministic frame source for tests. It generates small
// solid-color JPEG frames and can be told to start failing mid-run.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	failErr error

	grabs atomic.Int64
}

// NewMockSource creates a mock frame source.
func NewMockSource(cfg Config, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Width == 0 {
		cfg.Width = 64
	}
	if cfg.Height == 0 {
		cfg.Height = 48
	}
	if cfg.Quality == 0 {
		cfg.Quality = 85
	}
	return &MockSource{cfg: cfg, logger: logger}
}

// Start marks the source started.
func (s *MockSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDeviceUnavailable
	}
	s.started = true
	return nil
}

// Grab returns a synthetic JPEG frame, or the injected failure.
func (s *MockSource) Grab(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	started := s.started
	failErr := s.failErr
	s.mu.Unlock()

	if !started {
		return nil, ErrNotStarted
	}
	if failErr != nil {
		return nil, failErr
	}

	n := s.grabs.Add(1)

	// Vary the shade per frame so consecutive frames differ.
	img := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	shade := uint8(n * 16)
	for y := 0; y < s.cfg.Height; y++ {
		for x := 0; x < s.cfg.Width; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.Quality}); err != nil {
		return nil, err
	}

	return &Frame{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
	}, nil
}

// SimulateFailure makes every subsequent Grab return err.
func (s *MockSource) SimulateFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Grabs returns the number of successful Grab calls.
func (s *MockSource) Grabs() int64 {
	return s.grabs.Load()
}

// Stopped reports whether the source has been stopped.
func (s *MockSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.started
}

// Stop marks the source stopped. Safe to call multiple times.
func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// Config returns the capture configuration.
func (s *MockSource) Config() Config {
	return s.cfg
}

// Name returns "mock".
func (s *MockSource) Name() string {
	return "mock"
}

// Close releases all resources.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.started = false
	return nil
}

var _ Source = (*MockSource)(nil)
