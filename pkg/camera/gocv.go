package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// GocvSource captures frames from a local camera through OpenCV.
type GocvSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// NewGocvSource creates a camera source. The device is not opened until Start.
func NewGocvSource(cfg Config, logger *slog.Logger) *GocvSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GocvSource{
		cfg:    cfg,
		logger: logger.With("component", "camera.gocv"),
	}
}

// Start opens the camera and confirms it can produce a frame. The open plus
// first read is bounded by cfg.OpenTimeout so a wedged driver fails the
// session instead of hanging it.
func (s *GocvSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrDeviceUnavailable
	}
	if s.cap != nil {
		return nil
	}

	if s.cfg.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OpenTimeout)
		defer cancel()
	}

	type openResult struct {
		cap *gocv.VideoCapture
		err error
	}
	done := make(chan openResult, 1)

	go func() {
		cap, err := gocv.VideoCaptureDevice(s.cfg.Device)
		if err != nil {
			done <- openResult{err: err}
			return
		}
		cap.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))

		// First-frame check: some drivers open fine and then never
		// deliver a frame.
		probe := gocv.NewMat()
		defer probe.Close()
		if ok := cap.Read(&probe); !ok || probe.Empty() {
			cap.Close()
			done <- openResult{err: ErrCaptureFailed}
			return
		}
		done <- openResult{cap: cap}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: open timed out: %v", ErrDeviceUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("%w: device %d: %v", ErrDeviceUnavailable, s.cfg.Device, res.err)
		}
		s.cap = res.cap
		s.mat = gocv.NewMat()
		s.logger.Info("camera opened",
			"device", s.cfg.Device,
			"width", s.cfg.Width,
			"height", s.cfg.Height,
		)
		return nil
	}
}

// Grab captures and JPEG-encodes one frame.
func (s *GocvSource) Grab(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return nil, ErrNotStarted
	}

	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, ErrCaptureFailed
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat,
		[]int{gocv.IMWriteJpegQuality, s.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrCaptureFailed, err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return &Frame{
		Data:   data,
		MIME:   "image/jpeg",
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
	}, nil
}

// Stop releases the camera. Safe to call multiple times.
func (s *GocvSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap != nil {
		s.cap.Close()
		s.cap = nil
		s.mat.Close()
		s.logger.Info("camera released", "device", s.cfg.Device)
	}
	return nil
}

// Config returns the capture configuration.
func (s *GocvSource) Config() Config {
	return s.cfg
}

// Name returns "gocv".
func (s *GocvSource) Name() string {
	return "gocv"
}

// Close releases all resources.
func (s *GocvSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

var _ Source = (*GocvSource)(nil)
