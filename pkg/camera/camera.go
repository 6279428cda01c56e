// Package camera provides video frame sources for the scout: a local camera
// (via OpenCV), a screen grabber, and a mock for tests. Sources hand out
// JPEG-encoded frames; Thumbnail downscales them before they go to the model.
package camera

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors for the camera package.
var (
	// ErrNotStarted indicates Grab was called before Start.
	ErrNotStarted = errors.New("camera: source not started")

	// ErrDeviceUnavailable indicates the capture device could not be opened.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrCaptureFailed indicates a frame could not be read from the device.
	ErrCaptureFailed = errors.New("camera: capture failed")

	// ErrNoDisplay indicates no display is available for screen capture.
	ErrNoDisplay = errors.New("camera: no display available")
)

// Frame is one captured video frame, JPEG-encoded.
type Frame struct {
	// Data is the encoded JPEG bytes.
	Data []byte

	// MIME is the encoding MIME type (always "image/jpeg").
	MIME string

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int
}

// Source produces frames from a capture device.
// A source is owned by exactly one task for its lifetime.
type Source interface {
	// Start opens the capture device. Bounded by ctx.
	Start(ctx context.Context) error

	// Stop releases the capture device. Safe to call multiple times.
	Stop() error

	// Grab captures and encodes the next frame, blocking if necessary.
	Grab(ctx context.Context) (*Frame, error)

	// Config returns the source configuration.
	Config() Config

	// Name returns the backend name (e.g., "gocv", "screen", "mock").
	Name() string

	// Close releases all resources.
	io.Closer
}
