package camera

import (
	"context"
	"fmt"
	"log/slog"
)

// NewSource builds a Source for the configured mode.
// ModeNone returns (nil, nil): the caller skips the capture task entirely.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeNone:
		return nil, nil
	case ModeCamera:
		return NewGocvSource(cfg, logger), nil
	case ModeScreen:
		return NewScreenSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("camera: unsupported mode %q", cfg.Mode)
	}
}

// Still captures one frame at the still preset and releases the device.
// For callers that need a single shot without holding the camera open.
func Still(ctx context.Context, cfg Config, logger *slog.Logger) (*Frame, error) {
	src, err := NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("camera: mode %q has no capture device", cfg.Mode)
	}
	defer src.Close()

	if err := src.Start(ctx); err != nil {
		return nil, err
	}
	return src.Grab(ctx)
}
