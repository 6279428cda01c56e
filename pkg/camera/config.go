package camera

import (
	"fmt"
	"time"
)

// Mode selects the video input for a live session.
type Mode string

const (
	// ModeCamera streams frames from a local camera.
	ModeCamera Mode = "camera"
	// ModeScreen streams frames from the primary display.
	ModeScreen Mode = "screen"
	// ModeNone disables video.
	ModeNone Mode = "none"
)

// Valid reports whether the mode is recognized.
func (m Mode) Valid() bool {
	switch m {
	case ModeCamera, ModeScreen, ModeNone:
		return true
	}
	return false
}

// Config holds capture configuration.
type Config struct {
	// Mode selects the video input.
	Mode Mode `yaml:"mode" json:"mode"`

	// Device is the camera device index (gocv backend).
	Device int `yaml:"device" json:"device"`

	// Width and Height are the requested capture resolution.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// Quality is the JPEG encode quality (1-100).
	Quality int `yaml:"quality" json:"quality"`

	// OpenTimeout bounds device open plus first-frame acquisition.
	// A device that cannot produce a frame in this window is treated as
	// unavailable rather than hanging the session.
	OpenTimeout time.Duration `yaml:"open_timeout" json:"open_timeout"`
}

// LiveConfig returns the capture preset for live streaming: 800x600,
// thumbnailed to 1024px before upload.
func LiveConfig() Config {
	return Config{
		Mode:        ModeCamera,
		Width:       800,
		Height:      600,
		Quality:     85,
		OpenTimeout: 10 * time.Second,
	}
}

// StillConfig returns the capture preset for one-shot snapshots: 1280x720.
func StillConfig() Config {
	cfg := LiveConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// DefaultConfig returns the live streaming preset.
func DefaultConfig() Config {
	return LiveConfig()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("camera: invalid mode %q (want camera, screen, or none)", c.Mode)
	}
	if c.Mode == ModeNone {
		return nil
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("camera: resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("camera: quality must be 1-100, got %d", c.Quality)
	}
	return nil
}
