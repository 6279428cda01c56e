// Package app wires the scout's components together: camera, microphone,
// speaker, smartwatch, dashboard, and cloud uplink around one live session
// at a time.
package app

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-scout/internal/config"
	"github.com/teslashibe/go-scout/pkg/camera"
	"github.com/teslashibe/go-scout/pkg/live"
	"github.com/teslashibe/go-scout/pkg/watch"
)

// Modality values accepted by Config. "auto" picks audio when a Bluetooth
// speaker is connected and text otherwise.
const (
	ModalityAuto  = "auto"
	ModalityAudio = "audio"
	ModalityText  = "text"
)

// Config holds all configuration for the scout application.
// Flag parsing is done in cmd/scout/main.go; this struct is data only.
type Config struct {
	// APIKey is the Gemini API key. Never read from the config file.
	APIKey string `yaml:"-"`

	// Model is the Live API model for sessions.
	Model string `yaml:"model"`

	// SnapshotModel is the REST model for one-shot snapshot analysis.
	SnapshotModel string `yaml:"snapshot_model"`

	// VideoMode selects the session's video input: camera, screen, none.
	VideoMode string `yaml:"video_mode"`

	// Modality selects reply modality: auto, audio, text.
	Modality string `yaml:"modality"`

	// CameraDevice is the camera device index.
	CameraDevice int `yaml:"camera_device"`

	// WatchPort is the Pebble serial port ("" disables the watch).
	WatchPort string `yaml:"watch_port"`

	// WebPort is the dashboard HTTP port.
	WebPort string `yaml:"web_port"`

	// WebEnabled serves the dashboard when true.
	WebEnabled bool `yaml:"web_enabled"`

	// CloudURL is the fleet relay WebSocket URL ("" disables the uplink).
	CloudURL string `yaml:"cloud_url"`

	// JournalPath overrides the journal store location.
	JournalPath string `yaml:"journal_path"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns sensible defaults for a headless scout.
func DefaultConfig() Config {
	return Config{
		Model:         live.DefaultModel,
		SnapshotModel: "gemini-2.0-flash",
		VideoMode:     string(camera.ModeCamera),
		Modality:      ModalityAuto,
		WatchPort:     watch.DefaultSerialPort,
		WebPort:       "8080",
	}
}

// LoadUserConfig overlays ~/.scout/config.yaml onto the config when the
// file exists. Missing file is not an error.
func (c *Config) LoadUserConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return c.LoadFile(filepath.Join(home, ".scout", "config.yaml"))
}

// LoadFile overlays a YAML config file onto the config.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

// LoadEnvConfig applies environment overrides. Call after flag parsing.
func (c *Config) LoadEnvConfig() {
	if c.APIKey == "" {
		c.APIKey = config.APIKey()
	}
	if v := os.Getenv("SCOUT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("SCOUT_SNAPSHOT_MODEL"); v != "" {
		c.SnapshotModel = v
	}
	if v := os.Getenv("SCOUT_VIDEO_MODE"); v != "" {
		c.VideoMode = v
	}
	if v := os.Getenv("SCOUT_MODALITY"); v != "" {
		c.Modality = v
	}
	if v := os.Getenv("SCOUT_CAMERA_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CameraDevice = n
		}
	}
	if v := os.Getenv("SCOUT_WATCH_PORT"); v != "" {
		c.WatchPort = v
	}
	if v := os.Getenv("SCOUT_WEB_PORT"); v != "" {
		c.WebPort = v
	}
	if v := os.Getenv("SCOUT_CLOUD_URL"); v != "" {
		c.CloudURL = v
	}
	if v := os.Getenv("SCOUT_JOURNAL_PATH"); v != "" {
		c.JournalPath = v
	}
	if v := os.Getenv("SCOUT_DEBUG"); v == "1" || v == "true" {
		c.Debug = true
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "APIKey", Message: "GOOGLE_API_KEY environment variable is required"}
	}
	if !camera.Mode(c.VideoMode).Valid() {
		return &ConfigError{Field: "VideoMode", Message: "video mode must be camera, screen, or none"}
	}
	switch c.Modality {
	case ModalityAuto, ModalityAudio, ModalityText:
	default:
		return &ConfigError{Field: "Modality", Message: "modality must be auto, audio, or text"}
	}
	if c.WebEnabled && c.WebPort == "" {
		return &ConfigError{Field: "WebPort", Message: "web port is required when the dashboard is enabled"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
