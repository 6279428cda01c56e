package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model == "" {
		t.Error("Model should have a default")
	}
	if cfg.VideoMode != "camera" {
		t.Errorf("VideoMode = %q, want camera", cfg.VideoMode)
	}
	if cfg.Modality != ModalityAuto {
		t.Errorf("Modality = %q, want auto", cfg.Modality)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Field != "APIKey" {
		t.Errorf("Field = %q, want APIKey", cfgErr.Field)
	}
}

func TestValidate_BadVideoMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.VideoMode = "hologram"

	var cfgErr *ConfigError
	if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "VideoMode" {
		t.Errorf("expected VideoMode error, got %v", err)
	}
}

func TestValidate_BadModality(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.Modality = "video"

	var cfgErr *ConfigError
	if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "Modality" {
		t.Errorf("expected Modality error, got %v", err)
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("SCOUT_MODEL", "models/custom-live")
	t.Setenv("SCOUT_VIDEO_MODE", "screen")
	t.Setenv("SCOUT_MODALITY", "text")
	t.Setenv("SCOUT_CAMERA_DEVICE", "2")
	t.Setenv("SCOUT_CLOUD_URL", "ws://relay.example:9000/ws/scout")
	t.Setenv("SCOUT_JOURNAL_PATH", "/var/lib/scout/journal.json")
	t.Setenv("SCOUT_DEBUG", "1")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.APIKey)
	}
	if cfg.Model != "models/custom-live" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.VideoMode != "screen" || cfg.Modality != "text" {
		t.Errorf("VideoMode = %q, Modality = %q", cfg.VideoMode, cfg.Modality)
	}
	if cfg.CameraDevice != 2 {
		t.Errorf("CameraDevice = %d, want 2", cfg.CameraDevice)
	}
	if cfg.CloudURL == "" || !cfg.Debug {
		t.Errorf("CloudURL = %q, Debug = %v", cfg.CloudURL, cfg.Debug)
	}
	if cfg.JournalPath != "/var/lib/scout/journal.json" {
		t.Errorf("JournalPath = %q", cfg.JournalPath)
	}
}

func TestLoadEnvConfig_FlagKeyWins(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-key")

	cfg := DefaultConfig()
	cfg.APIKey = "flag-key"
	cfg.LoadEnvConfig()

	if cfg.APIKey != "flag-key" {
		t.Errorf("APIKey = %q, want flag-key", cfg.APIKey)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "model: models/file-live\nvideo_mode: none\nweb_enabled: true\nweb_port: \"9090\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Model != "models/file-live" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.VideoMode != "none" {
		t.Errorf("VideoMode = %q, want none", cfg.VideoMode)
	}
	if !cfg.WebEnabled || cfg.WebPort != "9090" {
		t.Errorf("WebEnabled = %v, WebPort = %q", cfg.WebEnabled, cfg.WebPort)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Errorf("missing file should not error, got %v", err)
	}
}
