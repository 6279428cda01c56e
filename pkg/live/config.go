// Package live implements a client for the Gemini Live API
// (BidiGenerateContent over WebSocket). A Session streams microphone audio
// and camera frames up to the model and demultiplexes the reply stream into
// audio chunks, text fragments, and turn markers.
package live

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultModel is the Live API model used when none is configured.
const DefaultModel = "models/gemini-2.0-flash-live-001"

// Modality selects how the model answers.
type Modality string

const (
	// ModalityAudio requests spoken replies (24kHz PCM).
	ModalityAudio Modality = "AUDIO"
	// ModalityText requests text replies.
	ModalityText Modality = "TEXT"
)

// Valid reports whether the modality is one the API accepts.
func (m Modality) Valid() bool {
	return m == ModalityAudio || m == ModalityText
}

// Config holds session configuration.
type Config struct {
	// APIKey is the Gemini API key. Required.
	APIKey string `yaml:"-" json:"-"`

	// Model is the Live API model identifier.
	// Default: DefaultModel.
	Model string `yaml:"model" json:"model"`

	// Modality selects audio or text replies.
	// Default: ModalityText.
	Modality Modality `yaml:"modality" json:"modality"`

	// SystemInstruction is an optional system prompt.
	SystemInstruction string `yaml:"system_instruction" json:"system_instruction"`

	// ConnectTimeout bounds the dial plus setup handshake.
	// Default: 15s.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`

	// ReadTimeout bounds a single read from the stream.
	// Default: 5m (the model can stay silent between turns).
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// Logger for session events. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
// The API key must still be provided.
func DefaultConfig() Config {
	return Config{
		Model:          DefaultModel,
		Modality:       ModalityText,
		ConnectTimeout: 15 * time.Second,
		ReadTimeout:    5 * time.Minute,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Model == "" {
		return fmt.Errorf("live: model is required")
	}
	if !c.Modality.Valid() {
		return fmt.Errorf("live: invalid modality %q", c.Modality)
	}
	return nil
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Modality == "" {
		c.Modality = def.Modality
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
