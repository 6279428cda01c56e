// Package audioio provides audio capture and playback for the scout device.
//
// This package supports multiple backends:
//   - ALSA (Linux) - Production use on Raspberry Pi, via arecord/aplay pipes
//   - SoX (macOS) - Development on Mac, via rec/play pipes
//   - Mock - CI/Testing without hardware
//
// The backend is selected automatically based on the platform, or can be
// explicitly specified via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendALSA uses the ALSA arecord/aplay tools for audio I/O.
	BackendALSA Backend = "alsa"
	// BackendSox uses the SoX rec/play tools for audio I/O.
	BackendSox Backend = "sox"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Sample rates and chunk size used by the live session.
// Capture feeds the model at 16 kHz; the model returns audio at 24 kHz.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
	ChunkSamples       = 1024
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// ChunkSamples is the number of samples per chunk and per channel.
	// Default: 1024 (64ms at 16kHz)
	ChunkSamples int `yaml:"chunk_samples" json:"chunk_samples"`

	// Device is the platform-specific device identifier.
	// Examples:
	//   - ALSA: "hw:0,0", "default", "plughw:1,0"
	//   - SoX: ignored (system default)
	//   - Mock: ignored
	Device string `yaml:"device" json:"device"`
}

// CaptureConfig returns the microphone configuration the live session
// expects: 16kHz mono in 1024-sample chunks.
func CaptureConfig() Config {
	return Config{
		Backend:      BackendAuto,
		SampleRate:   CaptureSampleRate,
		Channels:     1,
		ChunkSamples: ChunkSamples,
		Device:       "",
	}
}

// PlaybackConfig returns the speaker configuration for model audio:
// 24kHz mono in 1024-sample chunks.
func PlaybackConfig() Config {
	return Config{
		Backend:      BackendAuto,
		SampleRate:   PlaybackSampleRate,
		Channels:     1,
		ChunkSamples: ChunkSamples,
		Device:       "",
	}
}

// DefaultConfig returns a Config with capture defaults.
func DefaultConfig() Config {
	return CaptureConfig()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.ChunkSamples <= 0 {
		return fmt.Errorf("chunk_samples must be positive, got %d", c.ChunkSamples)
	}
	return nil
}

// ChunkBytes returns the size of one chunk in bytes (int16 samples).
func (c *Config) ChunkBytes() int {
	return c.ChunkSamples * c.Channels * 2
}

// ChunkDuration returns the wall-clock duration of one chunk.
func (c *Config) ChunkDuration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(c.ChunkSamples) / float64(c.SampleRate) * float64(time.Second))
}
