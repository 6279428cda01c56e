// Package config provides environment configuration helpers for go-scout
// commands.
package config

import (
	"fmt"
	"os"
)

// Environment variables recognized by every scout command.
const (
	EnvAPIKey    = "GOOGLE_API_KEY"
	EnvAPIKeyAlt = "GEMINI_API_KEY"
	EnvLogLevel  = "SCOUT_LOG_LEVEL"
)

// APIKey returns the Gemini API key from GOOGLE_API_KEY, falling back to
// GEMINI_API_KEY. Returns an empty string when neither is set.
func APIKey() string {
	if key := os.Getenv(EnvAPIKey); key != "" {
		return key
	}
	return os.Getenv(EnvAPIKeyAlt)
}

// APIKeyRequired returns the Gemini API key or exits the process.
// Commands call this before opening any device so a missing key fails fast.
func APIKeyRequired() string {
	key := APIKey()
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: GOOGLE_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: GOOGLE_API_KEY=... go run ./cmd/...")
		os.Exit(1)
	}
	return key
}

// Getenv returns the value of an environment variable or a default.
func Getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
