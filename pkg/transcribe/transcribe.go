// Package transcribe turns recorded speech into text with the Gemini SDK.
// Dictation audio from the watch arrives as WAV bytes; the model returns
// the spoken words.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel handles transcription.
const DefaultModel = "gemini-2.0-flash"

// instruction keeps the model from editorializing.
const instruction = "Transcribe this audio and return only the transcribed text."

// Sentinel errors.
var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("transcribe: API key required")

	// ErrEmptyAudio is returned when there is nothing to transcribe.
	ErrEmptyAudio = errors.New("transcribe: empty audio")

	// ErrNoTranscript is returned when the model produced no text.
	ErrNoTranscript = errors.New("transcribe: no transcript in response")
)

// Config configures a Transcriber.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model overrides DefaultModel.
	Model string

	// Logger for request events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Transcriber transcribes WAV audio.
type Transcriber struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// New creates a Transcriber.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: create client: %w", err)
	}

	return &Transcriber{
		client: client,
		model:  cfg.Model,
		logger: cfg.Logger.With("component", "transcribe"),
	}, nil
}

// Transcribe sends WAV bytes to the model and returns the spoken text.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", ErrEmptyAudio
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction),
			{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: wav}},
		}, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe: generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrNoTranscript
	}

	t.logger.Debug("audio transcribed", "bytes", len(wav), "chars", len(text))
	return text, nil
}
