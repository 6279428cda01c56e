// Package vision analyzes still images with the Gemini generateContent API.
// It backs the snapshot flow: grab a frame, describe it, optionally ground
// the answer with Google Search.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teslashibe/go-scout/internal/httpc"
)

const (
	// DefaultModel is the stable flash model used for image analysis.
	DefaultModel = "gemini-2.0-flash"

	// DefaultPrompt is used when the caller does not supply one.
	DefaultPrompt = "What is in this image?"

	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	searchInstruction = "You are a helpful assistant that searches the web for " +
		"real-time information. Always use Google Search to find current, accurate " +
		"information. Provide specific details like prices, times, dates, and links " +
		"when available. Be concise but informative."
)

// Config configures an Analyzer.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model overrides DefaultModel.
	Model string

	// BaseURL overrides the Gemini endpoint. Used by tests.
	BaseURL string

	// HTTPClient overrides the shared client. Used by tests.
	HTTPClient *http.Client

	// Logger for request events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Analyzer describes images and answers grounded queries via Gemini.
type Analyzer struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpc.Client
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Analyzer{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger.With("component", "vision"),
	}, nil
}

// Analyze describes a JPEG image. An empty prompt uses DefaultPrompt.
func (a *Analyzer) Analyze(ctx context.Context, jpegData []byte, prompt string) (string, error) {
	if len(jpegData) == 0 {
		return "", ErrEmptyImage
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
					{"inline_data": map[string]string{
						"mime_type": "image/jpeg",
						"data":      base64.StdEncoding.EncodeToString(jpegData),
					}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.7,
			"maxOutputTokens": 1000,
		},
	}

	result, err := a.generate(ctx, payload)
	if err != nil {
		return "", err
	}

	text, err := firstText(result)
	if err != nil {
		return "", err
	}

	a.logger.Debug("image analyzed", "bytes", len(jpegData), "reply_len", len(text))
	return text, nil
}

// Search answers a query with Google Search grounding and appends up to
// three source links when the response carries grounding metadata.
func (a *Analyzer) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": query},
				},
			},
		},
		"tools": []map[string]interface{}{
			{"google_search": map[string]interface{}{}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.2,
			"maxOutputTokens": 300,
		},
		"systemInstruction": map[string]interface{}{
			"parts": []map[string]interface{}{
				{"text": searchInstruction},
			},
		},
	}

	result, err := a.generate(ctx, payload)
	if err != nil {
		return "", err
	}

	text, err := firstText(result)
	if err != nil {
		return "", err
	}
	response := strings.TrimSpace(text)

	meta := result.Candidates[0].GroundingMetadata
	if len(meta.GroundingChunks) > 0 {
		var sources []string
		for i, chunk := range meta.GroundingChunks {
			if i > 2 {
				break
			}
			if chunk.Web.Title != "" {
				sources = append(sources, fmt.Sprintf("%s (%s)", chunk.Web.Title, chunk.Web.URI))
			}
		}
		if len(sources) > 0 {
			response += "\n\nSources: " + strings.Join(sources, ", ")
		}
	}

	return response, nil
}

// generate posts a generateContent payload and decodes the response.
func (a *Analyzer) generate(ctx context.Context, payload map[string]interface{}) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vision: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("vision: decode response: %w", err)
	}
	if result.Error.Message != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: result.Error.Message}
	}

	return &result, nil
}

// firstText extracts the first candidate's first text part.
func firstText(r *generateResponse) (string, error) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoContent
	}
	return r.Candidates[0].Content.Parts[0].Text, nil
}

// generateResponse is the generateContent response shape, including the
// grounding metadata present on search-grounded answers.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason      string `json:"finishReason"`
		GroundingMetadata struct {
			WebSearchQueries []string `json:"webSearchQueries"`
			GroundingChunks  []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}
