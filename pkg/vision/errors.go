package vision

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("vision: API key required")

	// ErrEmptyImage is returned when Analyze is given no image data.
	ErrEmptyImage = errors.New("vision: empty image")

	// ErrEmptyQuery is returned when Search is given a blank query.
	ErrEmptyQuery = errors.New("vision: empty query")

	// ErrNoContent is returned when the API responds without any candidate
	// text.
	ErrNoContent = errors.New("vision: no response content")
)

// APIError is a non-200 response from the Gemini API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API, or the raw body when the
	// body was not a structured error.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("vision: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true for HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true for HTTP 5xx.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// parseAPIError builds an APIError from an error response body, preferring
// the structured message when one is present.
func parseAPIError(status int, body []byte) *APIError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{StatusCode: status, Message: message}
}
