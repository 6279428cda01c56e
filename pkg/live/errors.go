package live

import (
	"errors"
	"fmt"
)

// Sentinel errors for the live package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("live: API key is required")

	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.New("live: not connected")

	// ErrSetupFailed indicates the server rejected the setup message.
	ErrSetupFailed = errors.New("live: setup failed")

	// ErrSessionClosed indicates the session was closed.
	ErrSessionClosed = errors.New("live: session closed")

	// ErrSendFailed indicates sending a message failed.
	ErrSendFailed = errors.New("live: send failed")

	// ErrInvalidMessage indicates a malformed server message.
	ErrInvalidMessage = errors.New("live: invalid message")

	// ErrGoAway indicates the server asked the client to disconnect.
	ErrGoAway = errors.New("live: server going away")
)

// APIError represents an error reported by the Gemini API.
type APIError struct {
	// Code is the gRPC-style status code.
	Code int

	// Status is the status name (e.g., "INVALID_ARGUMENT").
	Status string

	// Message is the human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("live: API error [%s]: %s", e.Status, e.Message)
	}
	if e.Code != 0 {
		return fmt.Sprintf("live: API error (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("live: API error: %s", e.Message)
}

// IsRetryable returns true if a new session may succeed.
func (e *APIError) IsRetryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// ConnectionError represents a WebSocket transport error.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates whether reconnecting is worth attempting.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("live: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("live: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection should be attempted.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{
		Reason:    reason,
		Cause:     cause,
		Retryable: retryable,
	}
}

// IsRetryable returns true if the error suggests a new session may succeed.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}
