package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrMalformedResponse is returned when a successful response lacks required fields
var ErrMalformedResponse = errors.New("malformed response")

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	// Message is the backend's "message" (or "error") field, empty when absent
	Message string
	// Body is the raw response body, truncated
	Body string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Body != "" {
		return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("request failed (status %d)", e.StatusCode)
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}

	return apiErr
}

// TransportError wraps a failure to reach the backend at all
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send request %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of err, or 0 when err is not an *APIError
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsTransient reports whether err means "could not check" rather than
// "definitely rejected": transport failures (including timeouts) and 5xx
// responses. Cancellation by the caller is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	return StatusCode(err) >= 500
}

// MessageOr returns the backend's message carried by err, or fallback
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
