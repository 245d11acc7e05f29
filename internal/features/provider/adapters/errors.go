package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBaseURL is returned at construction when no base URL is configured.
	ErrMissingBaseURL = errors.New("provider base URL is required")
	// ErrMissingAPIKey is returned at construction when no API key is configured.
	ErrMissingAPIKey = errors.New("provider API key is required")
	// ErrRedirectLoop is returned when the provider redirects to an already
	// visited target. This almost always means a misconfigured base URL.
	ErrRedirectLoop = errors.New("redirect loop detected")
	// ErrMalformedResponse is returned when the body is not a JSON object
	// after all fallbacks.
	ErrMalformedResponse = errors.New("unexpected response from provider")
)

// UpstreamError carries a well-formed failure reported by the provider
// (success: false). It is a business rejection, never retried.
type UpstreamError struct {
	// Message is the human-readable reason reported by the provider.
	Message string
	// StatusCode is the HTTP status of the rejecting response.
	StatusCode int
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider rejected request: %s", e.Message)
}
