// Package providers routes model identifiers to upstream AI providers and
// shapes the chat, image, and audio requests for each of them.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const upstreamHTTPTimeout = 120 * time.Second

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

func newDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: upstreamHTTPTimeout}
}

// APIError is a non-2xx upstream response, carrying the status so handlers
// can propagate it to the UI.
type APIError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

type upstreamError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type upstreamErrorEnvelope struct {
	Error *upstreamError `json:"error,omitempty"`
}

// newAPIError extracts the error message from an upstream error body when
// present, falling back to a snippet of the raw body or the status text.
func newAPIError(provider Provider, statusCode int, body []byte) *APIError {
	if message := decodeUpstreamError(body); message != "" {
		return &APIError{Provider: provider, StatusCode: statusCode, Message: message}
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = fmt.Sprintf("status %d %s", statusCode, http.StatusText(statusCode))
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return &APIError{Provider: provider, StatusCode: statusCode, Message: snippet}
}

func decodeUpstreamError(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope upstreamErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error == nil {
		return ""
	}
	return strings.TrimSpace(envelope.Error.Message)
}
