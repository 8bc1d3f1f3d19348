package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Message is one chat turn sent to a completion provider.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion request.
type Request struct {
	Messages []Message
	// JSON asks the provider for a machine-parseable JSON response when it supports it.
	JSON bool
}

// Completer sends one completion request and returns the raw model text.
// The API key is passed per call and must not be retained by implementations.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req Request) (string, error)
}

// Category groups provider failures by cause.
type Category string

const (
	CategoryTimeout       Category = "timeout"
	CategoryTransport     Category = "transport"
	CategoryAuth          Category = "auth"
	CategoryRateLimit     Category = "rate_limit"
	CategoryServer        Category = "server"
	CategoryBadRequest    Category = "bad_request"
	CategoryCredential    Category = "credential"
	CategoryEmptyResponse Category = "empty_response"
)

var categoryText = map[Category]string{
	CategoryTimeout:       "request timed out",
	CategoryTransport:     "transport error",
	CategoryAuth:          "authentication rejected",
	CategoryRateLimit:     "rate limited",
	CategoryServer:        "provider server error",
	CategoryBadRequest:    "request rejected",
	CategoryCredential:    "malformed credential",
	CategoryEmptyResponse: "empty response",
}

// ErrNotConfigured is returned by the placeholder completer.
var ErrNotConfigured = errors.New("llm provider not configured")

// APIError is a classified provider failure. Its message is built only from
// the provider name, category and status code, so it is safe to show or log.
type APIError struct {
	Provider   string
	Category   Category
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return e.Diagnostic()
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Diagnostic is the human-readable failure summary.
func (e *APIError) Diagnostic() string {
	text, ok := categoryText[e.Category]
	if !ok {
		text = string(e.Category)
	}
	provider := e.Provider
	if provider == "" {
		provider = "llm"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s api failed: %s (http %d)", provider, text, e.StatusCode)
	}
	return fmt.Sprintf("%s api failed: %s", provider, text)
}

// Retryable reports whether repeating the same request may succeed.
func (e *APIError) Retryable() bool {
	switch e.Category {
	case CategoryTimeout, CategoryTransport, CategoryRateLimit, CategoryServer:
		return true
	default:
		return false
	}
}

// CategoryForStatus maps an HTTP status code to a failure category.
func CategoryForStatus(code int) Category {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CategoryAuth
	case code == http.StatusTooManyRequests:
		return CategoryRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return CategoryTimeout
	case code >= 500:
		return CategoryServer
	default:
		return CategoryBadRequest
	}
}

// StatusError builds an APIError for a non-2xx response.
func StatusError(provider string, code int) *APIError {
	return &APIError{Provider: provider, Category: CategoryForStatus(code), StatusCode: code}
}

// TransportError classifies a failure that happened before a response was read.
func TransportError(provider string, err error) *APIError {
	return &APIError{Provider: provider, Category: transportCategory(err), Err: err}
}

func transportCategory(err error) Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "client.timeout") {
		return CategoryTimeout
	}
	return CategoryTransport
}

// ValidateAPIKey rejects keys that cannot be sent as a header value.
func ValidateAPIKey(provider, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(apiKey) != apiKey {
		return &APIError{Provider: provider, Category: CategoryCredential}
	}
	for _, r := range apiKey {
		if r < 0x21 || r > 0x7e {
			return &APIError{Provider: provider, Category: CategoryCredential}
		}
	}
	return nil
}

// PlaceholderCompleter is used when no provider is wired.
type PlaceholderCompleter struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderCompleter) Complete(context.Context, string, Request) (string, error) {
	return "", ErrNotConfigured
}
