package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"cv-parser/internal/llm"
	"cv-parser/internal/resume"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 30 * time.Second

// ErrMissingCredential is a caller error: no request is made without a credential.
var ErrMissingCredential = errors.New("api credential is required")

// Client turns resume text into a Record with exactly one completion call.
type Client struct {
	completer llm.Completer
	provider  string
	timeout   time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New wraps a completer. provider names it in diagnostics.
func New(completer llm.Completer, provider string, opts ...Option) *Client {
	if completer == nil {
		completer = llm.PlaceholderCompleter{}
	}
	c := &Client{completer: completer, provider: provider, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract returns an OK record or a record carrying the failure status.
// The only error is ErrMissingCredential.
func (c *Client) Extract(ctx context.Context, text, credential string) (resume.Record, error) {
	rec, _, err := c.Attempt(ctx, text, credential)
	return rec, err
}

// Attempt is Extract that also reports whether an API_FAILED outcome is
// transient, so callers that retry can decide without parsing diagnostics.
func (c *Client) Attempt(ctx context.Context, text, credential string) (resume.Record, bool, error) {
	if strings.TrimSpace(credential) == "" {
		return resume.Record{}, false, ErrMissingCredential
	}
	if strings.TrimSpace(text) == "" {
		return resume.Failed(resume.StatusInputEmpty, "resume text is empty"), false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.completer.Complete(callCtx, credential, llm.BuildExtractionRequest(text))
	if err != nil {
		apiErr := c.classify(err)
		return resume.Failed(resume.StatusAPIFailed, Diagnostic(apiErr.Diagnostic(), credential)), apiErr.Retryable(), nil
	}

	fields, err := DecodePayload(raw)
	if err != nil {
		return resume.Failed(resume.StatusParseFailed, parseDiagnostic(err, raw, credential)), false, nil
	}
	return resume.Extracted(fields), false, nil
}

func (c *Client) classify(err error) *llm.APIError {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Provider == "" {
			apiErr = &llm.APIError{Provider: c.provider, Category: apiErr.Category, StatusCode: apiErr.StatusCode, Err: apiErr.Err}
		}
		return apiErr
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		return &llm.APIError{Provider: c.provider, Category: llm.CategoryBadRequest, Err: err}
	}
	return llm.TransportError(c.provider, err)
}

func parseDiagnostic(err error, raw, credential string) string {
	excerpt := strings.TrimSpace(raw)
	if excerpt == "" {
		return Diagnostic("unparseable model response: "+err.Error(), credential)
	}
	return Diagnostic("unparseable model response: "+err.Error()+"; response: "+excerpt, credential)
}
