package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"cv-parser/internal/llm"
)

const (
	providerName   = "gemini"
	defaultTimeout = 30 * time.Second
)

// Client implements llm.Completer using the Gemini API.
type Client struct {
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(url)
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a Gemini completer for model.
func NewClient(model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Gemini")
	}
	c := &Client{
		model:      strings.TrimSpace(model),
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends one GenerateContent request. System messages become the
// system instruction; the remaining messages are sent as user content.
func (c *Client) Complete(ctx context.Context, apiKey string, in llm.Request) (string, error) {
	if err := llm.ValidateAPIKey(providerName, apiKey); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", &llm.APIError{Provider: providerName, Category: llm.CategoryCredential, Err: err}
	}

	var system []string
	var contents []*genai.Content
	for _, m := range in.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if in.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", classify(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", &llm.APIError{Provider: providerName, Category: llm.CategoryEmptyResponse}
	}
	return strings.TrimSpace(result.Text()), nil
}

func classify(err error) *llm.APIError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &llm.APIError{Provider: providerName, Category: llm.CategoryForStatus(apiErr.Code), StatusCode: apiErr.Code}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code > 0 {
		return &llm.APIError{Provider: providerName, Category: llm.CategoryForStatus(apiErrPtr.Code), StatusCode: apiErrPtr.Code}
	}
	return llm.TransportError(providerName, err)
}

var _ llm.Completer = (*Client)(nil)
