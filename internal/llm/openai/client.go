package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"cv-parser/internal/llm"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client implements llm.Completer using OpenAI Chat Completions.
type Client struct {
	model   string
	baseURL string
	timeout time.Duration
	base    http.RoundTripper
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(url), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
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

// WithTransport sets the round tripper underneath the credential transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.base = rt
		}
	}
}

// NewClient constructs a new OpenAI client. No credential is bound here: it
// is supplied on every Complete call.
func NewClient(model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	c := &Client{
		model:   strings.TrimSpace(model),
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		base:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion and returns the assistant content. An
// empty string with a nil error means the provider answered without content.
func (c *Client) Complete(ctx context.Context, apiKey string, in llm.Request) (string, error) {
	if err := llm.ValidateAPIKey(providerName, apiKey); err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(in.Messages)),
	}
	for _, m := range in.Messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if in.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if !isGPT5(c.model) {
		temp := float32(0)
		reqBody.Temperature = &temp
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient(apiKey).Do(req)
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", llm.TransportError(providerName, err)
	}
	if resp.StatusCode >= 400 {
		return "", llm.StatusError(providerName, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &llm.APIError{Provider: providerName, Category: llm.CategoryEmptyResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if parsed.Error != nil {
		return "", &llm.APIError{Provider: providerName, Category: llm.CategoryServer, StatusCode: resp.StatusCode}
	}
	if len(parsed.Choices) == 0 {
		return "", &llm.APIError{Provider: providerName, Category: llm.CategoryEmptyResponse, StatusCode: resp.StatusCode}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// httpClient returns a client that carries apiKey as a bearer token for the
// lifetime of one call.
func (c *Client) httpClient(apiKey string) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}),
			Base:   c.base,
		},
	}
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Completer = (*Client)(nil)
