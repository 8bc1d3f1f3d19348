package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-parser/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGPT5(tt.model))
		})
	}
}

func TestNewClientRequiresModel(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestCompleteSendsBearerAndJSONFormat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"message":{"role":"assistant","content":"  {\"name\":\"Jane\"} "}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient("gpt-4o", WithBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "sk-test", llm.BuildExtractionRequest("Jane"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jane"}`, out)

	assert.Equal(t, "gpt-4o", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, float32(0), *got.Temperature)
	require.Len(t, got.Messages, 2)
}

func TestCompleteClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   llm.Category
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: llm.CategoryAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, want: llm.CategoryRateLimit},
		{name: "server", status: http.StatusServiceUnavailable, want: llm.CategoryServer},
		{name: "bad request", status: http.StatusBadRequest, want: llm.CategoryBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided: sk-sec***ret","type":"invalid_request_error"}}`))
			}))
			defer srv.Close()

			client, err := NewClient("gpt-4o", WithBaseURL(srv.URL))
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), "sk-secret", llm.BuildExtractionRequest("x"))
			var apiErr *llm.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.want, apiErr.Category)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.NotContains(t, err.Error(), "sk-sec")
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, err := NewClient("gpt-4o", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "sk-test", llm.BuildExtractionRequest("x"))
	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, llm.CategoryTimeout, apiErr.Category)
	assert.True(t, apiErr.Retryable())
}

func TestCompleteMalformedKeySkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client, err := NewClient("gpt-4o", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "sk bad", llm.BuildExtractionRequest("x"))
	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, llm.CategoryCredential, apiErr.Category)
	assert.Zero(t, calls.Load())
}

func TestCompleteMissingChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient("gpt-5-mini", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "sk-test", llm.BuildExtractionRequest("x"))
	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, llm.CategoryEmptyResponse, apiErr.Category)
}
