package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-parser/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	telemetry.InitWithWriter("info", "json", &buf)
	t.Cleanup(func() { telemetry.InitWithWriter("info", "json", os.Stdout) })

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.PUT("/api/v1/sessions/:id/credential", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/s-1/credential", strings.NewReader(`{"api_key":"sk-secret"}`))
	req.Header.Set("X-Request-Id", "req-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &payload))

	for _, key := range []string{"request_id", "duration_ms", "status", "method", "path", "session_id"} {
		assert.Contains(t, payload, key)
	}
	assert.Equal(t, "req-1", payload["request_id"])
	assert.Equal(t, "s-1", payload["session_id"])
	assert.EqualValues(t, http.StatusNoContent, payload["status"])
	assert.NotContains(t, buf.String(), "sk-secret")
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	id := resp.Header().Get("X-Request-Id")
	assert.Len(t, id, 36)
	assert.Equal(t, id, resp.Body.String())
}
