package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-parser/internal/llm/gemini"
	"cv-parser/internal/llm/openai"
	"cv-parser/internal/shared/config"
)

func TestBuildCompleterPerProvider(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMProvider = config.ProviderOpenAI
	c, err := BuildCompleter(cfg.Normalize())
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, c)

	cfg.LLMProvider = config.ProviderGemini
	c, err = BuildCompleter(cfg.Normalize())
	require.NoError(t, err)
	assert.IsType(t, &gemini.Client{}, c)

	cfg.LLMProvider = "other"
	_, err = BuildCompleter(cfg)
	assert.Error(t, err)
}

func TestBuildServesSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), config.Defaults())
	require.NoError(t, err)
	require.NotNil(t, app.Router)

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, 1, app.Registry.Len())
}
