package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-parser/internal/services/health"
	"cv-parser/internal/session"
	"cv-parser/internal/shared/config"
	"cv-parser/internal/shared/metrics"
	"cv-parser/internal/shared/server/middleware"
	"cv-parser/internal/shared/server/respond"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
// A nil health service reports liveness only.
func NewRouter(cfg config.Config, sessions *session.Handler, hs *health.Service) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: func(c *gin.Context) string {
				if session.IsExtractRoute(c) {
					return middleware.ExtractGroup
				}
				return ""
			},
			Rules: map[string]middleware.RateLimitRule{
				middleware.ExtractGroup: middleware.PerMinute(cfg.RateLimitExtractPerMin),
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	if hs == nil {
		hs = health.NewService(cfg.LLMProvider, cfg.LLMModel, nil)
	}
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, hs.Status())
	})
	if sessions != nil {
		sessions.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
