package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"cv-parser/internal/batch"
	"cv-parser/internal/extract"
	"cv-parser/internal/extraction"
	"cv-parser/internal/llm"
	"cv-parser/internal/llm/gemini"
	"cv-parser/internal/llm/openai"
	"cv-parser/internal/services/health"
	"cv-parser/internal/session"
	"cv-parser/internal/shared/config"
	"cv-parser/internal/shared/server"
)

// Pipeline is the extraction stack shared by the HTTP service and the CLI.
type Pipeline struct {
	Completer  llm.Completer
	Extraction *extraction.Client
	Processor  *batch.Processor
	Documents  extract.Documents
}

// App holds the HTTP service dependencies.
type App struct {
	Config   config.Config
	Pipeline *Pipeline
	Registry *session.Registry
	Handler  *session.Handler
	Router   *gin.Engine
}

// Build wires the HTTP service.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	cfg = cfg.Normalize()
	p, err := BuildPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	registry := session.NewRegistry(cfg.SessionTTL, nil)
	handler := session.NewHandler(registry, p.Processor, p.Documents, session.HandlerConfig{
		TopSkills:      cfg.TopSkills,
		CSVRowLimit:    cfg.CSVRowLimit,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	return &App{
		Config:   cfg,
		Pipeline: p,
		Registry: registry,
		Handler:  handler,
		Router:   server.NewRouter(cfg, handler, health.NewService(cfg.LLMProvider, cfg.LLMModel, registry.Len)),
	}, nil
}

// BuildPipeline wires provider, extraction client, batch processor and
// document extractors from configuration.
func BuildPipeline(ctx context.Context, cfg config.Config) (*Pipeline, error) {
	cfg = cfg.Normalize()
	completer, err := BuildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	pdf, err := extract.NewPDFExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("pdf extractor: %w", err)
	}
	client := extraction.New(completer, cfg.LLMProvider, extraction.WithTimeout(cfg.LLMTimeout))
	return &Pipeline{
		Completer:  completer,
		Extraction: client,
		Processor:  batch.NewProcessor(client, batch.WithRetries(cfg.LLMMaxRetries)),
		Documents:  extract.Documents{PDF: pdf},
	}, nil
}

// BuildCompleter returns the configured provider. Credentials are not part of
// configuration; they are passed per call.
func BuildCompleter(cfg config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		opts := []gemini.Option{gemini.WithTimeout(cfg.LLMTimeout)}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.LLMBaseURL))
		}
		c, err := gemini.NewClient(cfg.LLMModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return c, nil
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithTimeout(cfg.LLMTimeout)}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
		}
		c, err := openai.NewClient(cfg.LLMModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}
