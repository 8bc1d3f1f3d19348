package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"cv-parser/internal/shared/telemetry"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultOpenAIModel = "gpt-4o"
	defaultGeminiModel = "gemini-2.5-flash"
)

// Config holds application configuration.
type Config struct {
	Env                    string        `yaml:"env"`
	Port                   string        `yaml:"port"`
	CORSAllowOrigin        []string      `yaml:"cors_allow_origins"`
	LLMProvider            string        `yaml:"llm_provider"`
	LLMModel               string        `yaml:"llm_model"`
	LLMBaseURL             string        `yaml:"llm_base_url"`
	LLMTimeout             time.Duration `yaml:"-"`
	LLMTimeoutSeconds      int           `yaml:"llm_timeout_seconds"`
	LLMMaxRetries          int           `yaml:"llm_max_retries"`
	TopSkills              int           `yaml:"top_skills"`
	CSVRowLimit            int           `yaml:"csv_row_limit"`
	MaxUploadMB            int           `yaml:"max_upload_mb"`
	SessionTTL             time.Duration `yaml:"-"`
	SessionTTLMinutes      int           `yaml:"session_ttl_minutes"`
	LogLevel               string        `yaml:"log_level"`
	LogFormat              string        `yaml:"log_format"`
	RateLimitExtractPerMin int           `yaml:"rate_limit_extract_per_min"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Env:                    "dev",
		Port:                   "8080",
		CORSAllowOrigin:        []string{"http://localhost:5173"},
		LLMProvider:            ProviderOpenAI,
		LLMTimeoutSeconds:      30,
		LLMMaxRetries:          1,
		TopSkills:              5,
		CSVRowLimit:            5,
		MaxUploadMB:            10,
		SessionTTLMinutes:      60,
		LogLevel:               "info",
		LogFormat:              "json",
		RateLimitExtractPerMin: 30,
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			telemetry.Warn("config.file_ignored", map[string]any{"path": path, "error": err.Error()})
		}
	}

	cfg.Env = normalizeEnv(getEnv("ENV", cfg.Env))
	cfg.Port = getEnv("PORT", cfg.Port)
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}
	cfg.LLMProvider = normalizeProvider(getEnv("LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMTimeoutSeconds = getPositiveInt("LLM_TIMEOUT_SECONDS", cfg.LLMTimeoutSeconds)
	cfg.LLMMaxRetries = getNonNegativeInt("LLM_MAX_RETRIES", cfg.LLMMaxRetries)
	cfg.TopSkills = getPositiveInt("TOP_SKILLS", cfg.TopSkills)
	cfg.CSVRowLimit = getPositiveInt("CSV_ROW_LIMIT", cfg.CSVRowLimit)
	cfg.MaxUploadMB = getPositiveInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.SessionTTLMinutes = getPositiveInt("SESSION_TTL_MINUTES", cfg.SessionTTLMinutes)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.RateLimitExtractPerMin = getNonNegativeInt("RATE_LIMIT_EXTRACT_PER_MIN", cfg.RateLimitExtractPerMin)

	return cfg.Normalize()
}

// Normalize fills derived fields and repairs out-of-range values.
func (c Config) Normalize() Config {
	c.Env = normalizeEnv(c.Env)
	c.LLMProvider = normalizeProvider(c.LLMProvider)
	if strings.TrimSpace(c.LLMModel) == "" {
		c.LLMModel = DefaultModel(c.LLMProvider)
	}
	d := Defaults()
	if c.LLMTimeoutSeconds <= 0 {
		c.LLMTimeoutSeconds = d.LLMTimeoutSeconds
	}
	if c.LLMMaxRetries < 0 {
		c.LLMMaxRetries = 0
	}
	if c.TopSkills <= 0 {
		c.TopSkills = d.TopSkills
	}
	if c.CSVRowLimit <= 0 {
		c.CSVRowLimit = d.CSVRowLimit
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = d.MaxUploadMB
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = d.SessionTTLMinutes
	}
	if c.RateLimitExtractPerMin < 0 {
		c.RateLimitExtractPerMin = 0
	}
	c.LLMTimeout = time.Duration(c.LLMTimeoutSeconds) * time.Second
	c.SessionTTL = time.Duration(c.SessionTTLMinutes) * time.Minute
	return c
}

// MaxUploadBytes is the request body cap for uploads.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// DefaultModel returns the model used when LLM_MODEL is unset.
func DefaultModel(provider string) string {
	if provider == ProviderGemini {
		return defaultGeminiModel
	}
	return defaultOpenAIModel
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getPositiveInt(key string, def int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func getNonNegativeInt(key string, def int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}
