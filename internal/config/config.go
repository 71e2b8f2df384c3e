// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ashureev/salesdrill/internal/llm"
)

// Persona sources.
const (
	PersonaSourceFile   = "file"
	PersonaSourceSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	FrontendURL string   `env:"FRONTEND_URL"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:9000"`
	DBPath      string   `env:"DB_PATH" envDefault:"./data/salesdrill.db"`

	PersonaSource string `env:"PERSONA_SOURCE" envDefault:"file"`
	PersonaFile   string `env:"PERSONA_FILE" envDefault:"persona.json"`
	StageFile     string `env:"STAGE_FILE" envDefault:"stage_info.json"`

	Models ModelConfig

	HistoryWindow      int           `env:"HISTORY_WINDOW" envDefault:"0"`
	PersonaElaboration bool          `env:"PERSONA_ELABORATION" envDefault:"true"`
	SessionMax         int           `env:"SESSION_MAX" envDefault:"1000"`
	SessionIdleTTL     time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"5"`

	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"true"`
	OTELEndpoint   string `env:"OTEL_ENDPOINT"`
}

// ModelConfig holds vendor credentials and model call limits.
type ModelConfig struct {
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	GeminiKey    string `env:"GEMINI_API_KEY"`

	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	ClaudeModel string `env:"CLAUDE_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	GeminiModel string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-pro-002"`

	// Judge models default to the vendor model when empty.
	OpenAIJudgeModel string `env:"OPENAI_JUDGE_MODEL"`
	ClaudeJudgeModel string `env:"CLAUDE_JUDGE_MODEL"`
	GeminiJudgeModel string `env:"GEMINI_JUDGE_MODEL"`

	Timeout     time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
	Concurrency int           `env:"MODEL_CONCURRENCY" envDefault:"8"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.PersonaSource {
	case PersonaSourceFile:
		if c.PersonaFile == "" || c.StageFile == "" {
			return errors.New("PERSONA_FILE and STAGE_FILE are required when PERSONA_SOURCE=file")
		}
	case PersonaSourceSQLite:
	default:
		return fmt.Errorf("PERSONA_SOURCE must be %q or %q, got %q", PersonaSourceFile, PersonaSourceSQLite, c.PersonaSource)
	}
	if c.NeedsDatabase() && c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.Models.Timeout <= 0 {
		return errors.New("MODEL_TIMEOUT must be > 0")
	}
	if c.Models.Concurrency <= 0 {
		return errors.New("MODEL_CONCURRENCY must be > 0")
	}
	if c.HistoryWindow < 0 {
		return errors.New("HISTORY_WINDOW must be >= 0")
	}
	if c.SessionMax <= 0 {
		return errors.New("SESSION_MAX must be > 0")
	}
	if c.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be > 0")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// NeedsDatabase reports whether the SQLite store must be opened.
func (c *Config) NeedsDatabase() bool {
	return c.PersonaSource == PersonaSourceSQLite || c.ArchiveEnabled
}

// LLM returns the vendor client configuration.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		OpenAI: llm.VendorConfig{APIKey: c.Models.OpenAIKey, Model: c.Models.OpenAIModel},
		Claude: llm.VendorConfig{APIKey: c.Models.AnthropicKey, Model: c.Models.ClaudeModel},
		Gemini: llm.VendorConfig{APIKey: c.Models.GeminiKey, Model: c.Models.GeminiModel},
	}
}

// JudgeModels returns the configured judge model overrides by vendor.
func (c *Config) JudgeModels() map[llm.Vendor]string {
	models := make(map[llm.Vendor]string)
	for v, name := range map[llm.Vendor]string{
		llm.VendorOpenAI: c.Models.OpenAIJudgeModel,
		llm.VendorClaude: c.Models.ClaudeJudgeModel,
		llm.VendorGemini: c.Models.GeminiJudgeModel,
	} {
		if name != "" {
			models[v] = name
		}
	}
	return models
}

// AllowedOrigins returns the CORS origins, including FRONTEND_URL.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.CORSOrigins)+1)
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	return origins
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
