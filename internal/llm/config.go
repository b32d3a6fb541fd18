package llm

import (
	"fmt"
	"os"
	"time"
)

// Config selects and configures a provider. Provider is one of
// "anthropic", "openai", "gemini", "openrouter" or "mock".
type Config struct {
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultConfig() Config {
	return Config{
		Provider:   "anthropic",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// apiKey returns a pointer to the key field of the named provider and the
// environment variable that fills it.
func (c *Config) apiKey(provider string) (*string, string) {
	switch provider {
	case "anthropic":
		return &c.Anthropic.APIKey, "CAT_ANTHROPIC_API_KEY"
	case "openai":
		return &c.OpenAI.APIKey, "CAT_OPENAI_API_KEY"
	case "gemini":
		return &c.Gemini.APIKey, "CAT_GEMINI_API_KEY"
	case "openrouter":
		return &c.OpenRouter.APIKey, "CAT_OPENROUTER_API_KEY"
	}
	return nil, ""
}

// ConfigFromEnv overlays CAT_LLM_PROVIDER and the per-provider CAT_*
// variables on DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	setFromEnv(&cfg.Provider, "CAT_LLM_PROVIDER")

	for _, p := range []string{"anthropic", "openai", "gemini", "openrouter"} {
		key, env := cfg.apiKey(p)
		setFromEnv(key, env)
	}
	setFromEnv(&cfg.Anthropic.Model, "CAT_ANTHROPIC_MODEL")
	setFromEnv(&cfg.OpenAI.Model, "CAT_OPENAI_MODEL")
	setFromEnv(&cfg.OpenAI.BaseURL, "CAT_OPENAI_BASE_URL")
	setFromEnv(&cfg.Gemini.Model, "CAT_GEMINI_MODEL")
	setFromEnv(&cfg.OpenRouter.Model, "CAT_OPENROUTER_MODEL")
	return cfg
}

func setFromEnv(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// DiscoverConfig picks the first provider whose conventional API key
// variable is set, in the order Gemini, OpenAI, Anthropic, OpenRouter.
func DiscoverConfig() (Config, bool) {
	probes := []struct{ provider, env string }{
		{"gemini", "GEMINI_API_KEY"},
		{"openai", "OPENAI_API_KEY"},
		{"anthropic", "ANTHROPIC_API_KEY"},
		{"openrouter", "OPENROUTER_API_KEY"},
	}
	for _, p := range probes {
		if k := os.Getenv(p.env); k != "" {
			cfg := DefaultConfig()
			cfg.Provider = p.provider
			key, _ := cfg.apiKey(p.provider)
			*key = k
			return cfg, true
		}
	}
	return Config{}, false
}

// Validate checks that the selected provider is known and has a key.
func (c Config) Validate() error {
	if c.Provider == "mock" {
		return nil
	}
	key, env := c.apiKey(c.Provider)
	if key == nil {
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if *key == "" {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	return nil
}
