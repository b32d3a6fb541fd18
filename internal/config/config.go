// Package config loads engine settings from an optional YAML file and
// CAT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/catengine/internal/cat"
	"github.com/abhisek/catengine/internal/irt"
	"github.com/abhisek/catengine/internal/llm"
	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/store"
)

const envPrefix = "CAT"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Engine   EngineConfig   `mapstructure:"engine"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`    // file path for sqlite
}

type HTTPConfig struct {
	Addr        string        `mapstructure:"addr"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type EngineConfig struct {
	MinQuestions     int     `mapstructure:"min_questions"`
	MaxQuestions     int     `mapstructure:"max_questions"`
	PassingStandard  float64 `mapstructure:"passing_standard"`
	ShortlistSize    int     `mapstructure:"shortlist_size"`
	SeparationMargin float64 `mapstructure:"separation_margin"`
	Estimator        string  `mapstructure:"estimator"` // newton or fisher
}

// LLMConfig configures the optional difficulty labeller. An empty
// Provider disables it.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Default returns the built-in settings.
func Default() Config {
	engine := cat.DefaultConfig()
	return Config{
		Database: DatabaseConfig{Driver: string(store.DriverSQLite)},
		HTTP:     HTTPConfig{Addr: ":8080", Timeout: 30 * time.Second},
		Engine: EngineConfig{
			MinQuestions:     engine.MinQuestions,
			MaxQuestions:     engine.MaxQuestions,
			PassingStandard:  engine.PassingStandard,
			ShortlistSize:    engine.ShortlistSize,
			SeparationMargin: engine.SeparationMargin,
			Estimator:        string(engine.Estimator.Method),
		},
		LLM:   LLMConfig{Timeout: 30 * time.Second, MaxAttempts: 3},
		Redis: RedisConfig{LockTTL: 10 * time.Second},
		AMQP:  AMQPConfig{Exchange: "cat.events"},
		Log:   LogConfig{Mode: "dev", Level: "info"},
	}
}

// Load reads path (if non-empty) and overlays environment variables such
// as CAT_ENGINE_MAX_QUESTIONS on top of Default.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets also honour the conventional unprefixed names.
	_ = v.BindEnv("database.dsn", "CAT_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("llm.api_key", "CAT_LLM_API_KEY")
	_ = v.BindEnv("redis.password", "CAT_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("amqp.url", "CAT_AMQP_URL", "AMQP_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.cors_origins", d.HTTP.CORSOrigins)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("engine.min_questions", d.Engine.MinQuestions)
	v.SetDefault("engine.max_questions", d.Engine.MaxQuestions)
	v.SetDefault("engine.passing_standard", d.Engine.PassingStandard)
	v.SetDefault("engine.shortlist_size", d.Engine.ShortlistSize)
	v.SetDefault("engine.separation_margin", d.Engine.SeparationMargin)
	v.SetDefault("engine.estimator", d.Engine.Estimator)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_attempts", d.LLM.MaxAttempts)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.lock_ttl", d.Redis.LockTTL)
	v.SetDefault("amqp.url", d.AMQP.URL)
	v.SetDefault("amqp.exchange", d.AMQP.Exchange)
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch store.Driver(c.Database.Driver) {
	case store.DriverSQLite:
	case store.DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver: %q", c.Database.Driver))
	}

	e := c.Engine
	if e.MinQuestions < 1 {
		errs = append(errs, fmt.Errorf("engine.min_questions must be positive, got %d", e.MinQuestions))
	}
	if e.MaxQuestions < e.MinQuestions {
		errs = append(errs, fmt.Errorf("engine.max_questions (%d) is below engine.min_questions (%d)", e.MaxQuestions, e.MinQuestions))
	}
	if e.ShortlistSize < 1 {
		errs = append(errs, fmt.Errorf("engine.shortlist_size must be positive, got %d", e.ShortlistSize))
	}
	if e.SeparationMargin <= 0 {
		errs = append(errs, fmt.Errorf("engine.separation_margin must be positive, got %g", e.SeparationMargin))
	}
	switch irt.Method(e.Estimator) {
	case irt.MethodNewton, irt.MethodFisher:
	default:
		errs = append(errs, fmt.Errorf("unknown engine.estimator: %q", e.Estimator))
	}

	if c.LLM.Provider != "" {
		if err := c.LLM.ProviderConfig().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// EngineConfig converts the engine section into service settings.
func (c Config) EngineConfig() cat.Config {
	out := cat.DefaultConfig()
	out.MinQuestions = c.Engine.MinQuestions
	out.MaxQuestions = c.Engine.MaxQuestions
	out.PassingStandard = c.Engine.PassingStandard
	out.ShortlistSize = c.Engine.ShortlistSize
	out.SeparationMargin = c.Engine.SeparationMargin
	out.Estimator.Method = irt.Method(c.Engine.Estimator)
	return out
}

// LoggerOptions converts the log section.
func (c Config) LoggerOptions() logger.Options {
	return logger.Options{Mode: c.Log.Mode, Level: c.Log.Level, File: c.Log.File}
}

// ProviderConfig maps the flat llm section onto the provider settings for
// the selected provider.
func (c LLMConfig) ProviderConfig() llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = c.Provider
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = c.MaxAttempts
	}

	switch c.Provider {
	case "anthropic":
		cfg.Anthropic.APIKey = c.APIKey
		if c.Model != "" {
			cfg.Anthropic.Model = c.Model
		}
	case "openai":
		cfg.OpenAI.APIKey = c.APIKey
		cfg.OpenAI.BaseURL = c.BaseURL
		if c.Model != "" {
			cfg.OpenAI.Model = c.Model
		}
	case "gemini":
		cfg.Gemini.APIKey = c.APIKey
		if c.Model != "" {
			cfg.Gemini.Model = c.Model
		}
	case "openrouter":
		cfg.OpenRouter.APIKey = c.APIKey
		cfg.OpenRouter.BaseURL = c.BaseURL
		if c.Model != "" {
			cfg.OpenRouter.Model = c.Model
		}
	}
	return cfg
}
