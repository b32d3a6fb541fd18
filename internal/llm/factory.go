package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/catengine/internal/logger"
	"github.com/abhisek/catengine/internal/metrics"
	"github.com/abhisek/catengine/internal/store"
)

// NewProvider builds the configured provider wrapped as
// caller → retry (with timeout) → logging → base.
// events, log and m may be nil.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, log *logger.Logger, m *metrics.Metrics) (Provider, error) {
	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logged := WithLogging(base, cfg.Provider, events, log, m)
	return WithRetry(logged, cfg.Retry).WithTimeout(cfg.Timeout), nil
}
