package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry, per-attempt timeout and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *zap.Logger) (Provider, error) {
	var base Provider
	var err error

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

	// Wrap with middleware: caller → retry → timeout → logging → base
	logged := WithLogging(base, eventRepo, logger)
	bounded := WithTimeout(logged, cfg.Timeout)

	return WithRetry(bounded, cfg.Retry), nil
}
