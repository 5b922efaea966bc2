package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/config"
	"github.com/abhisek/parla/internal/feedback"
	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/metrics"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
	"github.com/abhisek/parla/internal/tutor"
)

// tutorDeps is the assembled tutor stack.
type tutorDeps struct {
	Service  *tutor.Service
	Registry session.Registry
	Provider llm.Provider
}

func (d *tutorDeps) Close() error {
	return d.Registry.Close()
}

// buildTutor wires provider, registry, controller and aggregator. m may
// be nil.
func buildTutor(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger, m *metrics.Metrics) (*tutorDeps, error) {
	provider, err := llm.NewProvider(ctx, cfg.LLMProviderConfig(), st.EventRepo(), logger)
	if err != nil {
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}

	var svc *tutor.Service
	registry, err := newRegistry(ctx, cfg, func(id string) { svc.SessionEvicted(id) })
	if err != nil {
		return nil, err
	}

	mistakes := st.MistakeRepo()
	controller := tutor.NewController(provider, mistakes, lessons.DefaultGenerationConfig(), logger, m)
	aggregator := feedback.NewAggregator(provider, mistakes, feedback.DefaultConfig(), logger)
	svc = tutor.NewService(registry, controller, aggregator, logger, m)

	return &tutorDeps{
		Service:  svc,
		Registry: registry,
		Provider: provider,
	}, nil
}

func newRegistry(ctx context.Context, cfg *config.Config, onEvict func(id string)) (session.Registry, error) {
	opts := cfg.SessionOptions()
	opts.OnEvict = onEvict
	if cfg.Session.Backend == "redis" {
		r, err := session.NewRedisRegistry(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts)
		if err != nil {
			return nil, fmt.Errorf("connect session store: %w", err)
		}
		return r, nil
	}
	return session.NewMemoryRegistry(opts), nil
}
