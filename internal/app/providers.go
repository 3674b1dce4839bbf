package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/storylens/internal/config"
	"github.com/MrWong99/storylens/internal/observe"
	"github.com/MrWong99/storylens/internal/resilience"
)

// BuildLLM instantiates the configured primary LLM and its fallbacks through
// reg and puts them behind per-provider circuit breakers. Breaker transitions
// are counted in m.
func BuildLLM(cfg config.ProvidersConfig, reg *config.Registry, m *observe.Metrics) (*resilience.LLMFallback, error) {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	primary, err := reg.CreateLLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Name, "model", cfg.LLM.Model)

	fb := resilience.NewLLMFallback(primary, cfg.LLM.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	})
	for i, entry := range cfg.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %d (%q): %w", i, entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}
	return fb, nil
}
