package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
)

// NewProvider constructs a bare provider for one config entry.
func NewProvider(pc config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "", "openai":
		return NewOpenAIProvider(pc, logger), nil
	case "ollama":
		return NewOllamaProvider(pc, logger), nil
	case "bedrock":
		return NewBedrockProvider(pc, logger)
	default:
		return nil, domain.NewDomainError("llm.NewProvider", domain.ErrInvalidInput, fmt.Sprintf("provider type %q", pc.Type))
	}
}

// Build creates every configured provider, wraps each with rate limiting and
// a circuit breaker when enabled, registers them, and returns the provider the
// prompt service should use: the default one, behind failover when configured.
func Build(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (domain.LLMProvider, *Registry, error) {
	reg := NewRegistry()
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc, logger)
		if err != nil {
			return nil, nil, err
		}
		if op, ok := p.(*OllamaProvider); ok {
			probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if !op.IsHealthy(probeCtx) {
				logger.Warn("ollama server not reachable", "provider", pc.Name)
			}
			cancel()
		}
		if cfg.RateLimit.Enabled {
			p = NewRateLimitedProvider(p, cfg.RateLimit)
		}
		if cfg.CircuitBreaker.Enabled {
			p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
		}
		if err := reg.Register(p); err != nil {
			return nil, nil, err
		}
	}

	primary, err := reg.Get(cfg.DefaultProvider)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Failover.Enabled || len(cfg.Failover.Fallbacks) == 0 {
		return primary, reg, nil
	}

	fallbacks := make([]domain.LLMProvider, 0, len(cfg.Failover.Fallbacks))
	for _, name := range cfg.Failover.Fallbacks {
		fb, err := reg.Get(name)
		if err != nil {
			return nil, nil, fmt.Errorf("failover fallback: %w", err)
		}
		fallbacks = append(fallbacks, fb)
	}
	return NewFailoverProvider(primary, fallbacks, logger), reg, nil
}
