package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"

	"docroute/internal/adapter/agent"
	"docroute/internal/adapter/agentstore"
	"docroute/internal/adapter/llm"
	"docroute/internal/adapter/prompt"
	"docroute/internal/domain"
	"docroute/internal/infra/config"
	"docroute/internal/infra/logger"
	"docroute/internal/infra/tracer"
	"docroute/internal/usecase"
	"docroute/internal/usecase/eventbus"
	"docroute/internal/usecase/multiagent"
	"docroute/internal/usecase/routing"
)

// app holds every wired component plus the cleanups to run on exit.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	bus      *eventbus.Bus
	registry *multiagent.Registry
	answerer *usecase.Answerer
	warmer   *multiagent.Warmer
	cleanups []func()
}

func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

func loadConfig(flags cliFlags) (*config.Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath(flags))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// initApp builds the answering stack in dependency order.
func initApp(ctx context.Context, flags cliFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	// 1. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.cleanups = append(a.cleanups, func() { _ = logCloser() })

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.cleanups = append(a.cleanups, func() { _ = tracerShutdown(context.Background()) })

	// 2. LLM provider and prompt service
	provider, _, err := llm.Build(ctx, cfg.LLM, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	prompts, err := prompt.NewService(provider, prompt.DefaultDefinitions(), prompt.Config{
		Model:       defaultModel(cfg.LLM),
		Temperature: cfg.Prompts.Temperature,
		MaxTokens:   cfg.Prompts.MaxTokens,
		Overrides:   cfg.Prompts.Overrides,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("prompts: %w", err)
	}

	// 3. Event bus
	a.bus = eventbus.New(log)
	a.cleanups = append(a.cleanups, a.bus.Close)

	// 4. Agent store and registry
	store, storeCloser, err := openStore(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("agent store: %w", err)
	}
	if storeCloser != nil {
		a.cleanups = append(a.cleanups, storeCloser)
	}
	a.registry, err = multiagent.NewRegistry(store, agent.All(prompts, log), multiagent.RegistryConfig{
		Scope: cfg.AgentStore.Scope,
		TTL:   cfg.Router.RegistryTTL,
		Bus:   a.bus,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("registry: %w", err)
	}

	if cfg.Router.RegistryRefreshSchedule != "" {
		a.warmer, err = multiagent.NewWarmer(a.registry, cfg.Router.RegistryRefreshSchedule, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("registry warmer: %w", err)
		}
		a.cleanups = append(a.cleanups, a.warmer.Stop)
	}

	// 5. Classifier and answerer
	classifier := routing.NewClassifier(prompts, cfg.Router.HistoryLimit, log)
	a.answerer = usecase.NewAnswerer(classifier, a.registry, cfg.Router, a.bus, log)

	if flags.Trace {
		unsub := a.bus.SubscribeAll(func(_ context.Context, e domain.Event) {
			log.Debug("event", "type", e.Type, "cycle_id", e.CycleID)
		})
		a.cleanups = append(a.cleanups, unsub)
	}
	return a, nil
}

// openStore returns the configured agent store and, for sqlite, its closer.
func openStore(cfg *config.Config) (domain.AgentConfigStore, func(), error) {
	switch cfg.AgentStore.Type {
	case "sqlite":
		s, err := agentstore.NewSQLiteStore(cfg.AgentStore.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "", "static":
		return agentstore.NewStaticStore(cfg.Agents), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown agent store type %q", cfg.AgentStore.Type)
	}
}

// defaultModel is the model of the default provider, if configured.
func defaultModel(cfg config.LLMConfig) string {
	for _, p := range cfg.Providers {
		if p.Name == cfg.DefaultProvider {
			return p.Model
		}
	}
	return ""
}
