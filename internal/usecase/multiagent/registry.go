package multiagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"docroute/internal/domain"
	"docroute/internal/infra/logger"
)

// DefaultRegistryTTL is how long a loaded snapshot is served before reload.
const DefaultRegistryTTL = 5 * time.Minute

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Scope string
	TTL   time.Duration
	// Bus, when set, receives a registry.refreshed event after each load.
	Bus domain.EventBus
}

// Registry caches the active agent definitions and maps keys to agent handles.
// The snapshot is replaced wholesale on reload and never mutated in place.
type Registry struct {
	store   domain.AgentConfigStore
	handles map[domain.AgentKey]domain.Agent
	cfg     RegistryConfig
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	active   []domain.AgentDefinition
	loadedAt time.Time
	loaded   bool
}

// NewRegistry creates a Registry over store. agents must include a handle for
// the default content agent.
func NewRegistry(store domain.AgentConfigStore, agents []domain.Agent, cfg RegistryConfig, log *slog.Logger) (*Registry, error) {
	if store == nil {
		return nil, domain.NewSubSystemError("registry", "NewRegistry", domain.ErrInvalidInput, "nil agent store")
	}
	handles := make(map[domain.AgentKey]domain.Agent, len(agents))
	for _, a := range agents {
		if _, dup := handles[a.Key()]; dup {
			return nil, domain.NewSubSystemError("registry", "NewRegistry", domain.ErrDuplicate, string(a.Key()))
		}
		handles[a.Key()] = a
	}
	if _, ok := handles[domain.DefaultAgent]; !ok {
		return nil, domain.NewSubSystemError("registry", "NewRegistry", domain.ErrInvalidInput, "missing default agent handle")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRegistryTTL
	}
	return &Registry{
		store:   store,
		handles: handles,
		cfg:     cfg,
		logger:  logger.Component(logger.OrDiscard(log), "registry"),
		now:     time.Now,
	}, nil
}

// EnsureLoaded loads the snapshot on first use or once it is older than the
// TTL. Only a failed first load is returned as an error.
func (r *Registry) EnsureLoaded(ctx context.Context) error {
	if r.fresh() {
		return nil
	}
	_, err, _ := r.group.Do("ensure", func() (any, error) {
		if r.fresh() {
			return nil, nil
		}
		return nil, r.load(ctx)
	})
	return err
}

// Refresh reloads the snapshot regardless of its age. Concurrent callers
// share one store query.
func (r *Registry) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		return nil, r.load(ctx)
	})
	return err
}

func (r *Registry) fresh() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded && r.now().Sub(r.loadedAt) < r.cfg.TTL
}

func (r *Registry) load(ctx context.Context) error {
	defs, err := r.store.ListActiveAgents(ctx, r.cfg.Scope)
	if err == nil {
		defs = r.usable(defs)
		if len(defs) == 0 {
			err = domain.ErrNoActiveAgents
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if !r.loaded {
			return domain.NewSubSystemError("registry", "Registry.EnsureLoaded", domain.ErrRegistryLoad, err.Error())
		}
		r.logger.Warn("agent registry refresh failed, keeping stale snapshot",
			"error", err, "age", r.now().Sub(r.loadedAt).Round(time.Second))
		return nil
	}

	r.active = defs
	r.loadedAt = r.now()
	r.loaded = true
	r.logger.Debug("agent registry loaded", "active", len(defs))

	if r.cfg.Bus != nil {
		keys := make([]domain.AgentKey, len(defs))
		for i, d := range defs {
			keys[i] = d.Key
		}
		payload, _ := json.Marshal(map[string]any{"active": keys})
		r.cfg.Bus.Publish(ctx, domain.Event{Type: domain.EventRegistryRefreshed, Payload: payload})
	}
	return nil
}

// usable keeps active definitions with a supported key and a registered
// handle, ordered by SupportedAgents.
func (r *Registry) usable(defs []domain.AgentDefinition) []domain.AgentDefinition {
	byKey := make(map[domain.AgentKey]domain.AgentDefinition, len(defs))
	for _, d := range defs {
		if !d.IsActive {
			continue
		}
		key, ok := domain.LookupAgentKey(string(d.Key))
		if !ok {
			r.logger.Warn("ignoring unsupported agent definition", "key", d.Key)
			continue
		}
		if _, ok := r.handles[key]; !ok {
			r.logger.Warn("ignoring agent without handle", "key", key)
			continue
		}
		d.Key = key
		if _, seen := byKey[key]; !seen {
			byKey[key] = d
		}
	}
	out := make([]domain.AgentDefinition, 0, len(byKey))
	for _, k := range domain.SupportedAgents {
		if d, ok := byKey[k]; ok {
			out = append(out, d)
		}
	}
	return out
}

// IsActive reports whether key is in the current snapshot.
func (r *Registry) IsActive(key domain.AgentKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.active {
		if d.Key == key {
			return true
		}
	}
	return false
}

// Resolve returns the handle for key. Unknown or inactive keys resolve to
// the default content agent.
func (r *Registry) Resolve(key domain.AgentKey) domain.Agent {
	if r.IsActive(key) {
		if h, ok := r.handles[key]; ok {
			return h
		}
	}
	return r.handles[domain.DefaultAgent]
}

// ListActive returns a copy of the current snapshot.
func (r *Registry) ListActive() []domain.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AgentDefinition, len(r.active))
	copy(out, r.active)
	return out
}

// LoadedAt returns when the snapshot was last replaced.
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}
