package agentstore

import (
	"context"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
)

// StaticStore serves the agents declared in the config file. Scope is ignored.
type StaticStore struct {
	defs []domain.AgentDefinition
}

// NewStaticStore builds a store from config entries.
func NewStaticStore(entries []config.AgentEntry) *StaticStore {
	return &StaticStore{defs: Definitions(entries)}
}

// Definitions converts config entries into agent definitions.
func Definitions(entries []config.AgentEntry) []domain.AgentDefinition {
	defs := make([]domain.AgentDefinition, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, domain.AgentDefinition{
			Key:         domain.AgentKey(e.Key),
			Name:        e.Name,
			Description: e.Description,
			IsActive:    !e.Disabled,
		})
	}
	return defs
}

func (s *StaticStore) ListActiveAgents(_ context.Context, _ string) ([]domain.AgentDefinition, error) {
	var out []domain.AgentDefinition
	for _, d := range s.defs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}
