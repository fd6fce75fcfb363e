package domain

import (
	"context"
	"strings"
)

// AgentKey identifies one of the structurally supported agent variants.
type AgentKey string

const (
	AgentMetadata AgentKey = "metadata"
	AgentContent  AgentKey = "content"
	AgentCasual   AgentKey = "casual"
)

// DefaultAgent is the variant unknown keys resolve to.
const DefaultAgent = AgentContent

// SupportedAgents is the closed enumeration of agent variants, in a fixed order.
var SupportedAgents = []AgentKey{AgentMetadata, AgentContent, AgentCasual}

// IsSupported reports whether k is a member of SupportedAgents.
func (k AgentKey) IsSupported() bool {
	for _, s := range SupportedAgents {
		if s == k {
			return true
		}
	}
	return false
}

// NormalizeAgentKey maps a free-form agent name onto the supported enumeration.
// Anything outside the enumeration normalizes to DefaultAgent.
func NormalizeAgentKey(s string) AgentKey {
	k := AgentKey(strings.ToLower(strings.TrimSpace(s)))
	if k.IsSupported() {
		return k
	}
	return DefaultAgent
}

// LookupAgentKey is like NormalizeAgentKey but reports whether s was supported.
func LookupAgentKey(s string) (AgentKey, bool) {
	k := AgentKey(strings.ToLower(strings.TrimSpace(s)))
	return k, k.IsSupported()
}

// AgentDefinition describes an agent as stored in the configuration store.
type AgentDefinition struct {
	Key         AgentKey `json:"key"         yaml:"key"`
	Name        string   `json:"name"        yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	IsActive    bool     `json:"is_active"   yaml:"is_active"`
}

// AgentConfigStore is the external store of agent definitions.
type AgentConfigStore interface {
	ListActiveAgents(ctx context.Context, scope string) ([]AgentDefinition, error)
}

// AgentRequest is the read-only input handed to an agent invocation.
type AgentRequest struct {
	Question     string
	Conversation []Turn
	Documents    []Document
	Routing      RoutingDecision
}

// AgentResult is produced by exactly one agent invocation.
type AgentResult struct {
	Answer     string     `json:"answer"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

// Agent answers a question from candidate documents.
type Agent interface {
	Key() AgentKey
	Answer(ctx context.Context, req AgentRequest) (*AgentResult, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc struct {
	AgentKey AgentKey
	Fn       func(ctx context.Context, req AgentRequest) (*AgentResult, error)
}

func (f AgentFunc) Key() AgentKey { return f.AgentKey }

func (f AgentFunc) Answer(ctx context.Context, req AgentRequest) (*AgentResult, error) {
	return f.Fn(ctx, req)
}
