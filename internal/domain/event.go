package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventCycleStarted      EventType = "cycle.started"
	EventCycleCompleted    EventType = "cycle.completed"
	EventCycleDegraded     EventType = "cycle.degraded"
	EventQuestionRouted    EventType = "question.routed"
	EventAgentInvoked      EventType = "agent.invoked"
	EventRegistryRefreshed EventType = "registry.refreshed"
	EventRefinementApplied EventType = "refinement.applied"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	CycleID   string          `json:"cycle_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CyclePayload is carried by cycle.* events.
type CyclePayload struct {
	Question   string  `json:"question,omitempty"`
	AgentType  string  `json:"agent_type,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
