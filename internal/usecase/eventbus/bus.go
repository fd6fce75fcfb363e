package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"docroute/internal/domain"
)

type subscriber struct {
	id uint64
	fn domain.EventHandler
}

// Bus is an in-process, goroutine-safe event bus. Handlers run on their own
// goroutines; a panicking handler is logged and never reaches the publisher.
type Bus struct {
	mu       sync.RWMutex
	byType   map[domain.EventType][]subscriber
	wildcard []subscriber
	seq      atomic.Uint64
	inflight sync.WaitGroup
	closed   atomic.Bool
	logger   *slog.Logger
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{
		byType: make(map[domain.EventType][]subscriber),
		logger: logger,
	}
}

// Publish delivers event to typed subscribers first, then wildcard ones.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.byType[event.Type])+len(b.wildcard))
	targets = append(targets, b.byType[event.Type]...)
	targets = append(targets, b.wildcard...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(ctx, event, s)
	}
}

// Emit marshals payload and publishes it under typ for the given cycle.
// Marshal failures are logged and the event is dropped.
func (b *Bus) Emit(ctx context.Context, typ domain.EventType, cycleID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("event payload marshal failed", "event", string(typ), "error", err)
		return
	}
	b.Publish(ctx, domain.Event{Type: typ, CycleID: cycleID, Payload: raw})
}

func (b *Bus) deliver(ctx context.Context, event domain.Event, s subscriber) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked", "event", string(event.Type), "panic", r)
			}
		}()
		s.fn(ctx, event)
	}()
}

// Subscribe registers a handler for one event type and returns its
// unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	s := subscriber{id: b.seq.Add(1), fn: handler}
	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], s)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.byType[eventType] = without(b.byType[eventType], s.id)
		b.mu.Unlock()
	}
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	s := subscriber{id: b.seq.Add(1), fn: handler}
	b.mu.Lock()
	b.wildcard = append(b.wildcard, s)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.wildcard = without(b.wildcard, s.id)
		b.mu.Unlock()
	}
}

func without(subs []subscriber, id uint64) []subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Close stops new publishes and waits for in-flight handlers. Idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.inflight.Wait()
}
