package multiagent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"docroute/internal/domain"
)

// --- Test helpers ---

type fakeStore struct {
	mu    sync.Mutex
	defs  []domain.AgentDefinition
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (s *fakeStore) ListActiveAgents(ctx context.Context, _ string) ([]domain.AgentDefinition, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.AgentDefinition(nil), s.defs...), nil
}

func (s *fakeStore) set(defs []domain.AgentDefinition, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs, s.err = defs, err
}

func activeDefs(keys ...domain.AgentKey) []domain.AgentDefinition {
	out := make([]domain.AgentDefinition, len(keys))
	for i, k := range keys {
		out[i] = domain.AgentDefinition{Key: k, Name: string(k), IsActive: true}
	}
	return out
}

// scriptedAgent returns a fixed result after an optional delay.
type scriptedAgent struct {
	key    domain.AgentKey
	result *domain.AgentResult
	err    error
	delay  time.Duration
	panics bool

	mu       sync.Mutex
	calls    int
	lastDocs []domain.Document
}

func (a *scriptedAgent) Key() domain.AgentKey { return a.key }

func (a *scriptedAgent) Answer(ctx context.Context, req domain.AgentRequest) (*domain.AgentResult, error) {
	a.mu.Lock()
	a.calls++
	a.lastDocs = req.Documents
	a.mu.Unlock()

	if a.panics {
		panic("boom")
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	r := *a.result
	return &r, nil
}

func (a *scriptedAgent) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func answer(text string, conf float64, docIDs ...string) *domain.AgentResult {
	r := &domain.AgentResult{Answer: text, Confidence: conf, Citations: []domain.Citation{}}
	for _, id := range docIDs {
		r.Citations = append(r.Citations, domain.Citation{DocID: id, DocName: "Doc " + id})
	}
	return r
}

// agentMap is a Resolver over a fixed set of agents.
type agentMap map[domain.AgentKey]domain.Agent

func (m agentMap) Resolve(key domain.AgentKey) domain.Agent {
	if a, ok := m[key]; ok {
		return a
	}
	return m[domain.AgentContent]
}

// activeKeys is an ActiveSet over a fixed list.
type activeKeys []domain.AgentKey

func (s activeKeys) IsActive(key domain.AgentKey) bool {
	for _, k := range s {
		if k == key {
			return true
		}
	}
	return false
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
