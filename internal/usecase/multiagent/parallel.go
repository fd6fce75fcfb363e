package multiagent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"docroute/internal/domain"
)

// FanOut runs keys concurrently, each bounded by timeout. Every invocation
// settles on its own; one failure never cancels the others. Outcomes and
// trace entries are returned in key order.
func (e *Executor) FanOut(ctx context.Context, keys []domain.AgentKey, req domain.AgentRequest, timeout time.Duration) ([]domain.SecondaryOutcome, []domain.TraceEntry) {
	results := make([]*domain.AgentResult, len(keys))
	entries := make([]domain.TraceEntry, len(keys))

	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			results[i], entries[i] = e.runTimed(ctx, key, domain.TraceSecondary, req, timeout)
			return nil
		})
	}
	_ = g.Wait()

	var outcomes []domain.SecondaryOutcome
	for i, key := range keys {
		if results[i] != nil {
			outcomes = append(outcomes, domain.SecondaryOutcome{Agent: key, Result: *results[i]})
		}
	}
	return outcomes, entries
}
