package multiagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
	"docroute/internal/infra/logger"
	"docroute/internal/infra/tracer"
)

// timeoutConfidence is the confidence of a timed-out placeholder answer.
const timeoutConfidence = 0.1

// Budget bounds one execution.
type Budget struct {
	PerAgentTimeout time.Duration
	OverallTimeout  time.Duration
	SecondaryMax    int
	// SecondaryFloor is the minimum remaining budget needed to start a secondary.
	SecondaryFloor             time.Duration
	MinPrimaryConfidence       float64
	NearThresholdMargin        float64
	DisableSecondaries         bool
	SecondaryOnlyIfNoCitations bool
}

// DefaultBudget returns the stock budget.
func DefaultBudget() Budget {
	return Budget{
		PerAgentTimeout:            8 * time.Second,
		OverallTimeout:             15 * time.Second,
		SecondaryMax:               1,
		SecondaryFloor:             500 * time.Millisecond,
		MinPrimaryConfidence:       0.7,
		NearThresholdMargin:        0.05,
		SecondaryOnlyIfNoCitations: true,
	}
}

// BudgetFromConfig maps router configuration onto a Budget.
func BudgetFromConfig(rc config.RouterConfig) Budget {
	return Budget{
		PerAgentTimeout:            rc.PerAgentTimeout,
		OverallTimeout:             rc.OverallTimeout,
		SecondaryMax:               rc.SecondaryMax,
		SecondaryFloor:             rc.SecondaryFloor,
		MinPrimaryConfidence:       rc.MinPrimaryConfidence,
		NearThresholdMargin:        rc.NearThresholdMargin,
		DisableSecondaries:         rc.DisableSecondaries,
		SecondaryOnlyIfNoCitations: rc.SecondaryOnlyIfNoCitations,
	}
}

// Resolver maps an agent key to a handle. Registry implements it.
type Resolver interface {
	Resolve(key domain.AgentKey) domain.Agent
}

// Executor runs a plan's agents under a time budget.
type Executor struct {
	agents Resolver
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(agents Resolver, log *slog.Logger) *Executor {
	return &Executor{
		agents: agents,
		logger: logger.Component(logger.OrDiscard(log), "executor"),
		now:    time.Now,
	}
}

// TimeoutPlaceholder is the result substituted for an agent that ran out of time.
func TimeoutPlaceholder(key domain.AgentKey) domain.AgentResult {
	return domain.AgentResult{
		Answer:     fmt.Sprintf("Timed out waiting for the %s agent.", key),
		Confidence: timeoutConfidence,
		Citations:  []domain.Citation{},
	}
}

// Execute runs the primary, then secondaries as the budget and gating allow.
// A primary that fails with an error (not a timeout) is returned as an error
// together with the partial result holding its trace entry.
func (e *Executor) Execute(ctx context.Context, plan domain.ExecutionPlan, req domain.AgentRequest, b Budget) (*domain.ExecutionResult, error) {
	start := e.now()
	res := &domain.ExecutionResult{Primary: plan.Primary}
	finish := func(reason domain.SkipReason) *domain.ExecutionResult {
		res.SkipReason = reason
		res.TotalDuration = e.now().Sub(start)
		return res
	}

	out, entry := e.runTimed(ctx, plan.Primary, domain.TracePrimary, req, min(b.PerAgentTimeout, b.OverallTimeout))
	res.Trace = append(res.Trace, entry)
	switch {
	case entry.TimedOut:
		res.PrimaryResult = TimeoutPlaceholder(plan.Primary)
	case !entry.Success:
		return finish(domain.SkipPrimaryFailed), domain.NewSubSystemError("executor", "Executor.Execute",
			domain.ErrAgentFailed, fmt.Sprintf("primary %s: %s", plan.Primary, entry.Error))
	default:
		res.PrimaryResult = *out
	}

	conf := res.PrimaryResult.Confidence
	if conf >= b.MinPrimaryConfidence {
		return finish(domain.SkipEarlyExit), nil
	}
	if e.now().Sub(start) >= b.OverallTimeout {
		return finish(domain.SkipBudgetExhausted), nil
	}
	if reason := gate(res.PrimaryResult, plan, b); reason != domain.SkipNone {
		return finish(reason), nil
	}

	candidates := plan.Secondary[:min(len(plan.Secondary), b.SecondaryMax)]

	if plan.Mode == domain.ModeParallel {
		remaining := b.OverallTimeout - e.now().Sub(start)
		if remaining < b.SecondaryFloor {
			return finish(domain.SkipBudgetExhausted), nil
		}
		outcomes, trace := e.FanOut(ctx, candidates, req, min(b.PerAgentTimeout, remaining))
		res.Secondary = outcomes
		res.Trace = append(res.Trace, trace...)
		return finish(domain.SkipNone), nil
	}

	for i, key := range candidates {
		remaining := b.OverallTimeout - e.now().Sub(start)
		if remaining < b.SecondaryFloor {
			e.logger.Debug("secondary budget exhausted", "skipped", len(candidates)-i, "remaining", remaining)
			if i == 0 {
				return finish(domain.SkipBudgetExhausted), nil
			}
			break
		}
		out, entry := e.runTimed(ctx, key, domain.TraceSecondary, req, min(b.PerAgentTimeout, remaining))
		res.Trace = append(res.Trace, entry)
		if entry.Success {
			res.Secondary = append(res.Secondary, domain.SecondaryOutcome{Agent: key, Result: *out})
		}
	}
	return finish(domain.SkipNone), nil
}

// gate applies the secondary gates in precedence order.
func gate(primary domain.AgentResult, plan domain.ExecutionPlan, b Budget) domain.SkipReason {
	switch {
	case b.DisableSecondaries:
		return domain.SkipDisabled
	case b.SecondaryOnlyIfNoCitations && len(primary.Citations) > 0:
		return domain.SkipPrimaryCited
	case b.MinPrimaryConfidence-primary.Confidence <= b.NearThresholdMargin:
		return domain.SkipNearThreshold
	case len(plan.Secondary) == 0 || b.SecondaryMax <= 0:
		return domain.SkipNoCandidates
	}
	return domain.SkipNone
}

type agentOutcome struct {
	result *domain.AgentResult
	err    error
}

// runTimed races one agent invocation against timeout. The agent goroutine
// is abandoned on timeout and its late result is dropped.
func (e *Executor) runTimed(ctx context.Context, key domain.AgentKey, kind domain.TraceKind, req domain.AgentRequest, timeout time.Duration) (*domain.AgentResult, domain.TraceEntry) {
	ctx, span := tracer.StartSpan(ctx, "executor.agent", trace.WithAttributes(
		tracer.StringAttr("agent.key", string(key)),
		tracer.StringAttr("agent.kind", string(kind)),
	))
	defer span.End()

	entry := domain.TraceEntry{Agent: key, Kind: kind}
	agent := e.agents.Resolve(key)

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := e.now()
	done := make(chan agentOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- agentOutcome{err: fmt.Errorf("agent %s panicked: %v", key, r)}
			}
		}()
		res, err := agent.Answer(tctx, req)
		done <- agentOutcome{result: res, err: err}
	}()

	var out agentOutcome
	select {
	case out = <-done:
	case <-tctx.Done():
		out = agentOutcome{err: tctx.Err()}
	}
	entry.Duration = e.now().Sub(start)

	switch {
	case out.err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded):
		entry.TimedOut = true
		entry.Error = "timeout"
		e.logger.Warn("agent timed out", "agent", key, "kind", kind, "timeout", timeout)
	case out.err != nil:
		entry.Error = out.err.Error()
		e.logger.Warn("agent failed", "agent", key, "kind", kind, "error", out.err)
	case out.result == nil:
		entry.Error = "agent returned no result"
	default:
		entry.Success = true
		r := *out.result
		r.Confidence = domain.ClampConfidence(r.Confidence)
		span.SetAttributes(tracer.Float64Attr("agent.confidence", r.Confidence))
		tracer.SetOK(span)
		return &r, entry
	}

	span.SetAttributes(tracer.BoolAttr("agent.timed_out", entry.TimedOut))
	tracer.RecordError(span, errors.New(entry.Error))
	return nil, entry
}
