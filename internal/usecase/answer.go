// Package usecase holds the question-answer cycle that ties routing,
// execution and synthesis together.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"docroute/internal/domain"
	"docroute/internal/infra/config"
	"docroute/internal/infra/logger"
	"docroute/internal/infra/tracer"
	"docroute/internal/usecase/multiagent"
)

const (
	degradedAnswer     = "Sorry, I ran into a problem answering that question. Please try again."
	degradedConfidence = 0.1
)

// Classifier turns a question into a routing decision. It never fails.
type Classifier interface {
	Classify(ctx context.Context, q domain.Question) domain.RoutingDecision
}

// AnswerRequest is one caller question plus its context.
type AnswerRequest struct {
	Question  string            `json:"question"`
	History   []domain.Turn     `json:"history,omitempty"`
	Memory    domain.Memory     `json:"memory"`
	Documents []domain.Document `json:"documents"`
	// RoutingOverride skips classification when set.
	RoutingOverride *domain.RoutingDecision `json:"routing_override,omitempty"`
}

// AnswerResponse is the synthesized answer plus the decisions behind it.
type AnswerResponse struct {
	domain.SynthesizedResult
	Routing    domain.RoutingDecision `json:"routing"`
	Plan       domain.ExecutionPlan   `json:"plan"`
	SkipReason domain.SkipReason      `json:"skip_reason,omitempty"`
	CycleID    string                 `json:"cycle_id"`
}

// Answerer runs the full cycle: classify, plan, execute, synthesize, refine.
type Answerer struct {
	classifier   Classifier
	registry     *multiagent.Registry
	planner      *multiagent.Planner
	executor     *multiagent.Executor
	synthesizer  *multiagent.Synthesizer
	critic       *multiagent.Critic
	budget       multiagent.Budget
	historyLimit int
	bus          domain.EventBus
	logger       *slog.Logger
}

// NewAnswerer wires the cycle from router configuration. bus may be nil.
func NewAnswerer(classifier Classifier, registry *multiagent.Registry, rc config.RouterConfig, bus domain.EventBus, log *slog.Logger) *Answerer {
	log = logger.OrDiscard(log)
	exec := multiagent.NewExecutor(registry, log)
	limit := rc.HistoryLimit
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	return &Answerer{
		classifier:  classifier,
		registry:    registry,
		planner:     multiagent.NewPlanner(registry, domain.ExecutionMode(rc.ExecutionMode)),
		executor:    exec,
		synthesizer: multiagent.NewSynthesizer(nil, log),
		critic: multiagent.NewCritic(exec, multiagent.CriticConfig{
			Enabled:         rc.EnableCriticRefinement,
			MinConfidence:   rc.MinPrimaryConfidence,
			PerAgentTimeout: rc.PerAgentTimeout,
		}, log),
		budget:       multiagent.BudgetFromConfig(rc),
		historyLimit: limit,
		bus:          bus,
		logger:       logger.Component(log, "answerer"),
	}
}

// Answer runs one cycle. Only a failed first registry load is returned as an
// error; every other failure degrades into a low-confidence answer.
func (a *Answerer) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	start := time.Now()
	cycleID := generateULID(start)

	ctx, span := tracer.StartSpan(ctx, "answer.cycle", trace.WithAttributes(
		tracer.StringAttr("cycle.id", cycleID),
		tracer.IntAttr("cycle.documents", len(req.Documents)),
	))
	defer span.End()

	// 1. Make sure the agent snapshot is usable.
	if err := a.registry.EnsureLoaded(ctx); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("answer", err)
	}
	a.publish(ctx, domain.EventCycleStarted, cycleID, domain.CyclePayload{Question: req.Question})

	// 2. Classify, unless the caller already decided.
	q := domain.Question{Text: req.Question, History: req.History, Memory: req.Memory}
	var decision domain.RoutingDecision
	if req.RoutingOverride != nil {
		decision = *req.RoutingOverride
	} else {
		decision = a.classifier.Classify(ctx, q)
	}
	a.publish(ctx, domain.EventQuestionRouted, cycleID, decision)

	// 3. Plan and execute under the budget.
	plan := a.planner.Plan(decision, q.Text)
	agentReq := domain.AgentRequest{
		Question:     q.Text,
		Conversation: q.RecentHistory(a.historyLimit),
		Documents:    req.Documents,
		Routing:      decision,
	}
	exec, err := a.executor.Execute(ctx, plan, agentReq, a.budget)
	for _, e := range exec.Trace {
		a.publish(ctx, domain.EventAgentInvoked, cycleID, e)
	}

	resp := &AnswerResponse{Routing: decision, Plan: plan, SkipReason: exec.SkipReason, CycleID: cycleID}
	if err != nil {
		resp.SynthesizedResult = degraded(exec)
		tracer.RecordError(span, err)
		a.logger.Error("primary agent failed, returning degraded answer",
			"cycle", cycleID, "agent", plan.Primary, "error", err)
		a.publish(ctx, domain.EventCycleDegraded, cycleID, domain.CyclePayload{
			Question:   req.Question,
			AgentType:  domain.AgentTypeError,
			Confidence: degradedConfidence,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		})
		return resp, nil
	}

	// 4. Reconcile secondaries, then give the critic one chance.
	sr := a.synthesizer.Synthesize(ctx, exec, q.Text)
	sr = a.critic.Refine(ctx, sr, agentReq, plan)
	if sr.Refinement != nil && sr.Refinement.Applied {
		a.publish(ctx, domain.EventRefinementApplied, cycleID, sr.Refinement)
	}
	resp.SynthesizedResult = *sr

	span.SetAttributes(
		tracer.StringAttr("cycle.agent_type", sr.AgentType),
		tracer.Float64Attr("cycle.confidence", sr.Confidence),
		tracer.IntAttr("cycle.citations", len(sr.Citations)),
	)
	tracer.SetOK(span)

	a.logger.Info("question answered",
		"cycle", cycleID,
		"intent", decision.Intent,
		"agent", sr.AgentType,
		"confidence", sr.Confidence,
		"citations", len(sr.Citations),
		"agents_run", len(sr.ExecutionTrace),
		"duration", time.Since(start))
	a.publish(ctx, domain.EventCycleCompleted, cycleID, domain.CyclePayload{
		Question:   req.Question,
		AgentType:  sr.AgentType,
		Confidence: sr.Confidence,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return resp, nil
}

func degraded(exec *domain.ExecutionResult) domain.SynthesizedResult {
	return domain.SynthesizedResult{
		Answer:         degradedAnswer,
		Confidence:     degradedConfidence,
		Citations:      []domain.Citation{},
		AgentType:      domain.AgentTypeError,
		ExecutionTrace: exec.Trace,
	}
}

// NextMemory carries the cited documents of an answer into the memory for
// the next turn. Degraded answers leave the memory unchanged.
func NextMemory(prev domain.Memory, resp *AnswerResponse) domain.Memory {
	if resp == nil || resp.AgentType == domain.AgentTypeError {
		return prev
	}
	next := prev
	if len(resp.Routing.Filters) > 0 {
		next.ActiveFilters = make(map[string]string, len(resp.Routing.Filters))
		for k, v := range resp.Routing.Filters {
			next.ActiveFilters[k] = v
		}
	}
	if len(resp.Citations) == 0 {
		return next
	}

	ids := make([]string, len(resp.Citations))
	for i, c := range resp.Citations {
		ids[i] = c.DocID
	}
	next.LastCitedDocIDs = ids
	if len(ids) == 1 {
		next.FocusDocIDs = []string{ids[0]}
	} else {
		next.LastListDocIDs = ids
	}
	return next
}

func (a *Answerer) publish(ctx context.Context, typ domain.EventType, cycleID string, payload any) {
	if a.bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	a.bus.Publish(ctx, domain.Event{Type: typ, Timestamp: time.Now(), CycleID: cycleID, Payload: raw})
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
