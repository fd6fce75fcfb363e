package multiagent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"docroute/internal/domain"
	"docroute/internal/infra/logger"
	"docroute/internal/infra/tracer"
)

// CriticConfig configures a Critic.
type CriticConfig struct {
	Enabled         bool
	MinConfidence   float64
	PerAgentTimeout time.Duration
}

// Critic re-runs the primary agent once over a keyword-narrowed document set
// when the synthesized answer is weak.
type Critic struct {
	exec   *Executor
	cfg    CriticConfig
	logger *slog.Logger
}

// NewCritic creates a Critic that invokes agents through exec.
func NewCritic(exec *Executor, cfg CriticConfig, log *slog.Logger) *Critic {
	return &Critic{exec: exec, cfg: cfg, logger: logger.Component(logger.OrDiscard(log), "critic")}
}

// ShouldRefine reports whether sr qualifies for a refinement pass.
func (c *Critic) ShouldRefine(sr *domain.SynthesizedResult) bool {
	return c.cfg.Enabled && (sr.Confidence < c.cfg.MinConfidence || len(sr.Citations) == 0)
}

// Refine returns sr, or a copy carrying the refined answer when the second
// pass strictly improves confidence or citation count. req holds the
// original question, conversation, documents and routing decision.
// Failures are logged and never surface to the caller.
func (c *Critic) Refine(ctx context.Context, sr *domain.SynthesizedResult, req domain.AgentRequest, plan domain.ExecutionPlan) (out *domain.SynthesizedResult) {
	if !c.ShouldRefine(sr) {
		return sr
	}

	ctx, span := tracer.StartSpan(ctx, "critic.refine")
	defer span.End()

	start := time.Now()
	ref := &domain.Refinement{Attempted: true}
	out = sr
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", domain.ErrRefinementFailed, r)
			c.logger.Error("refinement panicked", "error", err)
			tracer.RecordError(span, err)
			ref.Error = err.Error()
			out = sr
		}
		ref.Duration = time.Since(start)
		withRef := *out
		withRef.Refinement = ref
		out = &withRef
	}()

	ref.Keywords = RefinementKeywords(req.Routing)
	narrowed := FilterDocuments(req.Documents, ref.Keywords)
	ref.DocumentCount = len(narrowed)
	if len(narrowed) == 0 || len(narrowed) > len(req.Documents) {
		c.logger.Debug("refinement skipped", "keywords", len(ref.Keywords), "documents", len(narrowed))
		return sr
	}

	rreq := req
	rreq.Documents = narrowed
	res, entry := c.exec.runTimed(ctx, plan.Primary, domain.TracePrimary, rreq, c.cfg.PerAgentTimeout)
	if !entry.Success {
		err := fmt.Errorf("%w: %s", domain.ErrRefinementFailed, entry.Error)
		c.logger.Warn("refinement run failed", "agent", plan.Primary, "error", err)
		tracer.RecordError(span, err)
		ref.Error = err.Error()
		return sr
	}

	if res.Confidence <= sr.Confidence && len(res.Citations) <= len(sr.Citations) {
		c.logger.Debug("refinement did not improve result",
			"before", sr.Confidence, "after", res.Confidence)
		tracer.SetOK(span)
		return sr
	}

	refined := *sr
	refined.Answer = res.Answer
	refined.Confidence = res.Confidence
	refined.Citations = MergeCitations(res.Citations)
	refined.Consensus = nil
	ref.Applied = true
	span.SetAttributes(tracer.Float64Attr("critic.confidence", res.Confidence))
	tracer.SetOK(span)
	c.logger.Info("refinement applied", "agent", plan.Primary,
		"before", sr.Confidence, "after", res.Confidence, "documents", len(narrowed))
	return &refined
}

// RefinementKeywords collects lowercased, de-duplicated entity, expanded
// query and filter terms from a routing decision.
func RefinementKeywords(d domain.RoutingDecision) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, e := range d.Entities {
		add(e)
	}
	for _, q := range d.ExpandedQuery {
		add(q)
	}
	for _, k := range slices.Sorted(maps.Keys(d.Filters)) {
		add(d.Filters[k])
	}
	return out
}

// FilterDocuments keeps documents whose type, title or text contains any
// keyword, in their original order. No keywords keeps every document.
func FilterDocuments(docs []domain.Document, keywords []string) []domain.Document {
	if len(keywords) == 0 {
		return docs
	}
	var out []domain.Document
	for _, d := range docs {
		hay := strings.ToLower(strings.Join([]string{d.DocumentType, d.Title, d.Snippet, d.Content}, "\n"))
		for _, k := range keywords {
			if strings.Contains(hay, k) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
