// Package routing classifies questions into routing decisions.
package routing

import (
	"context"
	"log/slog"
	"strings"

	"docroute/internal/domain"
	"docroute/internal/infra/logger"
	"docroute/internal/infra/tracer"
)

type routeInput struct {
	Question string        `json:"question"`
	History  []domain.Turn `json:"history"`
	Memory   domain.Memory `json:"memory"`
}

type routeTarget struct {
	Prefer      string `json:"prefer"`
	Ordinal     *int   `json:"ordinal"`
	WantPreview bool   `json:"want_preview"`
}

type routeOutput struct {
	AgentType          string            `json:"agent_type"`
	Confidence         float64           `json:"confidence"`
	Reasoning          string            `json:"reasoning"`
	Intent             string            `json:"intent"`
	Filters            map[string]string `json:"filters"`
	AnswerType         string            `json:"answer_type"`
	RequiredFields     []string          `json:"required_fields"`
	PrimaryAgent       string            `json:"primary_agent"`
	SecondaryEmitters  []string          `json:"secondary_emitters"`
	Target             *routeTarget      `json:"target"`
	NeedsClarification bool              `json:"needs_clarification"`
	Entities           []string          `json:"entities"`
	ExpandedQuery      []string          `json:"expanded_query"`
}

// Classifier asks the route_question prompt for a decision and falls back to
// KeywordClassifier when the prompt fails or names an unsupported agent.
type Classifier struct {
	prompts      domain.PromptService
	fallback     KeywordClassifier
	historyLimit int
	logger       *slog.Logger
}

// NewClassifier creates a Classifier. A nil prompt service makes every
// decision come from the keyword rules.
func NewClassifier(prompts domain.PromptService, historyLimit int, log *slog.Logger) *Classifier {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	return &Classifier{
		prompts:      prompts,
		historyLimit: historyLimit,
		logger:       logger.Component(logger.OrDiscard(log), "classifier"),
	}
}

// Classify always returns a decision; it never fails.
func (c *Classifier) Classify(ctx context.Context, q domain.Question) domain.RoutingDecision {
	ctx, span := tracer.StartSpan(ctx, "routing.classify")
	defer span.End()

	d, err := c.classifyLLM(ctx, q)
	if err != nil {
		c.logger.Warn("llm classification failed, using keyword rules", "error", err)
		tracer.RecordError(span, err)
		d = c.fallback.Classify(q)
	}

	span.SetAttributes(
		tracer.StringAttr("routing.agent_type", d.AgentType),
		tracer.StringAttr("routing.intent", d.Intent),
		tracer.Float64Attr("routing.confidence", d.Confidence),
		tracer.BoolAttr("routing.fallback", d.Fallback),
	)
	return d
}

func (c *Classifier) classifyLLM(ctx context.Context, q domain.Question) (domain.RoutingDecision, error) {
	if c.prompts == nil {
		return domain.RoutingDecision{}, domain.NewSubSystemError("routing", "Classifier.Classify", domain.ErrClassifierFailed, "no prompt service")
	}

	in := routeInput{Question: q.Text, History: q.RecentHistory(c.historyLimit), Memory: q.Memory}
	if in.History == nil {
		in.History = []domain.Turn{}
	}
	var out routeOutput
	if err := c.prompts.Invoke(ctx, domain.PromptRouteQuestion, in, &out); err != nil {
		return domain.RoutingDecision{}, domain.NewSubSystemError("routing", "Classifier.Classify", domain.ErrClassifierFailed, err.Error())
	}

	agent, ok := domain.LookupAgentKey(out.AgentType)
	if !ok {
		return domain.RoutingDecision{}, domain.NewSubSystemError("routing", "Classifier.Classify", domain.ErrClassifierFailed, "unsupported agent "+out.AgentType)
	}
	return toDecision(agent, out), nil
}

func toDecision(agent domain.AgentKey, out routeOutput) domain.RoutingDecision {
	d := domain.RoutingDecision{
		AgentType:          string(agent),
		Confidence:         domain.ClampConfidence(out.Confidence),
		Reasoning:          out.Reasoning,
		Intent:             out.Intent,
		Filters:            out.Filters,
		AnswerType:         domain.AnswerType(out.AnswerType),
		RequiredFields:     out.RequiredFields,
		PrimaryAgent:       strings.ToLower(strings.TrimSpace(out.PrimaryAgent)),
		SecondaryEmitters:  out.SecondaryEmitters,
		NeedsClarification: out.NeedsClarification,
		Entities:           out.Entities,
		ExpandedQuery:      out.ExpandedQuery,
		Target:             domain.Target{Prefer: domain.PreferNone},
	}
	if d.PrimaryAgent == "" {
		d.PrimaryAgent = string(agent)
	}
	if t := out.Target; t != nil {
		if t.Prefer != "" {
			d.Target.Prefer = domain.TargetPreference(t.Prefer)
		}
		d.Target.Ordinal = t.Ordinal
		d.Target.WantPreview = t.WantPreview
	}
	return d
}
