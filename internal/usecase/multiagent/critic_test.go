package multiagent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docroute/internal/domain"
)

func corpus() []domain.Document {
	var docs []domain.Document
	for i := range 10 {
		d := domain.Document{ID: fmt.Sprintf("d%d", i), Title: fmt.Sprintf("Note %d", i), DocumentType: "note"}
		if i%3 == 0 && i > 0 {
			d.Content = "Payment terms agreed with ACME Corp."
		}
		docs = append(docs, d)
	}
	return docs
}

func newTestCritic(agent *scriptedAgent, enabled bool) *Critic {
	exec := NewExecutor(agentMap{domain.AgentContent: agent}, nil)
	return NewCritic(exec, CriticConfig{Enabled: enabled, MinConfidence: 0.7, PerAgentTimeout: time.Second}, nil)
}

func weakResult() *domain.SynthesizedResult {
	return &domain.SynthesizedResult{Answer: "not sure", Confidence: 0.3, Citations: []domain.Citation{}, AgentType: "content"}
}

func refineRequest() domain.AgentRequest {
	return domain.AgentRequest{
		Question:  "what are the payment terms with acme",
		Documents: corpus(),
		Routing:   domain.RoutingDecision{Entities: []string{"ACME"}},
	}
}

func TestCritic_NotTriggered(t *testing.T) {
	agent := &scriptedAgent{key: domain.AgentContent, result: answer("better", 0.9, "d3")}
	c := newTestCritic(agent, true)

	strong := &domain.SynthesizedResult{Answer: "ok", Confidence: 0.8, Citations: []domain.Citation{{DocID: "d1"}}}
	assert.Same(t, strong, c.Refine(context.Background(), strong, refineRequest(), plan(domain.AgentContent)))

	disabled := newTestCritic(agent, false)
	weak := weakResult()
	assert.Same(t, weak, disabled.Refine(context.Background(), weak, refineRequest(), plan(domain.AgentContent)))
	assert.Equal(t, 0, agent.callCount())
}

func TestCritic_AppliesImprovement(t *testing.T) {
	agent := &scriptedAgent{key: domain.AgentContent, result: answer("Net 30 with ACME", 0.5, "d3")}
	c := newTestCritic(agent, true)

	out := c.Refine(context.Background(), weakResult(), refineRequest(), plan(domain.AgentContent))

	assert.Equal(t, "Net 30 with ACME", out.Answer)
	assert.InDelta(t, 0.5, out.Confidence, 1e-9)
	assert.Len(t, out.Citations, 1)
	require.NotNil(t, out.Refinement)
	assert.True(t, out.Refinement.Applied)
	assert.Equal(t, 3, out.Refinement.DocumentCount)
	assert.Equal(t, []string{"acme"}, out.Refinement.Keywords)
	assert.Len(t, agent.lastDocs, 3)
}

func TestCritic_KeepsOriginalWithoutImprovement(t *testing.T) {
	agent := &scriptedAgent{key: domain.AgentContent, result: answer("still unsure", 0.2)}
	c := newTestCritic(agent, true)

	in := weakResult()
	out := c.Refine(context.Background(), in, refineRequest(), plan(domain.AgentContent))

	assert.Equal(t, "not sure", out.Answer)
	assert.InDelta(t, 0.3, out.Confidence, 1e-9)
	require.NotNil(t, out.Refinement)
	assert.True(t, out.Refinement.Attempted)
	assert.False(t, out.Refinement.Applied)
	assert.Nil(t, in.Refinement, "input is not mutated")
}

func TestCritic_MoreCitationsAtLowerConfidenceIsApplied(t *testing.T) {
	agent := &scriptedAgent{key: domain.AgentContent, result: answer("cited", 0.25, "d3")}
	c := newTestCritic(agent, true)

	out := c.Refine(context.Background(), weakResult(), refineRequest(), plan(domain.AgentContent))
	assert.Equal(t, "cited", out.Answer)
	assert.True(t, out.Refinement.Applied)
}

func TestCritic_NoKeywordsPassesAllDocuments(t *testing.T) {
	agent := &scriptedAgent{key: domain.AgentContent, result: answer("x", 0.1)}
	c := newTestCritic(agent, true)

	req := refineRequest()
	req.Routing = domain.RoutingDecision{}
	c.Refine(context.Background(), weakResult(), req, plan(domain.AgentContent))
	assert.Len(t, agent.lastDocs, 10)
}

func TestCritic_NoMatchingDocumentsSkipsRerun(t *testing.T) {
	agent := &scriptedAgent{key: domain.AgentContent, result: answer("x", 0.9, "d1")}
	c := newTestCritic(agent, true)

	req := refineRequest()
	req.Routing = domain.RoutingDecision{Entities: []string{"zebra"}}
	out := c.Refine(context.Background(), weakResult(), req, plan(domain.AgentContent))

	assert.Equal(t, 0, agent.callCount())
	assert.Equal(t, "not sure", out.Answer)
	assert.False(t, out.Refinement.Applied)
	assert.Equal(t, 0, out.Refinement.DocumentCount)
}

func TestCritic_ErrorsAreSwallowed(t *testing.T) {
	for name, agent := range map[string]*scriptedAgent{
		"error": {key: domain.AgentContent, err: errors.New("llm down")},
		"panic": {key: domain.AgentContent, panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestCritic(agent, true)
			out := c.Refine(context.Background(), weakResult(), refineRequest(), plan(domain.AgentContent))
			assert.Equal(t, "not sure", out.Answer)
			require.NotNil(t, out.Refinement)
			assert.Contains(t, out.Refinement.Error, domain.ErrRefinementFailed.Error())
		})
	}
}

func TestRefinementKeywords(t *testing.T) {
	got := RefinementKeywords(domain.RoutingDecision{
		Entities:      []string{"Acme Corp", " ", "Lease"},
		ExpandedQuery: []string{"lease", "rental"},
		Filters:       map[string]string{"z": "Invoice", "a": "2024"},
	})
	assert.Equal(t, []string{"acme corp", "lease", "rental", "2024", "invoice"}, got)
}

func TestFilterDocuments(t *testing.T) {
	docs := []domain.Document{
		{ID: "1", DocumentType: "Invoice"},
		{ID: "2", Title: "Lease agreement"},
		{ID: "3", Content: "nothing relevant"},
	}
	got := FilterDocuments(docs, []string{"invoice", "lease"})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)

	assert.Len(t, FilterDocuments(docs, nil), 3)
}
