package multiagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docroute/internal/domain"
	"docroute/internal/infra/logger"
	"docroute/internal/infra/tracer"
)

const (
	insightMinConfidence = 0.4
	insightMaxChars      = 200
	primaryWeight        = 0.7
	consensusBoost       = 1.5
)

// Synthesizer merges an execution result into one answer.
type Synthesizer struct {
	similarity Similarity
	logger     *slog.Logger
}

// NewSynthesizer creates a Synthesizer. A nil similarity uses DefaultSimilarity.
func NewSynthesizer(sim Similarity, log *slog.Logger) *Synthesizer {
	if sim == nil {
		sim = DefaultSimilarity
	}
	return &Synthesizer{similarity: sim, logger: logger.Component(logger.OrDiscard(log), "synthesizer")}
}

// Synthesize reconciles the primary result with the secondary insights.
func (s *Synthesizer) Synthesize(ctx context.Context, res *domain.ExecutionResult, question string) *domain.SynthesizedResult {
	_, span := tracer.StartSpan(ctx, "synthesizer.synthesize")
	defer span.End()

	primary := res.PrimaryResult
	out := &domain.SynthesizedResult{
		Answer:         primary.Answer,
		Confidence:     primary.Confidence,
		Citations:      MergeCitations(primary.Citations),
		AgentType:      string(res.Primary),
		ExecutionTrace: append([]domain.TraceEntry(nil), res.Trace...),
	}

	insights := collectInsights(res.Secondary)
	span.SetAttributes(
		tracer.IntAttr("synthesis.secondaries", len(res.Secondary)),
		tracer.IntAttr("synthesis.insights", len(insights)),
	)
	if len(insights) == 0 {
		return out
	}
	out.AgentInsights = insights
	blended := blend(primary.Confidence, insights)

	if c := s.consensus(insights); c != nil {
		c.Confidence = max(c.Confidence, blended)
		out.Answer = c.Answer
		out.Confidence = c.Confidence
		out.Consensus = c
		lists := [][]domain.Citation{primary.Citations}
		for _, in := range insights {
			if contains(c.Agents, in.Agent) {
				lists = append(lists, in.Citations)
			}
		}
		out.Citations = MergeCitations(lists...)
		s.logger.Debug("consensus adopted", "group", c.GroupSize, "insights", c.TotalInsights, "confidence", c.Confidence)
		return out
	}

	out.Answer = withInsights(primary.Answer, insights)
	out.Confidence = blended
	lists := [][]domain.Citation{primary.Citations}
	for _, in := range insights {
		lists = append(lists, in.Citations)
	}
	out.Citations = MergeCitations(lists...)
	return out
}

func collectInsights(secondary []domain.SecondaryOutcome) []domain.AgentInsight {
	var out []domain.AgentInsight
	for _, s := range secondary {
		r := s.Result
		if r.Confidence > insightMinConfidence && len(r.Citations) > 0 {
			out = append(out, domain.AgentInsight{
				Agent:      s.Agent,
				Answer:     r.Answer,
				Confidence: r.Confidence,
				Citations:  r.Citations,
			})
		}
	}
	return out
}

// consensus groups insights greedily against each group's first member and
// adopts the highest-scoring group when it has at least two members.
func (s *Synthesizer) consensus(insights []domain.AgentInsight) *domain.ConsensusResult {
	var groups [][]domain.AgentInsight
	for _, in := range insights {
		placed := false
		for i, g := range groups {
			if s.similarity.Similar(g[0].Answer, in.Answer) {
				groups[i] = append(g, in)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []domain.AgentInsight{in})
		}
	}

	best, bestSum := -1, 0.0
	for i, g := range groups {
		sum := 0.0
		for _, in := range g {
			sum += in.Confidence
		}
		if best < 0 || sum > bestSum {
			best, bestSum = i, sum
		}
	}
	if best < 0 || len(groups[best]) < 2 {
		return nil
	}

	g := groups[best]
	top := g[0]
	agents := make([]domain.AgentKey, 0, len(g))
	for _, in := range g {
		if in.Confidence > top.Confidence {
			top = in
		}
		agents = append(agents, in.Agent)
	}
	return &domain.ConsensusResult{
		Answer:        top.Answer,
		Confidence:    min(1, bestSum/float64(len(insights))*consensusBoost),
		Agents:        agents,
		GroupSize:     len(g),
		TotalInsights: len(insights),
	}
}

// blend weights the primary at 0.7 and splits 0.3 evenly across insights.
func blend(primary float64, insights []domain.AgentInsight) float64 {
	c := primary * primaryWeight
	share := (1 - primaryWeight) / float64(len(insights))
	for _, in := range insights {
		c += share * in.Confidence
	}
	return min(1, c)
}

func withInsights(answer string, insights []domain.AgentInsight) string {
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\nAdditional insights:")
	for _, in := range insights {
		fmt.Fprintf(&b, "\n- %s: %s", in.Agent, truncateRunes(strings.TrimSpace(in.Answer), insightMaxChars))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// MergeCitations concatenates lists, keeping the first citation seen for each
// document id. The result is never nil.
func MergeCitations(lists ...[]domain.Citation) []domain.Citation {
	seen := make(map[string]bool)
	out := []domain.Citation{}
	for _, l := range lists {
		for _, c := range l {
			if seen[c.DocID] {
				continue
			}
			seen[c.DocID] = true
			out = append(out, c)
		}
	}
	return out
}

func contains(keys []domain.AgentKey, k domain.AgentKey) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}
