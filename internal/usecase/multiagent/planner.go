package multiagent

import (
	"regexp"
	"strings"

	"docroute/internal/domain"
)

// ActiveSet reports which agents are currently active. Registry implements it.
type ActiveSet interface {
	IsActive(key domain.AgentKey) bool
}

var secondaryFamilies = []struct {
	agent domain.AgentKey
	re    *regexp.Regexp
}{
	{domain.AgentMetadata, regexp.MustCompile(`\b(titles?|senders?|dates?|categor(y|ies)|types?)\b`)},
	{domain.AgentContent, regexp.MustCompile(`\b(compare|analy[sz]e|difference|similar|find|search|show|list)\b`)},
}

// Planner turns a routing decision into an execution plan.
type Planner struct {
	active ActiveSet
	mode   domain.ExecutionMode
}

// NewPlanner creates a Planner. An empty mode means sequential.
func NewPlanner(active ActiveSet, mode domain.ExecutionMode) *Planner {
	if mode != domain.ModeParallel {
		mode = domain.ModeSequential
	}
	return &Planner{active: active, mode: mode}
}

// Plan picks the primary agent and the ordered secondary candidates.
// The primary is always active (or content); secondaries exclude the
// primary, hold no duplicates and are all active.
func (p *Planner) Plan(d domain.RoutingDecision, question string) domain.ExecutionPlan {
	name := d.PrimaryAgent
	if strings.TrimSpace(name) == "" {
		name = d.AgentType
	}
	primary := domain.NormalizeAgentKey(name)
	if !p.active.IsActive(primary) {
		primary = domain.DefaultAgent
	}

	plan := domain.ExecutionPlan{Primary: primary, Mode: p.mode}
	seen := map[domain.AgentKey]bool{primary: true}
	add := func(k domain.AgentKey) {
		if seen[k] || !p.active.IsActive(k) {
			return
		}
		seen[k] = true
		plan.Secondary = append(plan.Secondary, k)
	}

	for _, e := range d.SecondaryEmitters {
		if k, ok := domain.LookupAgentKey(e); ok {
			add(k)
		}
	}

	q := strings.ToLower(question)
	for _, f := range secondaryFamilies {
		if f.re.MatchString(q) {
			add(f.agent)
		}
	}
	return plan
}
