package domain

import "time"

// ExecutionMode selects how secondary agents are scheduled.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// ExecutionPlan is the planner's output for one question.
// Primary is always an active agent; Secondary excludes Primary and holds no duplicates.
type ExecutionPlan struct {
	Primary   AgentKey      `json:"primary"`
	Secondary []AgentKey    `json:"secondary"`
	Mode      ExecutionMode `json:"mode"`
}

// TraceKind distinguishes primary from secondary invocations.
type TraceKind string

const (
	TracePrimary   TraceKind = "primary"
	TraceSecondary TraceKind = "secondary"
)

// TraceEntry records one agent invocation attempt, including timeouts.
type TraceEntry struct {
	Agent    AgentKey      `json:"agent"`
	Kind     TraceKind     `json:"type"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// DurationMs is the entry's duration in whole milliseconds.
func (e TraceEntry) DurationMs() int64 { return e.Duration.Milliseconds() }

// SkipReason explains why no secondary agent ran.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipEarlyExit       SkipReason = "early_exit"
	SkipBudgetExhausted SkipReason = "budget_exhausted"
	SkipDisabled        SkipReason = "disabled"
	SkipPrimaryCited    SkipReason = "primary_has_citations"
	SkipNearThreshold   SkipReason = "near_threshold"
	SkipNoCandidates    SkipReason = "no_candidates"
	SkipPrimaryFailed   SkipReason = "primary_failed"
)

// SecondaryOutcome is a successful secondary result, kept in plan order.
type SecondaryOutcome struct {
	Agent  AgentKey    `json:"agent"`
	Result AgentResult `json:"result"`
}

// ExecutionResult is the budgeted executor's output.
type ExecutionResult struct {
	Primary       AgentKey           `json:"primary_agent"`
	PrimaryResult AgentResult        `json:"primary"`
	Secondary     []SecondaryOutcome `json:"secondary,omitempty"`
	Trace         []TraceEntry       `json:"execution_trace"`
	SkipReason    SkipReason         `json:"skip_reason,omitempty"`
	TotalDuration time.Duration      `json:"total_duration"`
}

// SecondaryResult returns the secondary result for key, if one exists.
func (r *ExecutionResult) SecondaryResult(key AgentKey) (AgentResult, bool) {
	for _, s := range r.Secondary {
		if s.Agent == key {
			return s.Result, true
		}
	}
	return AgentResult{}, false
}

// AgentInsight is a secondary result that cleared the synthesis quality bar.
type AgentInsight struct {
	Agent      AgentKey   `json:"agent"`
	Answer     string     `json:"answer"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

// ConsensusResult describes an adopted agreement among insights.
type ConsensusResult struct {
	Answer        string     `json:"answer"`
	Confidence    float64    `json:"confidence"`
	Agents        []AgentKey `json:"agents"`
	GroupSize     int        `json:"group_size"`
	TotalInsights int        `json:"total_insights"`
}

// Refinement records the critic's single optional second pass.
type Refinement struct {
	Attempted     bool          `json:"attempted"`
	Applied       bool          `json:"applied"`
	Keywords      []string      `json:"keywords,omitempty"`
	DocumentCount int           `json:"document_count"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// AgentTypeError marks a degraded response produced after a primary failure.
const AgentTypeError = "error"

// SynthesizedResult is the final, caller-facing answer of one cycle.
type SynthesizedResult struct {
	Answer         string           `json:"answer"`
	Confidence     float64          `json:"confidence"`
	Citations      []Citation       `json:"citations"`
	AgentType      string           `json:"agent_type"`
	AgentInsights  []AgentInsight   `json:"agent_insights,omitempty"`
	Consensus      *ConsensusResult `json:"consensus_result,omitempty"`
	ExecutionTrace []TraceEntry     `json:"execution_trace"`
	Refinement     *Refinement      `json:"refinement,omitempty"`
}
