package domain

import "math"

// Intent labels produced by the classifier.
const (
	IntentGreeting        = "Greeting"
	IntentMetadataQuery   = "MetadataQuery"
	IntentContentQA       = "ContentQA"
	IntentLinkedDocuments = "LinkedDocuments"
	IntentDiff            = "Diff"
	IntentAnalytics       = "Analytics"
	IntentTimeline        = "Timeline"
	IntentExtraction      = "Extraction"
)

// AnswerType describes what kind of answer the question expects.
type AnswerType string

const (
	AnswerContent  AnswerType = "content"
	AnswerMetadata AnswerType = "metadata"
	AnswerMixed    AnswerType = "mixed"
)

// TargetPreference says which remembered document set a question refers to.
type TargetPreference string

const (
	PreferFocus TargetPreference = "focus"
	PreferList  TargetPreference = "list"
	PreferNone  TargetPreference = "none"
)

// Target resolves references like "this document" or "the second one".
type Target struct {
	Prefer      TargetPreference `json:"prefer"`
	Ordinal     *int             `json:"ordinal,omitempty"`
	WantPreview bool             `json:"want_preview"`
}

// RoutingDecision is produced once per question by the classifier and is
// read-only downstream.
type RoutingDecision struct {
	AgentType          string            `json:"agent_type"`
	Confidence         float64           `json:"confidence"`
	Reasoning          string            `json:"reasoning,omitempty"`
	Intent             string            `json:"intent"`
	Filters            map[string]string `json:"filters,omitempty"`
	AnswerType         AnswerType        `json:"answer_type"`
	RequiredFields     []string          `json:"required_fields,omitempty"`
	PrimaryAgent       string            `json:"primary_agent,omitempty"`
	SecondaryEmitters  []string          `json:"secondary_emitters,omitempty"`
	Target             Target            `json:"target"`
	NeedsClarification bool              `json:"needs_clarification"`
	Entities           []string          `json:"entities,omitempty"`
	ExpandedQuery      []string          `json:"expanded_query,omitempty"`
	// Fallback is set when the decision came from the deterministic classifier.
	Fallback bool `json:"fallback,omitempty"`
}

// ClampConfidence bounds c to [0, 1]. NaN maps to 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
