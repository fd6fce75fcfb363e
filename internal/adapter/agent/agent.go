// Package agent provides the closed set of answering agents. Each variant
// renders its inputs for a structured prompt and maps the prompt's citations
// back onto the candidate documents.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"docroute/internal/domain"
	"docroute/internal/infra/logger"
)

const (
	// maxDocuments caps how many candidates are rendered into a prompt.
	maxDocuments = 8
	// maxContentChars caps the rendered text of one document.
	maxContentChars = 2000

	noDocumentsConfidence = 0.2
	casualDefaultConf     = 0.9
)

const noDocumentsAnswer = "I couldn't find any documents relevant to your question."

type docInput struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Snippet  string            `json:"snippet,omitempty"`
	Content  string            `json:"content,omitempty"`
}

type routingInput struct {
	Intent         string            `json:"intent"`
	RequiredFields []string          `json:"required_fields,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
	Target         domain.Target     `json:"target"`
}

type answerInput struct {
	Question  string        `json:"question"`
	History   []domain.Turn `json:"history"`
	Documents []docInput    `json:"documents"`
	Routing   routingInput  `json:"routing"`
}

type citationOutput struct {
	DocID   string `json:"doc_id"`
	Snippet string `json:"snippet"`
}

type answerOutput struct {
	Answer     string           `json:"answer"`
	Confidence *float64         `json:"confidence"`
	Citations  []citationOutput `json:"citations"`
}

// PromptAgent answers through one named prompt.
type PromptAgent struct {
	key         domain.AgentKey
	prompt      string
	prompts     domain.PromptService
	withContent bool
	needsDocs   bool
	logger      *slog.Logger
}

// NewContentAgent answers from document text.
func NewContentAgent(prompts domain.PromptService, log *slog.Logger) *PromptAgent {
	return newPromptAgent(domain.AgentContent, domain.PromptAnswerContent, prompts, true, true, log)
}

// NewMetadataAgent answers from titles, types and metadata fields only.
func NewMetadataAgent(prompts domain.PromptService, log *slog.Logger) *PromptAgent {
	return newPromptAgent(domain.AgentMetadata, domain.PromptAnswerMetadata, prompts, false, true, log)
}

// NewCasualAgent handles small talk and never cites documents.
func NewCasualAgent(prompts domain.PromptService, log *slog.Logger) *PromptAgent {
	return newPromptAgent(domain.AgentCasual, domain.PromptCasualReply, prompts, false, false, log)
}

// All returns one agent per supported key.
func All(prompts domain.PromptService, log *slog.Logger) []domain.Agent {
	return []domain.Agent{
		NewMetadataAgent(prompts, log),
		NewContentAgent(prompts, log),
		NewCasualAgent(prompts, log),
	}
}

func newPromptAgent(key domain.AgentKey, prompt string, prompts domain.PromptService, withContent, needsDocs bool, log *slog.Logger) *PromptAgent {
	return &PromptAgent{
		key:         key,
		prompt:      prompt,
		prompts:     prompts,
		withContent: withContent,
		needsDocs:   needsDocs,
		logger:      logger.Component(logger.OrDiscard(log), "agent."+string(key)),
	}
}

func (a *PromptAgent) Key() domain.AgentKey { return a.key }

// Answer runs the agent's prompt. A document agent with no candidates
// answers without calling the model.
func (a *PromptAgent) Answer(ctx context.Context, req domain.AgentRequest) (*domain.AgentResult, error) {
	if a.needsDocs && len(req.Documents) == 0 {
		return &domain.AgentResult{Answer: noDocumentsAnswer, Confidence: noDocumentsConfidence, Citations: []domain.Citation{}}, nil
	}

	var out answerOutput
	if err := a.prompts.Invoke(ctx, a.prompt, a.input(req), &out); err != nil {
		return nil, fmt.Errorf("%s agent: %w", a.key, err)
	}

	res := &domain.AgentResult{Answer: out.Answer, Citations: []domain.Citation{}}
	switch {
	case out.Confidence != nil:
		res.Confidence = domain.ClampConfidence(*out.Confidence)
	case !a.needsDocs:
		res.Confidence = casualDefaultConf
	}
	if a.needsDocs {
		res.Citations = resolveCitations(out.Citations, req.Documents)
		if dropped := len(out.Citations) - len(res.Citations); dropped > 0 {
			a.logger.Debug("dropped unresolved citations", "count", dropped)
		}
	}
	return res, nil
}

func (a *PromptAgent) input(req domain.AgentRequest) answerInput {
	in := answerInput{
		Question:  req.Question,
		History:   req.Conversation,
		Documents: []docInput{},
		Routing: routingInput{
			Intent:         req.Routing.Intent,
			RequiredFields: req.Routing.RequiredFields,
			Filters:        req.Routing.Filters,
			Target:         req.Routing.Target,
		},
	}
	if in.History == nil {
		in.History = []domain.Turn{}
	}
	if !a.needsDocs {
		return in
	}
	for i, d := range req.Documents {
		if i == maxDocuments {
			break
		}
		di := docInput{ID: d.ID, Title: d.Title, Type: d.DocumentType, Metadata: d.Metadata}
		if a.withContent {
			di.Snippet = d.Snippet
			di.Content = truncate(d.Content, maxContentChars)
		}
		in.Documents = append(in.Documents, di)
	}
	return in
}

// resolveCitations keeps citations that name a candidate document, once each,
// and fills the document name from its title.
func resolveCitations(cites []citationOutput, docs []domain.Document) []domain.Citation {
	byID := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	seen := make(map[string]bool)
	out := []domain.Citation{}
	for _, c := range cites {
		d, ok := byID[c.DocID]
		if !ok || seen[c.DocID] {
			continue
		}
		seen[c.DocID] = true
		name := d.Title
		if name == "" {
			name = d.ID
		}
		snippet := c.Snippet
		if snippet == "" {
			snippet = d.Snippet
		}
		out = append(out, domain.Citation{DocID: d.ID, DocName: name, Snippet: snippet})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
