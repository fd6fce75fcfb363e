// Package prompt implements domain.PromptService: named prompts with a fixed
// JSON input/output contract, executed against an LLM provider in JSON mode
// and validated against each prompt's JSON Schema.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/trace"

	"docroute/internal/domain"
	"docroute/internal/infra/tracer"
)

var _ domain.PromptService = (*Service)(nil)

// Definition is one named prompt.
type Definition struct {
	Name   string
	System string // instruction sent as the system message
	Schema string // JSON Schema the output must satisfy
}

// Config tunes every request the service sends.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Overrides replaces the system instruction of named prompts.
	Overrides map[string]string
}

type compiled struct {
	def    Definition
	schema *jsonschema.Schema
}

// Service runs named prompts against a provider.
type Service struct {
	provider domain.LLMProvider
	prompts  map[string]compiled
	cfg      Config
	logger   *slog.Logger
}

// NewService compiles every definition's schema up front; a bad schema is a
// construction error rather than a per-call failure.
func NewService(provider domain.LLMProvider, defs []Definition, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	prompts := make(map[string]compiled, len(defs))
	for _, d := range defs {
		if _, dup := prompts[d.Name]; dup {
			return nil, domain.NewSubSystemError("prompt", "prompt.NewService", domain.ErrDuplicate, d.Name)
		}
		schema, err := jsonschema.NewCompiler().Compile([]byte(d.Schema))
		if err != nil {
			return nil, fmt.Errorf("compile schema for prompt %q: %w", d.Name, err)
		}
		if o, ok := cfg.Overrides[d.Name]; ok && strings.TrimSpace(o) != "" {
			d.System = o
		}
		prompts[d.Name] = compiled{def: d, schema: schema}
	}
	return &Service{provider: provider, prompts: prompts, cfg: cfg, logger: logger}, nil
}

// Invoke implements domain.PromptService.
func (s *Service) Invoke(ctx context.Context, name string, input any, out any) error {
	ctx, span := tracer.StartSpan(ctx, "prompt.invoke",
		trace.WithAttributes(tracer.StringAttr("prompt.name", name)),
	)
	defer span.End()

	err := s.invoke(ctx, name, input, out)
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Debug("prompt invocation failed", "prompt", name, "error", err)
		return err
	}
	tracer.SetOK(span)
	return nil
}

func (s *Service) invoke(ctx context.Context, name string, input any, out any) error {
	p, ok := s.prompts[name]
	if !ok {
		return domain.NewDomainError("prompt.Invoke", domain.ErrPromptNotFound, name)
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return domain.NewDomainError("prompt.Invoke", domain.ErrInvalidInput, err.Error())
	}

	resp, err := s.provider.Chat(ctx, domain.ChatRequest{
		Model: s.cfg.Model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemMessage(p.def)},
			{Role: domain.RoleUser, Content: "INPUT_JSON:\n" + string(inputJSON)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("prompt %s: %w: %v", name, domain.ErrTimeout, err)
		}
		return fmt.Errorf("prompt %s: %w", name, err)
	}

	raw := stripCodeFences(resp.Message.Content)
	if raw == "" {
		return domain.NewDomainError("prompt.Invoke", domain.ErrPromptOutput, name+": empty output")
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.NewDomainError("prompt.Invoke", domain.ErrPromptOutput,
			fmt.Sprintf("%s: invalid JSON: %v: %s", name, err, truncate(raw, 200)))
	}
	if result := p.schema.Validate(parsed); !result.IsValid() {
		return domain.NewDomainError("prompt.Invoke", domain.ErrPromptSchema, fmt.Sprintf("%s: %s", name, result.Error()))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return domain.NewDomainError("prompt.Invoke", domain.ErrPromptOutput, fmt.Sprintf("%s: decode: %v", name, err))
	}
	return nil
}

// Names lists the registered prompts.
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.prompts))
	for n := range s.prompts {
		names = append(names, n)
	}
	return names
}

func systemMessage(d Definition) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(d.System))
	b.WriteString("\n\nReturn ONLY one JSON object. No markdown fences, no commentary.")
	b.WriteString("\nThe object must satisfy this JSON Schema:\n")
	b.WriteString(d.Schema)
	return b.String()
}

var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// stripCodeFences removes a markdown fence the model may wrap its output in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// truncate shortens s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	end := 0
	for i := range s {
		if i > maxLen {
			break
		}
		end = i
	}
	return s[:end] + "..."
}
