package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateRouter(cfg, ve)
	validateLLM(cfg, ve)
	validateAgentStore(cfg, ve)
	validateAgents(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateRouter(cfg *Config, ve *ValidationError) {
	r := cfg.Router
	if r.PerAgentTimeout <= 0 {
		ve.Add("router.per_agent_timeout must be > 0")
	}
	if r.OverallTimeout <= 0 {
		ve.Add("router.overall_timeout must be > 0")
	}
	if r.SecondaryMax < 0 {
		ve.Add("router.secondary_max must be >= 0")
	}
	if r.SecondaryFloor < 0 {
		ve.Add("router.secondary_floor must be >= 0")
	}
	if r.MinPrimaryConfidence < 0 || r.MinPrimaryConfidence > 1 {
		ve.Add("router.min_primary_confidence must be within [0, 1]")
	}
	if r.NearThresholdMargin < 0 || r.NearThresholdMargin > 1 {
		ve.Add("router.near_threshold_margin must be within [0, 1]")
	}
	switch r.ExecutionMode {
	case "", "sequential", "parallel":
	default:
		ve.Add("router.execution_mode %q is invalid (want: sequential, parallel)", r.ExecutionMode)
	}
	if r.HistoryLimit < 0 {
		ve.Add("router.history_limit must be >= 0")
	}
	if r.RegistryTTL <= 0 {
		ve.Add("router.registry_ttl must be > 0")
	}
	if r.RegistryRefreshSchedule != "" {
		if _, err := cron.ParseStandard(r.RegistryRefreshSchedule); err != nil {
			ve.Add("router.registry_refresh_schedule %q: %v", r.RegistryRefreshSchedule, err)
		}
	}
}

var validProviderTypes = map[string]bool{
	"openai":  true,
	"ollama":  true,
	"bedrock": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}
	if cfg.LLM.RateLimit.Enabled && cfg.LLM.RateLimit.RequestsPerMinute <= 0 {
		ve.Add("llm.rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
	}

	if len(cfg.LLM.Providers) == 0 {
		return
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, ollama, bedrock)", i, p.Type)
		}
		if p.APIKey == "" && p.Type != "ollama" && p.Type != "bedrock" {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via DOCROUTE_LLM_PROVIDER_%s_API_KEY)",
				i, p.Name, strings.ToUpper(p.Name))
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
	for _, fb := range cfg.LLM.Failover.Fallbacks {
		if !seen[fb] {
			ve.Add("llm.failover.fallbacks: unknown provider %q", fb)
		}
	}
}

func validateAgentStore(cfg *Config, ve *ValidationError) {
	switch cfg.AgentStore.Type {
	case "", "static":
	case "sqlite":
		if cfg.AgentStore.Path == "" {
			ve.Add("agent_store.path is required for the sqlite store")
		}
	default:
		ve.Add("agent_store.type %q is invalid (want: static, sqlite)", cfg.AgentStore.Type)
	}
}

var validAgentKeys = map[string]bool{"metadata": true, "content": true, "casual": true}

func validateAgents(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, a := range cfg.Agents {
		key := strings.ToLower(strings.TrimSpace(a.Key))
		if !validAgentKeys[key] {
			ve.Add("agents[%d].key %q is invalid (want: metadata, content, casual)", i, a.Key)
			continue
		}
		if seen[key] {
			ve.Add("agents[%d]: duplicate agent key %q", i, key)
		}
		seen[key] = true
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}
