package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Router.PerAgentTimeout != 8*time.Second {
		t.Errorf("PerAgentTimeout = %v, want 8s", cfg.Router.PerAgentTimeout)
	}
	if cfg.Router.OverallTimeout != 15*time.Second {
		t.Errorf("OverallTimeout = %v, want 15s", cfg.Router.OverallTimeout)
	}
	if cfg.Router.SecondaryMax != 1 {
		t.Errorf("SecondaryMax = %d, want 1", cfg.Router.SecondaryMax)
	}
	if cfg.Router.MinPrimaryConfidence != 0.7 {
		t.Errorf("MinPrimaryConfidence = %v, want 0.7", cfg.Router.MinPrimaryConfidence)
	}
	if cfg.Router.DisableSecondaries || !cfg.Router.SecondaryOnlyIfNoCitations || !cfg.Router.EnableCriticRefinement {
		t.Errorf("unexpected router flags: %+v", cfg.Router)
	}
	if len(cfg.Agents) != 3 {
		t.Errorf("Agents = %d, want 3", len(cfg.Agents))
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.SecondaryMax != 1 {
		t.Errorf("expected defaults, got SecondaryMax=%d", cfg.Router.SecondaryMax)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
router:
  per_agent_timeout: 2s
  overall_timeout: 5s
  secondary_max: 2
  execution_mode: parallel
llm:
  default_provider: "local"
  providers:
    - name: "local"
      type: "ollama"
      base_url: "http://localhost:11434"
      model: "llama3"
agents:
  - key: content
    name: Content
  - key: metadata
    name: Metadata
    disabled: true
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.PerAgentTimeout != 2*time.Second || cfg.Router.OverallTimeout != 5*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.Router.PerAgentTimeout, cfg.Router.OverallTimeout)
	}
	if cfg.Router.ExecutionMode != "parallel" || cfg.Router.SecondaryMax != 2 {
		t.Errorf("router = %+v", cfg.Router)
	}
	if cfg.Router.MinPrimaryConfidence != 0.7 {
		t.Errorf("unset fields should keep defaults, MinPrimaryConfidence = %v", cfg.Router.MinPrimaryConfidence)
	}
	if len(cfg.Agents) != 2 || !cfg.Agents[1].Disabled {
		t.Errorf("Agents = %+v", cfg.Agents)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCROUTE_LLM_DEFAULT_PROVIDER", "ollama")
	t.Setenv("DOCROUTE_LOGGER_LEVEL", "debug")
	t.Setenv("DOCROUTE_PER_AGENT_TIMEOUT_MS", "1500")
	t.Setenv("DOCROUTE_OVERALL_TIMEOUT", "4s")
	t.Setenv("DOCROUTE_SECONDARY_MAX", "0")
	t.Setenv("DOCROUTE_MIN_PRIMARY_CONFIDENCE", "0.55")
	t.Setenv("DOCROUTE_DISABLE_SECONDARIES", "true")
	t.Setenv("DOCROUTE_SECONDARY_ONLY_IF_NO_CITATIONS", "false")
	t.Setenv("DOCROUTE_ENABLE_CRITIC_REFINEMENT", "0")
	t.Setenv("DOCROUTE_AGENT_STORE_TYPE", "sqlite")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.LLM.DefaultProvider != "ollama" || cfg.Logger.Level != "debug" {
		t.Errorf("basic overrides not applied: %+v %+v", cfg.LLM, cfg.Logger)
	}
	if cfg.Router.PerAgentTimeout != 1500*time.Millisecond {
		t.Errorf("PerAgentTimeout = %v", cfg.Router.PerAgentTimeout)
	}
	if cfg.Router.OverallTimeout != 4*time.Second {
		t.Errorf("OverallTimeout = %v", cfg.Router.OverallTimeout)
	}
	if cfg.Router.SecondaryMax != 0 {
		t.Errorf("SecondaryMax = %d", cfg.Router.SecondaryMax)
	}
	if cfg.Router.MinPrimaryConfidence != 0.55 {
		t.Errorf("MinPrimaryConfidence = %v", cfg.Router.MinPrimaryConfidence)
	}
	if !cfg.Router.DisableSecondaries || cfg.Router.SecondaryOnlyIfNoCitations || cfg.Router.EnableCriticRefinement {
		t.Errorf("bool overrides not applied: %+v", cfg.Router)
	}
	if cfg.AgentStore.Type != "sqlite" {
		t.Errorf("AgentStore.Type = %q", cfg.AgentStore.Type)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("DOCROUTE_PER_AGENT_TIMEOUT_MS", "soon")
	t.Setenv("DOCROUTE_SECONDARY_MAX", "-3")
	t.Setenv("DOCROUTE_DISABLE_SECONDARIES", "maybe")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Router.PerAgentTimeout != 8*time.Second || cfg.Router.SecondaryMax != 1 || cfg.Router.DisableSecondaries {
		t.Errorf("garbage env should be ignored: %+v", cfg.Router)
	}
}

func TestApplyEnvOverridesProviderAPIKey(t *testing.T) {
	t.Setenv("DOCROUTE_LLM_PROVIDER_OPENAI_API_KEY", "sk-env")
	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{{Name: "openai"}}
	ApplyEnvOverrides(cfg)
	if cfg.LLM.Providers[0].APIKey != "sk-env" {
		t.Errorf("APIKey = %q", cfg.LLM.Providers[0].APIKey)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptValue("sk-abcdef123456", "test-passphrase-123")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	decrypted, err := DecryptValue(encrypted, "test-passphrase-123")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != "sk-abcdef123456" {
		t.Errorf("got %q", decrypted)
	}

	if _, err := DecryptValue(encrypted, "wrong-pass"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	for _, in := range []string{"no-colon", "zz:00", "00:zz", "00:00"} {
		if _, err := DecryptValue(in, "pass"); err == nil {
			t.Errorf("DecryptValue(%q) should fail", in)
		}
	}
}

func TestDecryptSecrets(t *testing.T) {
	encrypted, err := EncryptValue("sk-secret", "key")
	if err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{
		{Name: "openai", APIKey: "enc:" + encrypted},
		{Name: "plain", APIKey: "sk-plain"},
	}
	if err := decryptSecrets(cfg, "key"); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.LLM.Providers[0].APIKey != "sk-secret" || cfg.LLM.Providers[1].APIKey != "sk-plain" {
		t.Errorf("providers = %+v", cfg.LLM.Providers)
	}

	cfg.LLM.Providers[0].APIKey = "enc:bogus"
	if err := decryptSecrets(cfg, "key"); err == nil {
		t.Error("expected error for invalid ciphertext")
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	encrypted, err := EncryptValue("sk-loadtest", "test-load-key")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  providers:
    - name: "openai"
      api_key: "enc:` + encrypted + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOCROUTE_CONFIG_KEY", "test-load-key")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers[0].APIKey != "sk-loadtest" {
		t.Errorf("APIKey = %q", cfg.LLM.Providers[0].APIKey)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insecure.yaml")
	if err := os.WriteFile(path, []byte("router:\n  secondary_max: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for insecure permissions")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("router: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("router:\n  execution_mode: chaotic\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}
