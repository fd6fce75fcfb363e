package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIncludesSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "llm.yaml", `
llm:
  providers:
    - name: "openai"
      api_key: "sk-from-include"
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "llm.yaml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.LLM.Providers) != 1 || cfg.LLM.Providers[0].APIKey != "sk-from-include" {
		t.Errorf("provider not loaded from include: %+v", cfg.LLM.Providers)
	}
}

func TestIncludesGlobAndNested(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "conf.d")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfigFile(t, sub, "agents.yaml", `
agents:
  - key: content
  - key: casual
includes:
  - "store.yaml"
`)
	writeConfigFile(t, sub, "store.yaml", `
agent_store:
  type: sqlite
  path: /tmp/agents.db
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "conf.d/agents*.yaml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Agents) != 2 {
		t.Errorf("Agents = %+v", cfg.Agents)
	}
	if cfg.AgentStore.Type != "sqlite" {
		t.Errorf("nested include not applied: %+v", cfg.AgentStore)
	}
}

func TestIncludesMainPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "router.yaml", `
router:
  secondary_max: 3
  min_primary_confidence: 0.5
`)
	path := writeConfigFile(t, dir, "config.yaml", `
includes:
  - "router.yaml"
router:
  secondary_max: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.SecondaryMax != 2 {
		t.Errorf("main file should win, SecondaryMax = %d", cfg.Router.SecondaryMax)
	}
	if cfg.Router.MinPrimaryConfidence != 0.5 {
		t.Errorf("include value lost, MinPrimaryConfidence = %v", cfg.Router.MinPrimaryConfidence)
	}
}

func TestIncludesCircularDetection(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "a.yaml", "includes:\n  - \"b.yaml\"\n")
	writeConfigFile(t, dir, "b.yaml", "includes:\n  - \"a.yaml\"\n")
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - \"a.yaml\"\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Fatalf("expected circular include error, got %v", err)
	}
}

func TestIncludesPathTraversal(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - \"../outside.yaml\"\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Fatalf("expected traversal error, got %v", err)
	}
}

func TestIncludesMissingLiteralFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - \"missing.yaml\"\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing include")
	}
}

func TestIncludesEmptyGlob(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "config.yaml", "includes:\n  - \"conf.d/*.yaml\"\n")
	if _, err := Load(path); err != nil {
		t.Errorf("empty glob should not fail: %v", err)
	}
}
