package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")

	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 42
clock:
  start_tick: 0
  default_step: 1
narrator:
  max_retries: 2
  granularity_steps:
    immediate: 1
    day: 1
llm:
  default_provider: main
  providers:
    main:
      kind: openai
      endpoint: https://api.openai.com/v1
      model: gpt-test
      api_key_env: TEST_OPENAI_KEY
      timeout_ms: 30000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.Narrator.MaxRetries != 2 {
		t.Fatalf("MaxRetries = %d, want 2", cfg.Narrator.MaxRetries)
	}
	provider := cfg.LLM.Providers["main"]
	if provider.Kind != "openai" {
		t.Fatalf("Kind = %q, want openai", provider.Kind)
	}
}

func TestLoad_MaxRetriesZeroIsNotOverwrittenByDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 1
clock:
  start_tick: 0
  default_step: 1
narrator:
  max_retries: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Narrator.MaxRetries != 0 {
		t.Fatalf("MaxRetries = %d, want 0 (explicit zero must not be defaulted to 3)", cfg.Narrator.MaxRetries)
	}
}

func TestLoad_MaxRetriesOmittedDefaultsToThree(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 1
clock:
  start_tick: 0
  default_step: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Narrator.MaxRetries != 3 {
		t.Fatalf("MaxRetries = %d, want 3 (default when narrator.max_retries is omitted)", cfg.Narrator.MaxRetries)
	}
}

func TestLoad_UnknownTopLevelKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 1
bogus_key: true
clock:
  start_tick: 0
  default_step: 1
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for unknown top-level key")
	}
}

func TestLoad_MissingEnvVarFailsLoudly(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 1
clock:
  start_tick: 0
  default_step: 1
llm:
  providers:
    main:
      kind: openai
      model: gpt-test
      endpoint: "${DEFINITELY_UNSET_VAR_XYZ}"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for undefined environment variable reference")
	}
}

func TestLoad_InvalidProviderKind(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 1
clock:
  start_tick: 0
  default_step: 1
llm:
  providers:
    main:
      kind: not-a-real-provider
      model: gpt-test
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for invalid provider kind")
	}
}

func TestLoad_NegativeStartTickFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "kernel.yaml", `
seed: 1
clock:
  start_tick: -1
  default_step: 1
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for negative start_tick")
	}
}

func TestLoadWhitelist_DuplicateActionFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "whitelist.yaml", `
move:
  required: [destination]
move:
  required: [target]
`)

	if _, err := LoadWhitelist(path); err == nil {
		t.Fatal("LoadWhitelist: want error for duplicate action key")
	}
}

func TestLoadWhitelist_OverlappingRequiredOptionalFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "whitelist.yaml", `
move:
  required: [destination]
  optional: [destination]
`)

	if _, err := LoadWhitelist(path); err == nil {
		t.Fatal("LoadWhitelist: want error for overlapping required/optional")
	}
}

func TestLoadWhitelist_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "whitelist.yaml", `
move:
  required: [destination]
  optional: [speed]
wait:
  required: []
`)

	rules, err := LoadWhitelist(path)
	if err != nil {
		t.Fatalf("LoadWhitelist: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
}
