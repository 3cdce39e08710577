package config

import (
	"testing"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

func TestNewDefaults(t *testing.T) {
	settings, err := New("anthropic")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if settings.LLM.Provider != llm.ProviderAnthropic {
		t.Errorf("expected anthropic provider, got %s", settings.LLM.Provider)
	}
	if settings.LLM.Model == "" {
		t.Error("expected a default model")
	}
	if settings.LLM.MaxTokens != 4096 {
		t.Errorf("expected default max tokens 4096, got %d", settings.LLM.MaxTokens)
	}
	if settings.Generation.MaxToolIterations != 5 {
		t.Errorf("expected default tool iterations 5, got %d", settings.Generation.MaxToolIterations)
	}
}

func TestNewProviderAliases(t *testing.T) {
	cases := map[string]llm.ProviderName{
		"claude": llm.ProviderAnthropic,
		"gpt":    llm.ProviderOpenAI,
		"gemini": llm.ProviderGemini,
	}
	for alias, want := range cases {
		settings, err := New(alias)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", alias, err)
		}
		if settings.LLM.Provider != want {
			t.Errorf("alias %q: expected %s, got %s", alias, want, settings.LLM.Provider)
		}
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("mystery"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewEnvOverrides(t *testing.T) {
	t.Setenv("LOOM_MODEL", "custom-model")
	t.Setenv("LOOM_MAX_TOKENS", "1234")
	t.Setenv("LOOM_TEMPERATURE", "0.2")
	t.Setenv("LOOM_MAX_TOOL_ITERATIONS", "9")
	t.Setenv("LOOM_DB_PATH", "/tmp/forest.db")

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if settings.LLM.Model != "custom-model" {
		t.Errorf("expected model override, got %q", settings.LLM.Model)
	}
	if settings.LLM.MaxTokens != 1234 {
		t.Errorf("expected max tokens 1234, got %d", settings.LLM.MaxTokens)
	}
	if settings.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", settings.LLM.Temperature)
	}
	if settings.Generation.MaxToolIterations != 9 {
		t.Errorf("expected tool iterations 9, got %d", settings.Generation.MaxToolIterations)
	}
	if settings.Store.Path != "/tmp/forest.db" {
		t.Errorf("expected db path override, got %q", settings.Store.Path)
	}
}

func TestNewInvalidEnvValue(t *testing.T) {
	t.Setenv("LOOM_MAX_TOKENS", "not-a-number")

	if _, err := New("anthropic"); err == nil {
		t.Fatal("expected error for invalid numeric value")
	}
}
