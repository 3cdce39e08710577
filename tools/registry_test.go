package tools

import (
	"context"
	"errors"
	"testing"
)

func echoSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to echo"},
		},
		"required": []string{"text"},
	}
}

func echoHandler(_ context.Context, params map[string]any) (string, error) {
	text, _ := params["text"].(string)
	return text, nil
}

func TestRegisterAndGet(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register("echo", "Echo text back", echoSchema(), echoHandler, "test"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tool, ok := registry.Get("echo")
	if !ok {
		t.Fatal("expected tool to be registered")
	}
	if tool.Definition.Name != "echo" || tool.Group != "test" {
		t.Errorf("unexpected tool %+v", tool)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register("echo", "Echo", echoSchema(), echoHandler, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := registry.Register("echo", "Echo again", echoSchema(), echoHandler, "")
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
	if dup.Name != "echo" {
		t.Errorf("expected duplicate name 'echo', got %q", dup.Name)
	}
}

func TestDefinitionsFiltersByName(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := registry.Register(name, name, echoSchema(), echoHandler, ""); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	defs, err := registry.Definitions([]string{"gamma", "alpha"})
	if err != nil {
		t.Fatalf("Definitions failed: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "gamma" || defs[1].Name != "alpha" {
		t.Errorf("expected [gamma alpha] in order, got %+v", defs)
	}
}

func TestDefinitionsUnknownName(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Definitions([]string{"missing"})
	var notFound *ToolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ToolNotFoundError, got %v", err)
	}
}

func TestListSortedByName(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha"} {
		if err := registry.Register(name, name, echoSchema(), echoHandler, ""); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	defs := registry.List()
	if len(defs) != 2 || defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("expected sorted definitions, got %+v", defs)
	}
}

func TestUnregisterGroup(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("a", "a", echoSchema(), echoHandler, "plugin"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register("b", "b", echoSchema(), echoHandler, "builtin"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	registry.UnregisterGroup("plugin")

	if registry.Has("a") {
		t.Error("expected group member removed")
	}
	if !registry.Has("b") {
		t.Error("expected other group untouched")
	}
}
