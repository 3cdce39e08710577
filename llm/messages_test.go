package llm

import (
	"errors"
	"testing"
)

func TestNormalizeDropsBlankTextBlocks(t *testing.T) {
	msg := UserMessage{Content: []TextBlock{
		{Text: "  "},
		{Text: "hello"},
		{Text: "\n\t"},
	}}

	got, err := Normalize(msg)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	user, ok := got.(UserMessage)
	if !ok {
		t.Fatalf("expected UserMessage, got %T", got)
	}
	if len(user.Content) != 1 || user.Content[0].Text != "hello" {
		t.Errorf("expected single 'hello' block, got %+v", user.Content)
	}
}

func TestNormalizeContentlessMessageIsOmitted(t *testing.T) {
	got, err := Normalize(UserMessage{Content: []TextBlock{{Text: "   "}}})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for contentless message, got %+v", got)
	}
}

func TestNormalizeKeepsToolUseBlocks(t *testing.T) {
	msg := AssistantMessage{Content: []ContentBlock{
		TextBlock{Text: " "},
		ToolUseBlock{ID: "call_1", Name: "search", Parameters: map[string]any{"q": "go"}},
	}}

	got, err := Normalize(msg)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	assistant, ok := got.(AssistantMessage)
	if !ok {
		t.Fatalf("expected AssistantMessage, got %T", got)
	}
	if len(assistant.Content) != 1 {
		t.Fatalf("expected 1 block, got %d", len(assistant.Content))
	}
	if _, ok := assistant.Content[0].(ToolUseBlock); !ok {
		t.Errorf("expected tool-use block to survive, got %T", assistant.Content[0])
	}
}

func TestNormalizeRejectsToolMessageWithoutCallID(t *testing.T) {
	_, err := Normalize(ToolMessage{Content: []TextBlock{{Text: "result"}}})
	var malformed *MalformedToolMessageError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedToolMessageError, got %v", err)
	}
}

func TestNormalizeAllOmitsContentless(t *testing.T) {
	msgs := []Message{
		NewUserMessage("first"),
		UserMessage{Content: []TextBlock{{Text: "  "}}},
		NewAssistantTextMessage("second"),
	}

	got, err := NormalizeAll(msgs)
	if err != nil {
		t.Fatalf("NormalizeAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 messages after normalization, got %d", len(got))
	}
}

func TestExtractTextJoinsWithNewline(t *testing.T) {
	blocks := []ContentBlock{
		TextBlock{Text: "line one"},
		ToolUseBlock{ID: "x", Name: "noop"},
		TextBlock{Text: "line two"},
	}

	text, ok := ExtractText(blocks)
	if !ok {
		t.Fatal("expected text to be found")
	}
	if text != "line one\nline two" {
		t.Errorf("unexpected joined text: %q", text)
	}
}

func TestExtractTextNoTextBlocks(t *testing.T) {
	_, ok := ExtractText([]ContentBlock{ToolUseBlock{ID: "x", Name: "noop"}})
	if ok {
		t.Error("expected no text for tool-only content")
	}
}

func TestMessageTextAllVariants(t *testing.T) {
	cases := []struct {
		msg  Message
		want string
	}{
		{NewUserMessage("hello"), "hello"},
		{NewAssistantTextMessage("world"), "world"},
		{NewToolMessage("call_1", "result"), "result"},
	}
	for _, c := range cases {
		got, ok := MessageText(c.msg)
		if !ok {
			t.Fatalf("expected text for %T", c.msg)
		}
		if got != c.want {
			t.Errorf("%T: got %q, want %q", c.msg, got, c.want)
		}
	}
}

func TestMessageTextToolOnlyAssistant(t *testing.T) {
	msg := AssistantMessage{Content: []ContentBlock{ToolUseBlock{ID: "x", Name: "noop"}}}
	if _, ok := MessageText(msg); ok {
		t.Error("expected no text for tool-only assistant message")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := AssistantMessage{Content: []ContentBlock{
		TextBlock{Text: "thinking"},
		ToolUseBlock{ID: "call_9", Name: "fetch", Parameters: map[string]any{"url": "https://example.com"}},
	}}

	data, err := original.MarshalJSON()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := UnmarshalMessage(data)
	if err != nil {
		t.Fatalf("UnmarshalMessage failed: %v", err)
	}
	assistant, ok := decoded.(AssistantMessage)
	if !ok {
		t.Fatalf("expected AssistantMessage, got %T", decoded)
	}
	uses := assistant.ToolUses()
	if len(uses) != 1 || uses[0].ID != "call_9" || uses[0].Name != "fetch" {
		t.Errorf("tool use did not survive round trip: %+v", uses)
	}
}

func TestUnmarshalToolMessageKeepsCallID(t *testing.T) {
	data, err := NewToolMessage("call_5", "ok").MarshalJSON()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := UnmarshalMessage(data)
	if err != nil {
		t.Fatalf("UnmarshalMessage failed: %v", err)
	}
	tool, ok := decoded.(ToolMessage)
	if !ok {
		t.Fatalf("expected ToolMessage, got %T", decoded)
	}
	if tool.ToolCallID != "call_5" {
		t.Errorf("expected tool_call_id 'call_5', got %q", tool.ToolCallID)
	}
}
