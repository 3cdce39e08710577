package llm

import (
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestToGeminiContentsRejectsDuplicateFunction(t *testing.T) {
	messages := []Message{
		AssistantMessage{Content: []ContentBlock{
			ToolUseBlock{ID: "search", Name: "search", Parameters: map[string]any{"q": "a"}},
			ToolUseBlock{ID: "search", Name: "search", Parameters: map[string]any{"q": "b"}},
		}},
	}

	_, err := toGeminiContents(messages)
	var dup *DuplicateFunctionError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateFunctionError, got %v", err)
	}
	if dup.Name != "search" {
		t.Errorf("expected duplicate name 'search', got %q", dup.Name)
	}
}

func TestToGeminiContentsDistinctFunctionsAllowed(t *testing.T) {
	messages := []Message{
		AssistantMessage{Content: []ContentBlock{
			ToolUseBlock{ID: "search", Name: "search"},
			ToolUseBlock{ID: "fetch", Name: "fetch"},
		}},
	}

	contents, err := toGeminiContents(messages)
	if err != nil {
		t.Fatalf("toGeminiContents failed: %v", err)
	}
	if len(contents) != 1 || len(contents[0].Parts) != 2 {
		t.Errorf("expected 1 content with 2 parts, got %+v", contents)
	}
}

func TestToGeminiContentsToolResultOnUserTurn(t *testing.T) {
	messages := []Message{
		NewToolMessage("fetch", `{"status": "ok"}`),
	}

	contents, err := toGeminiContents(messages)
	if err != nil {
		t.Fatalf("toGeminiContents failed: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Errorf("expected user role for tool result, got %q", contents[0].Role)
	}
	fr := contents[0].Parts[0].FunctionResponse
	if fr == nil {
		t.Fatal("expected a FunctionResponse part")
	}
	if fr.Name != "fetch" {
		t.Errorf("expected function name 'fetch', got %q", fr.Name)
	}
	if fr.Response["status"] != "ok" {
		t.Errorf("expected JSON result to pass through, got %v", fr.Response)
	}
}

func TestToGeminiFunctionResultWrapsPlainText(t *testing.T) {
	result := toGeminiFunctionResult("just text")
	if result["result"] != "just text" {
		t.Errorf("expected plain text wrapped under 'result', got %v", result)
	}
}

func TestFromGeminiResponseTextBeforeToolCalls(t *testing.T) {
	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "fetch", Args: map[string]any{"url": "x"}}},
					{Text: "let me look"},
				},
			},
		}},
	}

	resp, err := fromGeminiResponse(response)
	if err != nil {
		t.Fatalf("fromGeminiResponse failed: %v", err)
	}
	blocks := resp.Message.Content
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if _, ok := blocks[0].(TextBlock); !ok {
		t.Errorf("expected text block first, got %T", blocks[0])
	}
	use, ok := blocks[1].(ToolUseBlock)
	if !ok {
		t.Fatalf("expected tool-use block second, got %T", blocks[1])
	}
	// No wire-level id exists; the function name stands in.
	if use.ID != "fetch" {
		t.Errorf("expected call id to mirror function name, got %q", use.ID)
	}
}

func TestFromGeminiResponseEmpty(t *testing.T) {
	_, err := fromGeminiResponse(&genai.GenerateContentResponse{})
	var empty *EmptyResponseError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyResponseError, got %v", err)
	}
}

func TestToGeminiSchemaArrayRequiresItems(t *testing.T) {
	schema := toGeminiPropertySchema(map[string]any{"type": "array"})
	if schema.Items == nil {
		t.Fatal("expected default items schema for array")
	}
	if schema.Items.Type != genai.TypeString {
		t.Errorf("expected string items default, got %v", schema.Items.Type)
	}
}
