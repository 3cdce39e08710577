// Google Gemini adapter using the official google.golang.org/genai SDK.
//
// Vendor quirks encoded here:
// - Gemini has no tool-call identifiers. Calls are correlated by function
//   name, so an assistant message naming the same function twice is rejected
//   with DuplicateFunctionError: the result leg could never disambiguate.
// - Responses expose text and function calls as separate fields, not an
//   interleaved sequence. Text blocks are emitted before tool-use blocks
//   when converting back. Lossy ordering, known and accepted.
// - Tool results travel as user-role FunctionResponse parts whose payload
//   must be a JSON object; plain-text results are wrapped.

package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	jsonutil "github.com/arcreflex/loom-engine-sub001/internal/json"
)

// GeminiProvider implements Provider for Google Gemini.
type GeminiProvider struct {
	client  *genai.Client
	initErr error // client construction error, reported on first use
}

// NewGeminiProvider creates a new Gemini adapter. A client initialization
// failure is stored and returned on first use, preserving the constructor
// signature shared by all adapters.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{initErr: fmt.Errorf("failed to initialize Gemini client: %w", err)}
	}
	return &GeminiProvider{client: client}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return string(ProviderGemini)
}

// Generate sends one canonical request to the GenerateContent API.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if p.initErr != nil {
		return nil, p.initErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensFor(req, ProviderGemini)),
	}
	if req.Parameters.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Parameters.Temperature))
	}
	if req.SystemMessage != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemMessage, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
		config.ToolConfig = toGeminiToolConfig(req.ToolChoice)
	}

	response, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			if ctxErr == nil {
				ctxErr = context.Canceled
			}
			return nil, ctxErr
		}
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	return fromGeminiResponse(response)
}

func toGeminiContents(messages []Message) ([]*genai.Content, error) {
	normalized, err := NormalizeAll(messages)
	if err != nil {
		return nil, err
	}

	var contents []*genai.Content
	for _, msg := range normalized {
		switch m := msg.(type) {
		case UserMessage:
			text, ok := ExtractText(textBlocksToContent(m.Content))
			if !ok {
				return nil, &MissingContentError{Role: RoleUser}
			}
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		case AssistantMessage:
			content := &genai.Content{Role: genai.RoleModel}
			seen := make(map[string]bool)
			for _, b := range m.Content {
				switch v := b.(type) {
				case TextBlock:
					content.Parts = append(content.Parts, &genai.Part{Text: v.Text})
				case ToolUseBlock:
					if seen[v.Name] {
						return nil, &DuplicateFunctionError{Name: v.Name}
					}
					seen[v.Name] = true
					content.Parts = append(content.Parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: v.Name,
							Args: v.Parameters,
						},
					})
				}
			}
			if len(content.Parts) == 0 {
				return nil, &MissingContentError{Role: RoleAssistant}
			}
			contents = append(contents, content)
		case ToolMessage:
			text, _ := ExtractText(textBlocksToContent(m.Content))
			contents = append(contents, &genai.Content{
				// Gemini expects tool results on a user turn.
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolCallID,
						Response: toGeminiFunctionResult(text),
					},
				}},
			})
		}
	}
	return contents, nil
}

// toGeminiFunctionResult coerces a tool result string into the JSON object
// Gemini requires. Results that already are (or embed) a JSON object pass
// through; anything else is wrapped under a "result" key.
func toGeminiFunctionResult(text string) map[string]any {
	if obj, err := jsonutil.ExtractObject(text); err == nil {
		return obj
	}
	return map[string]any{"result": text}
}

func fromGeminiResponse(response *genai.GenerateContentResponse) (*Response, error) {
	var texts []ContentBlock
	var calls []ContentBlock

	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				texts = append(texts, TextBlock{Text: part.Text})
			}
			if part.FunctionCall != nil {
				calls = append(calls, ToolUseBlock{
					// No wire-level id exists; the function name stands in.
					ID:         part.FunctionCall.Name,
					Name:       part.FunctionCall.Name,
					Parameters: part.FunctionCall.Args,
				})
			}
		}
	}

	// Text first, tool calls after: the wire format keeps them in separate
	// fields, so original interleaving is unrecoverable.
	blocks := append(texts, calls...)
	if len(blocks) == 0 {
		return nil, &EmptyResponseError{Provider: string(ProviderGemini)}
	}

	var usage *Usage
	finishReason := ""
	if response.UsageMetadata != nil {
		usage = &Usage{
			InputTokens:  int(response.UsageMetadata.PromptTokenCount),
			OutputTokens: int(response.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(response.Candidates) > 0 {
		finishReason = string(response.Candidates[0].FinishReason)
	}

	return &Response{
		Message:      AssistantMessage{Content: blocks},
		Usage:        usage,
		FinishReason: finishReason,
		Raw:          response,
	}, nil
}

func toGeminiTools(tools []ToolDefinition) []*genai.Tool {
	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func toGeminiToolConfig(choice ToolChoice) *genai.ToolConfig {
	mode := genai.FunctionCallingConfigModeAuto
	switch choice {
	case ToolChoiceNone:
		mode = genai.FunctionCallingConfigModeNone
	case ToolChoiceRequired:
		mode = genai.FunctionCallingConfigModeAny
	}
	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
	}
}

// toGeminiSchema converts a JSON schema into Gemini's typed schema.
func toGeminiSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeObject}

	if t, ok := params["type"].(string); ok {
		schema.Type = toGeminiType(t)
	}
	schema.Required = schemaRequired(params)

	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			schema.Properties[name] = toGeminiPropertySchema(propMap)
		}
	}

	return schema
}

func toGeminiPropertySchema(prop map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := prop["type"].(string); ok {
		schema.Type = toGeminiType(t)
	}
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	// Gemini requires 'items' for arrays.
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]any); ok {
			schema.Items = toGeminiPropertySchema(items)
		} else {
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]any); ok {
					schema.Properties[name] = toGeminiPropertySchema(pMap)
				}
			}
		}
	}

	return schema
}

func toGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer", "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
