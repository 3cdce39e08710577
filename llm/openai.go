// OpenAI adapter using the go-openai library.
//
// Vendor quirks encoded here:
// - Flat chat messages: one content string per turn plus a separate
//   structured tool-call array; interleaving is reconstructed on the way
//   back with text first, tool calls after, which matches what the API
//   returns anyway.
// - Tool results are role "tool" messages addressed by tool_call_id.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider for OpenAI chat completions.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI adapter.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return string(ProviderOpenAI)
}

// Generate sends one canonical request to the Chat Completions API.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages, err := toOpenAIMessages(req.SystemMessage, req.Messages)
	if err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: maxTokensFor(req, ProviderOpenAI),
	}
	if req.Parameters.Temperature != nil {
		chatReq.Temperature = float32(*req.Parameters.Temperature)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
		switch req.ToolChoice {
		case ToolChoiceNone:
			chatReq.ToolChoice = "none"
		case ToolChoiceRequired:
			chatReq.ToolChoice = "required"
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			if ctxErr == nil {
				ctxErr = context.Canceled
			}
			return nil, ctxErr
		}
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	return fromOpenAIResponse(resp)
}

func toOpenAIMessages(system string, messages []Message) ([]openai.ChatCompletionMessage, error) {
	normalized, err := NormalizeAll(messages)
	if err != nil {
		return nil, err
	}

	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range normalized {
		switch m := msg.(type) {
		case UserMessage:
			text, ok := ExtractText(textBlocksToContent(m.Content))
			if !ok {
				return nil, &MissingContentError{Role: RoleUser}
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			})
		case AssistantMessage:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			if text, ok := ExtractText(m.Content); ok {
				oaiMsg.Content = text
			}
			for _, use := range m.ToolUses() {
				args, err := json.Marshal(use.Parameters)
				if err != nil {
					return nil, fmt.Errorf("marshal tool arguments for %q: %w", use.Name, err)
				}
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   use.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      use.Name,
						Arguments: string(args),
					},
				})
			}
			if oaiMsg.Content == "" && len(oaiMsg.ToolCalls) == 0 {
				return nil, &MissingContentError{Role: RoleAssistant}
			}
			out = append(out, oaiMsg)
		case ToolMessage:
			text, _ := ExtractText(textBlocksToContent(m.Content))
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    text,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out, nil
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &EmptyResponseError{Provider: string(ProviderOpenAI)}
	}
	choice := resp.Choices[0]

	var blocks []ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			return nil, &UnexpectedToolCallTypeError{Type: string(tc.Type)}
		}
		var params map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &params); err != nil {
				return nil, fmt.Errorf("decode tool arguments for %q: %w", tc.Function.Name, err)
			}
		}
		blocks = append(blocks, ToolUseBlock{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: params,
		})
	}
	if len(blocks) == 0 {
		return nil, &EmptyResponseError{Provider: string(ProviderOpenAI)}
	}

	usage := &Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	return &Response{
		Message:      AssistantMessage{Content: blocks},
		Usage:        usage,
		FinishReason: string(choice.FinishReason),
		Raw:          resp,
	}, nil
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
