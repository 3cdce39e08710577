// Anthropic adapter using the official anthropic-sdk-go.
//
// Vendor quirks encoded here:
// - Interleaved text/tool-use blocks survive the round trip natively.
// - Tool results travel as a synthetic "user" turn carrying a tool_result
//   block addressed by the originating call id.
// - The API rejects requests whose final turn ends in trailing whitespace,
//   so the last text block of the last message is trimmed.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic adapter.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return string(ProviderAnthropic)
}

// Generate sends one canonical request to the Messages API.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokensFor(req, ProviderAnthropic)),
		Messages:  messages,
	}
	if req.Parameters.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Parameters.Temperature)
	}
	if req.SystemMessage != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemMessage}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
		params.ToolChoice = toAnthropicToolChoice(req.ToolChoice)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			if ctxErr == nil {
				ctxErr = context.Canceled
			}
			return nil, ctxErr
		}
		return nil, &TransportError{Provider: p.Name(), Err: err}
	}

	return fromAnthropicMessage(message)
}

// toAnthropicMessages converts canonical messages to the wire format and
// trims trailing whitespace from the final turn.
func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	normalized, err := NormalizeAll(messages)
	if err != nil {
		return nil, err
	}
	normalized = trimTrailingWhitespace(normalized)

	var out []anthropic.MessageParam
	for _, msg := range normalized {
		switch m := msg.(type) {
		case UserMessage:
			var blocks []anthropic.ContentBlockParamUnion
			for _, t := range m.Content {
				blocks = append(blocks, anthropic.NewTextBlock(t.Text))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case AssistantMessage:
			param := anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant}
			for _, b := range m.Content {
				switch v := b.(type) {
				case TextBlock:
					param.Content = append(param.Content, anthropic.NewTextBlock(v.Text))
				case ToolUseBlock:
					param.Content = append(param.Content, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    v.ID,
							Name:  v.Name,
							Input: v.Parameters,
						},
					})
				}
			}
			out = append(out, param)
		case ToolMessage:
			text, _ := ExtractText(textBlocksToContent(m.Content))
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, text, false),
			))
		}
	}
	return out, nil
}

// trimTrailingWhitespace strips trailing whitespace from the last text block
// of the last message. Blocks emptied by the trim are dropped.
func trimTrailingWhitespace(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}
	last := len(messages) - 1
	switch m := messages[last].(type) {
	case UserMessage:
		if n := len(m.Content); n > 0 {
			content := append([]TextBlock(nil), m.Content...)
			content[n-1].Text = strings.TrimRight(content[n-1].Text, " \t\r\n")
			if content[n-1].Text == "" {
				content = content[:n-1]
			}
			messages[last] = UserMessage{Content: content}
		}
	case AssistantMessage:
		content := append([]ContentBlock(nil), m.Content...)
		for i := len(content) - 1; i >= 0; i-- {
			t, ok := content[i].(TextBlock)
			if !ok {
				break
			}
			t.Text = strings.TrimRight(t.Text, " \t\r\n")
			if t.Text == "" {
				content = append(content[:i], content[i+1:]...)
				continue
			}
			content[i] = t
			break
		}
		messages[last] = AssistantMessage{Content: content}
	case ToolMessage:
		if n := len(m.Content); n > 0 {
			content := append([]TextBlock(nil), m.Content...)
			content[n-1].Text = strings.TrimRight(content[n-1].Text, " \t\r\n")
			messages[last] = ToolMessage{Content: content, ToolCallID: m.ToolCallID}
		}
	}
	return messages
}

func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		properties, _ := t.Parameters["properties"].(map[string]any)
		required := schemaRequired(t.Parameters)

		result[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}}
	}
	return result
}

func toAnthropicToolChoice(choice ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice {
	case ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

func fromAnthropicMessage(message *anthropic.Message) (*Response, error) {
	var blocks []ContentBlock
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, TextBlock{Text: variant.Text})
		case anthropic.ToolUseBlock:
			params, err := decodeToolInput(variant.Input)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, ToolUseBlock{
				ID:         variant.ID,
				Name:       variant.Name,
				Parameters: params,
			})
		}
	}
	if len(blocks) == 0 {
		return nil, &EmptyResponseError{Provider: string(ProviderAnthropic)}
	}

	var usage *Usage
	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		usage = &Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		}
	}

	return &Response{
		Message:      AssistantMessage{Content: blocks},
		Usage:        usage,
		FinishReason: string(message.StopReason),
		Raw:          message,
	}, nil
}

// decodeToolInput round-trips arbitrary SDK input payloads into a plain map.
func decodeToolInput(input any) (map[string]any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// schemaRequired extracts the required-field list from a JSON schema,
// tolerating both []string and decoded-JSON []any shapes.
func schemaRequired(schema map[string]any) []string {
	if req, ok := schema["required"].([]string); ok {
		return req
	}
	if req, ok := schema["required"].([]any); ok {
		var out []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
