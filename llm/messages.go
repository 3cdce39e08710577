// Canonical message model - the wire-agnostic representation all provider
// adapters translate to and from.
//
// Information Hiding:
// - Vendor wire formats never leak out of the adapters
// - Block and message variants are sealed unions, matched exhaustively

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType discriminates content block variants.
type BlockType string

const (
	BlockTypeText    BlockType = "text"
	BlockTypeToolUse BlockType = "tool_use"
)

// ContentBlock is an atomic unit of message content: plain text or a tool
// invocation. The union is sealed; adapters switch exhaustively on the
// concrete type.
type ContentBlock interface {
	BlockType() BlockType
}

// TextBlock is a run of plain text.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) BlockType() BlockType { return BlockTypeText }

// ToolUseBlock is a model-requested tool invocation. ID correlates the call
// with a later ToolMessage result.
type ToolUseBlock struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

func (ToolUseBlock) BlockType() BlockType { return BlockTypeToolUse }

// Message is a sealed union over the three role variants. Every adapter
// consumption site switches on the concrete type.
type Message interface {
	MessageRole() Role
	isMessage()
}

// UserMessage carries text content from the caller.
type UserMessage struct {
	Content []TextBlock
}

func (UserMessage) MessageRole() Role { return RoleUser }
func (UserMessage) isMessage()        {}

// AssistantMessage carries an ordered, possibly interleaved sequence of text
// and tool-use blocks produced by a model.
type AssistantMessage struct {
	Content []ContentBlock
}

func (AssistantMessage) MessageRole() Role { return RoleAssistant }
func (AssistantMessage) isMessage()        {}

// ToolUses returns the tool-use blocks of the message, in order.
func (m AssistantMessage) ToolUses() []ToolUseBlock {
	var uses []ToolUseBlock
	for _, b := range m.Content {
		if u, ok := b.(ToolUseBlock); ok {
			uses = append(uses, u)
		}
	}
	return uses
}

// ToolMessage carries the result of exactly one prior tool-use block,
// correlated by ToolCallID.
type ToolMessage struct {
	Content    []TextBlock
	ToolCallID string
}

func (ToolMessage) MessageRole() Role { return RoleTool }
func (ToolMessage) isMessage()        {}

// NewUserMessage builds a user message from a single text string.
func NewUserMessage(text string) UserMessage {
	return UserMessage{Content: []TextBlock{{Text: text}}}
}

// NewAssistantTextMessage builds an assistant message holding one text block.
func NewAssistantTextMessage(text string) AssistantMessage {
	return AssistantMessage{Content: []ContentBlock{TextBlock{Text: text}}}
}

// NewToolMessage builds a tool-result message for the given call id.
func NewToolMessage(toolCallID, result string) ToolMessage {
	return ToolMessage{
		ToolCallID: toolCallID,
		Content:    []TextBlock{{Text: result}},
	}
}

// Normalize drops blank text blocks from a message. Returns (nil, nil) when
// the message has no content left after normalization: callers must omit such
// messages rather than send them to a provider. A tool message without a
// ToolCallID is malformed and rejected.
func Normalize(msg Message) (Message, error) {
	switch m := msg.(type) {
	case UserMessage:
		kept := keepNonBlankText(m.Content)
		if len(kept) == 0 {
			return nil, nil
		}
		return UserMessage{Content: kept}, nil
	case AssistantMessage:
		var kept []ContentBlock
		for _, b := range m.Content {
			if t, ok := b.(TextBlock); ok && strings.TrimSpace(t.Text) == "" {
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			return nil, nil
		}
		return AssistantMessage{Content: kept}, nil
	case ToolMessage:
		if m.ToolCallID == "" {
			return nil, &MalformedToolMessageError{Reason: "missing tool_call_id"}
		}
		kept := keepNonBlankText(m.Content)
		if len(kept) == 0 {
			return nil, nil
		}
		return ToolMessage{Content: kept, ToolCallID: m.ToolCallID}, nil
	default:
		return nil, fmt.Errorf("unknown message type %T", msg)
	}
}

// NormalizeAll normalizes a slice of messages, omitting any that become
// contentless. The first malformed message aborts with its error.
func NormalizeAll(msgs []Message) ([]Message, error) {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		n, err := Normalize(m)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func keepNonBlankText(blocks []TextBlock) []TextBlock {
	var kept []TextBlock
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) != "" {
			kept = append(kept, b)
		}
	}
	return kept
}

// ExtractText joins all text blocks with newlines. The second return is false
// when the content holds no text blocks at all.
func ExtractText(blocks []ContentBlock) (string, bool) {
	var parts []string
	for _, b := range blocks {
		if t, ok := b.(TextBlock); ok {
			parts = append(parts, t.Text)
		}
	}
	if parts == nil {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// MessageText returns the newline-joined text of any message variant,
// reporting false when the message holds no text blocks.
func MessageText(msg Message) (string, bool) {
	switch m := msg.(type) {
	case UserMessage:
		return ExtractText(textBlocksToContent(m.Content))
	case AssistantMessage:
		return ExtractText(m.Content)
	case ToolMessage:
		return ExtractText(textBlocksToContent(m.Content))
	default:
		return "", false
	}
}

// JSON encoding. Messages serialize as {"role": ..., "content": [...]} with
// each block tagged by "type", so trees persisted by the forest store can be
// decoded back into the right variants.

type encodedBlock struct {
	Type       BlockType      `json:"type"`
	Text       string         `json:"text,omitempty"`
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type encodedMessage struct {
	Role       Role              `json:"role"`
	Content    []json.RawMessage `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

func encodeBlocks(blocks []ContentBlock) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		var eb encodedBlock
		switch v := b.(type) {
		case TextBlock:
			eb = encodedBlock{Type: BlockTypeText, Text: v.Text}
		case ToolUseBlock:
			eb = encodedBlock{Type: BlockTypeToolUse, ID: v.ID, Name: v.Name, Parameters: v.Parameters}
		default:
			return nil, fmt.Errorf("unknown content block type %T", b)
		}
		raw, err := json.Marshal(eb)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func textBlocksToContent(blocks []TextBlock) []ContentBlock {
	out := make([]ContentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = b
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (m UserMessage) MarshalJSON() ([]byte, error) {
	content, err := encodeBlocks(textBlocksToContent(m.Content))
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedMessage{Role: RoleUser, Content: content})
}

// MarshalJSON implements json.Marshaler.
func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	content, err := encodeBlocks(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedMessage{Role: RoleAssistant, Content: content})
}

// MarshalJSON implements json.Marshaler.
func (m ToolMessage) MarshalJSON() ([]byte, error) {
	content, err := encodeBlocks(textBlocksToContent(m.Content))
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedMessage{Role: RoleTool, Content: content, ToolCallID: m.ToolCallID})
}

// UnmarshalMessage decodes a message serialized by the MarshalJSON methods
// above, dispatching on the role tag.
func UnmarshalMessage(data []byte) (Message, error) {
	var em encodedMessage
	if err := json.Unmarshal(data, &em); err != nil {
		return nil, err
	}

	blocks := make([]ContentBlock, 0, len(em.Content))
	for _, raw := range em.Content {
		var eb encodedBlock
		if err := json.Unmarshal(raw, &eb); err != nil {
			return nil, err
		}
		switch eb.Type {
		case BlockTypeText:
			blocks = append(blocks, TextBlock{Text: eb.Text})
		case BlockTypeToolUse:
			blocks = append(blocks, ToolUseBlock{ID: eb.ID, Name: eb.Name, Parameters: eb.Parameters})
		default:
			return nil, fmt.Errorf("unknown content block type %q", eb.Type)
		}
	}

	switch em.Role {
	case RoleUser:
		texts, err := requireTextBlocks(blocks)
		if err != nil {
			return nil, fmt.Errorf("user message: %w", err)
		}
		return UserMessage{Content: texts}, nil
	case RoleAssistant:
		return AssistantMessage{Content: blocks}, nil
	case RoleTool:
		texts, err := requireTextBlocks(blocks)
		if err != nil {
			return nil, fmt.Errorf("tool message: %w", err)
		}
		return ToolMessage{Content: texts, ToolCallID: em.ToolCallID}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", em.Role)
	}
}

func requireTextBlocks(blocks []ContentBlock) ([]TextBlock, error) {
	texts := make([]TextBlock, 0, len(blocks))
	for _, b := range blocks {
		t, ok := b.(TextBlock)
		if !ok {
			return nil, fmt.Errorf("unexpected %s block", b.BlockType())
		}
		texts = append(texts, t)
	}
	return texts, nil
}
