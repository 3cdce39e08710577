// Package tools provides tool registration and execution for generation.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Handler invocation and timeout handling internalized
// - Registration and discovery mechanisms abstracted
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// Handler is the function behind a registered tool. It receives the decoded
// call parameters and returns the result text. A returned error is reported
// back to the model as an error-text result, never raised to the caller.
type Handler func(ctx context.Context, params map[string]any) (string, error)

// Tool is one registered tool: its wire definition plus the handler that
// services calls.
type Tool struct {
	Definition llm.ToolDefinition
	Handler    Handler
	// Group labels where the tool came from (a builtin set, a plugin, a
	// server) so whole groups can be dropped together.
	Group string
}

// ToolResult is the outcome of one tool call. Success is determined by
// whether Error is nil.
type ToolResult struct {
	Output string `json:"output"`
	Error  error  `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Output  string `json:"output"`
			Error   string `json:"error"`
		}{
			Success: false,
			Output:  t.Output,
			Error:   t.Error.Error(),
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{
		Success: true,
		Output:  t.Output,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Text returns the result as the string handed back to the model.
func (t ToolResult) Text() string {
	if t.Error != nil {
		return fmt.Sprintf("Error: %s", t.Error.Error())
	}
	return t.Output
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}
