// Package llm provides the canonical message model and provider adapters.
//
// Provider - the abstract interface every vendor adapter implements.
// Each adapter hides:
// - API client initialization and authentication
// - Canonical-to-wire and wire-to-canonical conversion
// - Vendor-specific quirks (tool-result turns, ID handling, ordering)
// - max_tokens clamping against the vendor capability table

package llm

import (
	"context"
)

// ToolDefinition advertises a callable tool to a provider.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Parameters are the sampling knobs of a single request. Nil pointers mean
// "vendor default".
type Parameters struct {
	Temperature *float64
	MaxTokens   *int
}

// Request is a canonical generation request. Adapters translate it to the
// vendor wire format; they never see forest nodes or engine state.
type Request struct {
	SystemMessage string
	Messages      []Message
	Model         string
	Parameters    Parameters
	Tools         []ToolDefinition
	ToolChoice    ToolChoice
}

// Usage reports vendor-counted token usage when available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a canonical generation response.
type Response struct {
	Message      AssistantMessage
	Usage        *Usage
	FinishReason string
	Raw          any
}

// Provider defines the abstract interface for LLM providers.
//
// Generate must honor ctx cancellation promptly: check before issuing the
// network call and pass ctx into the underlying transport. A cancelled call
// returns an error satisfying errors.Is(err, ctx.Err()), which the engine
// maps to its abort condition.
type Provider interface {
	// Name returns the provider name (for logging and error wrapping).
	Name() string

	// Generate sends one canonical request and returns one canonical
	// response. It never loops over tool calls; that is the engine's job.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// maxTokensFor applies the capability clamp all adapters share: estimate the
// input cost, look up the model envelope, clamp the requested output budget.
func maxTokensFor(req Request, provider ProviderName) int {
	requested := DefaultMaxOutputTokens
	if req.Parameters.MaxTokens != nil {
		requested = *req.Parameters.MaxTokens
	}
	estimated := EstimateInputTokens(req.Messages, req.SystemMessage)
	caps := CapabilitiesFor(provider, req.Model)
	return ClampMaxTokens(requested, caps, estimated)
}
