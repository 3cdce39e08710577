// Token budget estimation and clamping.
//
// The estimate is a character-count proxy, not a tokenizer: good enough to
// keep max_tokens inside a model's capability envelope, never good enough for
// billing decisions.

package llm

import "encoding/json"

// Fallback caps applied when a model has no capability entry.
const (
	DefaultMaxInputTokens  = 8192
	DefaultMaxOutputTokens = 8192
)

// ModelCost is the price per million tokens, in USD.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// ModelCapabilities describes a model's token envelope. MaxTotalTokens is
// zero when the vendor imposes no combined input+output limit.
type ModelCapabilities struct {
	MaxInputTokens  int
	MaxOutputTokens int
	MaxTotalTokens  int
	Cost            ModelCost
}

// EstimateInputTokens estimates the input token cost of a request as
// 0.3 characters-per-token over the system prompt plus the JSON-serialized
// messages. Integer arithmetic (3n/10) keeps the floor exact.
func EstimateInputTokens(messages []Message, systemPrompt string) int {
	total := len(systemPrompt)
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		total += len(data)
	}
	return total * 3 / 10
}

// ClampMaxTokens clamps a requested output-token limit to what the model can
// actually produce given the estimated input size. The floor of 1 guarantees
// a well-formed request even when the conversation already exceeds the
// model's input budget.
func ClampMaxTokens(requested int, caps *ModelCapabilities, estimatedInput int) int {
	maxOut := DefaultMaxOutputTokens
	maxIn := DefaultMaxInputTokens
	maxTotal := 0
	if caps != nil {
		if caps.MaxOutputTokens > 0 {
			maxOut = caps.MaxOutputTokens
		}
		if caps.MaxInputTokens > 0 {
			maxIn = caps.MaxInputTokens
		}
		maxTotal = caps.MaxTotalTokens
	}

	residual := maxIn - estimatedInput
	if maxTotal > 0 {
		if residualTotal := maxTotal - estimatedInput; residualTotal < residual {
			residual = residualTotal
		}
	}

	clamped := requested
	if maxOut < clamped {
		clamped = maxOut
	}
	if residual < clamped {
		clamped = residual
	}
	if clamped < 1 {
		clamped = 1
	}
	return clamped
}
