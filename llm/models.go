// Per-vendor model capability tables: token envelopes and costs keyed by
// model name. Pure data; adapters consult it to clamp max_tokens before
// sending a request.

package llm

// Anthropic model identifiers.
const (
	ModelClaudeOpus4   = "claude-opus-4-20250514"
	ModelClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelClaudeHaiku35 = "claude-3-5-haiku-20241022"
)

// OpenAI model identifiers.
const (
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"
	ModelO3Mini    = "o3-mini"
)

// Gemini model identifiers.
const (
	ModelGeminiFlash25 = "gemini-2.5-flash"
	ModelGeminiPro25   = "gemini-2.5-pro"
	ModelGeminiFlash20 = "gemini-2.0-flash"
)

var anthropicCapabilities = map[string]ModelCapabilities{
	ModelClaudeOpus4: {
		MaxInputTokens:  200_000,
		MaxOutputTokens: 32_000,
		Cost:            ModelCost{InputPerMTok: 15, OutputPerMTok: 75},
	},
	ModelClaudeSonnet4: {
		MaxInputTokens:  200_000,
		MaxOutputTokens: 64_000,
		Cost:            ModelCost{InputPerMTok: 3, OutputPerMTok: 15},
	},
	ModelClaudeHaiku35: {
		MaxInputTokens:  200_000,
		MaxOutputTokens: 8_192,
		Cost:            ModelCost{InputPerMTok: 0.8, OutputPerMTok: 4},
	},
}

var openAICapabilities = map[string]ModelCapabilities{
	ModelGPT4o: {
		MaxInputTokens:  128_000,
		MaxOutputTokens: 16_384,
		Cost:            ModelCost{InputPerMTok: 2.5, OutputPerMTok: 10},
	},
	ModelGPT4oMini: {
		MaxInputTokens:  128_000,
		MaxOutputTokens: 16_384,
		Cost:            ModelCost{InputPerMTok: 0.15, OutputPerMTok: 0.6},
	},
	ModelO3Mini: {
		MaxInputTokens:  200_000,
		MaxOutputTokens: 100_000,
		Cost:            ModelCost{InputPerMTok: 1.1, OutputPerMTok: 4.4},
	},
}

var geminiCapabilities = map[string]ModelCapabilities{
	ModelGeminiFlash25: {
		MaxInputTokens:  1_048_576,
		MaxOutputTokens: 65_536,
		Cost:            ModelCost{InputPerMTok: 0.3, OutputPerMTok: 2.5},
	},
	ModelGeminiPro25: {
		MaxInputTokens:  1_048_576,
		MaxOutputTokens: 65_536,
		Cost:            ModelCost{InputPerMTok: 1.25, OutputPerMTok: 10},
	},
	ModelGeminiFlash20: {
		MaxInputTokens:  1_048_576,
		MaxOutputTokens: 8_192,
		Cost:            ModelCost{InputPerMTok: 0.1, OutputPerMTok: 0.4},
	},
}

// CapabilitiesFor returns the capability entry for a model, or nil when the
// model is unknown. Unknown models fall back to the conservative defaults in
// ClampMaxTokens.
func CapabilitiesFor(provider ProviderName, model string) *ModelCapabilities {
	var table map[string]ModelCapabilities
	switch provider {
	case ProviderAnthropic:
		table = anthropicCapabilities
	case ProviderOpenAI:
		table = openAICapabilities
	case ProviderGemini:
		table = geminiCapabilities
	default:
		return nil
	}
	caps, ok := table[model]
	if !ok {
		return nil
	}
	return &caps
}

// DefaultModel returns the default model for a provider.
func (p ProviderName) DefaultModel() string {
	switch p {
	case ProviderAnthropic:
		return ModelClaudeSonnet4
	case ProviderOpenAI:
		return ModelGPT4o
	case ProviderGemini:
		return ModelGeminiFlash25
	default:
		return ""
	}
}
