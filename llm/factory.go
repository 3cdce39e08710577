// Provider factory - builds vendor adapters from a runtime provider tag.
//
// Quick start:
//
//	p, err := llm.ProviderAnthropic.FromEnv()
//	p, err := llm.ProviderOpenAI.New("sk-...")
//	p, err := llm.ParseProviderName("google") // -> ProviderGemini

package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// ProviderName is the runtime tag selecting a vendor adapter.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGemini    ProviderName = "google"
)

// SupportedProviders lists every provider tag this build knows.
func SupportedProviders() []ProviderName {
	return []ProviderName{ProviderAnthropic, ProviderOpenAI, ProviderGemini}
}

// ParseProviderName parses a provider tag from a string, accepting the usual
// aliases (case-insensitive).
func ParseProviderName(s string) (ProviderName, error) {
	switch strings.ToLower(s) {
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "google", "gemini":
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", s)
	}
}

// EnvVar returns the environment variable holding this provider's API key.
func (p ProviderName) EnvVar() string {
	switch p {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// New builds the adapter for this provider with an explicit API key.
func (p ProviderName) New(apiKey string) (Provider, error) {
	switch p {
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", p)
	}
}

// FromEnv builds the adapter, reading the API key from the environment.
func (p ProviderName) FromEnv() (Provider, error) {
	envVar := p.EnvVar()
	if envVar == "" {
		return nil, fmt.Errorf("unknown provider: %q", p)
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", p, envVar)
	}
	return p.New(apiKey)
}

// Registry resolves provider tags to constructed adapters, building each
// adapter at most once. Custom providers (fakes in tests, proxies) can be
// injected with Put. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderName]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ProviderName]Provider)}
}

// Put injects a pre-built provider under a tag, replacing any existing one.
func (r *Registry) Put(name ProviderName, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get returns the provider for a tag, constructing it from the environment
// on first use.
func (r *Registry) Get(name ProviderName) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	p, err := name.FromEnv()
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}
