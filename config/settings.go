// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider/model default resolution

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// Settings holds all application configuration.
type Settings struct {
	LLM        LLMConfig
	Generation GenerationConfig
	Store      StoreConfig
	LogLevel   string
}

// LLMConfig holds provider selection and sampling defaults.
type LLMConfig struct {
	Provider    llm.ProviderName
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerationConfig holds generation loop configuration.
type GenerationConfig struct {
	MaxToolIterations int
	ToolTimeoutSecs   int
}

// StoreConfig holds forest persistence configuration.
type StoreConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string
}

// New creates settings for the specified provider, loading values from
// environment variables. Returns an error if the provider is unknown or
// environment variables contain invalid values.
func New(provider string) (Settings, error) {
	name, err := llm.ParseProviderName(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvInt("LOOM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LOOM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxToolIterations, err := getEnvInt("LOOM_MAX_TOOL_ITERATIONS", 5)
	if err != nil {
		return Settings{}, err
	}

	toolTimeout, err := getEnvInt("LOOM_TOOL_TIMEOUT_SECS", 30)
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv("LOOM_MODEL")
	if model == "" {
		model = name.DefaultModel()
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    name,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Generation: GenerationConfig{
			MaxToolIterations: maxToolIterations,
			ToolTimeoutSecs:   toolTimeout,
		},
		Store: StoreConfig{
			Path: os.Getenv("LOOM_DB_PATH"),
		},
		LogLevel: getEnvDefault("LOOM_LOG_LEVEL", "info"),
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
