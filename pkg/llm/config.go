package llm

import (
	"fmt"
	"strings"

	"github.com/dainotech/beespace-demo/pkg/config"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	DefaultModel = "gemini-2.0-flash-exp"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// LoadConfig reads LLM_* settings. GOOGLE_API_KEY is accepted as the key for
// the default Gemini backend.
func LoadConfig() Config {
	return Config{
		Provider:  strings.ToLower(config.GetEnv("LLM_PROVIDER", ProviderGemini)),
		Model:     config.GetEnv("LLM_MODEL", DefaultModel),
		APIKey:    config.GetEnvFirst("", "LLM_API_KEY", "GOOGLE_API_KEY"),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// KnownProvider reports whether NewModel can build a backend for c.Provider.
// An empty provider means Gemini.
func (c Config) KnownProvider() bool {
	switch strings.ToLower(c.Provider) {
	case "", ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}

// RequiresAPIKey reports whether the backend cannot run without a key.
// Ollama is commonly served locally without auth.
func (c Config) RequiresAPIKey() bool {
	return c.Provider != ProviderOllama
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderOllama:
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// NewModel returns a session-capable model for cfg.Provider. Gemini uses the
// native genai chat API; the others are wrapped streaming providers.
func NewModel(cfg Config) (Model, error) {
	if strings.ToLower(cfg.Provider) == ProviderGemini || cfg.Provider == "" {
		return NewGeminiModel(cfg), nil
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewProviderModel(provider), nil
}
