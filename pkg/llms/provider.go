package llms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/httpclient"
)

// Provider is the common contract for chat completion backends.
type Provider interface {
	// Generate performs a non-streaming completion. It returns the reply
	// text, any native tool calls, and the total token count.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (text string, toolCalls []ToolCall, tokens int, err error)

	// GenerateStreaming performs a streaming completion. The returned
	// channel is closed after the final chunk.
	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	GetModelName() string

	GetMaxTokens() int

	GetTemperature() float64

	Close() error
}

// StructuredOutputProvider is implemented by providers that can constrain
// replies to a JSON schema.
type StructuredOutputProvider interface {
	Provider

	GenerateStructured(ctx context.Context, messages []Message, tools []ToolDefinition, structConfig *StructuredOutputConfig) (text string, toolCalls []ToolCall, tokens int, err error)

	SupportsStructuredOutput() bool
}

// NewProvider builds a provider from configuration.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM config cannot be nil")
	}

	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return NewOpenAIProviderFromConfig(cfg)
	case config.LLMProviderOllama:
		return NewOllamaProviderFromConfig(cfg)
	case config.LLMProviderGemini:
		return NewGeminiProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama, gemini)", cfg.Provider)
	}
}

// newHTTPClient builds the retrying HTTP client the OpenAI and Ollama
// providers share. The per-call timeout comes from configuration; retries
// fall back to the httpclient defaults.
func newHTTPClient(cfg *config.LLMConfig, opts ...httpclient.Option) *httpclient.Client {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	base := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	}

	return httpclient.New(append(base, opts...)...)
}
