// Package agent bundles an LLM provider with per-session conversation
// history.
//
// Each session owns exactly one Agent. The agent decides once, from the
// configured model name, whether the model can call tools natively: models
// on the tool allowlist run in "tools" mode and receive the registry's
// declarations with every request, everything else runs in "json" mode
// where the pipeline relies on structured output and manual execution.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/llms"
	"github.com/kadirpekel/stentor/pkg/observability"
	"github.com/kadirpekel/stentor/pkg/tools"
)

// Agent modes.
const (
	// ModeTools declares the registered tool set to the model and lets it
	// call tools natively.
	ModeTools = "tools"

	// ModeJSON runs without native tool calling; tool work the model
	// cannot perform is redone manually by the executor.
	ModeJSON = "json"
)

// Reply is one completed agent turn.
type Reply struct {
	Text string

	// ToolCalls carries native tool invocations the model issued. The
	// request handler decides what to do with them; the agent does not
	// interpret them.
	ToolCalls []llms.ToolCall

	Tokens int
}

// Agent wraps a chat completion provider with conversation history. All
// methods are safe for concurrent use; calls on the same agent serialize
// through its mutex so history sees turns in arrival order.
type Agent struct {
	provider llms.Provider
	registry *tools.Registry
	mode     string

	mu      sync.Mutex
	history []llms.Message
}

// New builds an agent with a fresh provider and empty history.
func New(cfg *config.LLMConfig, registry *tools.Registry) (*Agent, error) {
	provider, err := llms.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return NewWithProvider(provider, registry, cfg.ToolModels), nil
}

// NewWithProvider builds an agent around an existing provider. Tests and
// the session manager's factory use this directly.
func NewWithProvider(provider llms.Provider, registry *tools.Registry, toolModels []string) *Agent {
	mode := ModeJSON
	if SupportsNativeTools(provider.GetModelName(), toolModels) {
		mode = ModeTools
	}
	return &Agent{
		provider: provider,
		registry: registry,
		mode:     mode,
	}
}

// SupportsNativeTools reports whether a model is on the native tool calling
// allowlist. Membership is a substring match so version suffixes like
// "llama3.1:8b" still qualify.
func SupportsNativeTools(model string, toolModels []string) bool {
	lower := strings.ToLower(model)
	for _, fragment := range toolModels {
		if fragment != "" && strings.Contains(lower, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}

// Mode returns "tools" or "json".
func (a *Agent) Mode() string {
	return a.mode
}

// Model returns the provider's model name.
func (a *Agent) Model() string {
	return a.provider.GetModelName()
}

// Run submits the message with the conversation so far and returns the
// model's reply. On success the user and assistant turns are appended to
// history in that order; a failed or canceled call appends nothing.
func (a *Agent) Run(ctx context.Context, message string) (Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()

	tracer := observability.GetTracer("stentor.agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, a.provider.GetModelName()),
			attribute.String(observability.AttrLLMMode, a.mode),
		),
	)
	defer span.End()

	messages := make([]llms.Message, 0, len(a.history)+1)
	messages = append(messages, a.history...)
	messages = append(messages, llms.UserMessage(message))

	text, toolCalls, tokens, err := a.provider.Generate(ctx, messages, a.toolDefinitions())

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordAgentCall(ctx, time.Since(start), tokens, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("agent run failed: %w", err)
	}
	span.SetStatus(codes.Ok, "")

	a.history = append(a.history, llms.UserMessage(message))
	assistant := llms.AssistantMessage(text)
	assistant.ToolCalls = toolCalls
	a.history = append(a.history, assistant)

	if len(toolCalls) > 0 {
		slog.Debug("Model issued native tool calls",
			"model", a.provider.GetModelName(),
			"calls", len(toolCalls),
		)
	}

	return Reply{Text: text, ToolCalls: toolCalls, Tokens: tokens}, nil
}

// toolDefinitions returns the declared tool set in tools mode, nil in json
// mode. An uninitialized registry declares nothing; the manual execution
// path covers the gap.
func (a *Agent) toolDefinitions() []llms.ToolDefinition {
	if a.mode != ModeTools || a.registry == nil || !a.registry.Ready() {
		return nil
	}
	return a.registry.Definitions()
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []llms.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	history := make([]llms.Message, len(a.history))
	copy(history, a.history)
	return history
}

// ResetHistory clears all turns. Provider and mode are untouched.
func (a *Agent) ResetHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Close releases the underlying provider.
func (a *Agent) Close() error {
	return a.provider.Close()
}
