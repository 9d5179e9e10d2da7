package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	tekuri "github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/stentor/pkg/intent"
	"github.com/kadirpekel/stentor/pkg/observability"
	"github.com/kadirpekel/stentor/pkg/schema"
)

// User-facing messages for executor-level outcomes.
const (
	// MsgMissingProjectID guides the user when a create request names no
	// project.
	MsgMissingProjectID = "Please specify a project name to create. For example: 'Create project my_app'"

	msgRegistryUnavailable = "Tool system not available"
)

// Executor re-does the work a model reply failed to perform. It derives a
// typed ToolInput from the user message through the intent analyzer,
// validates it against the tool's declared input schema, and invokes the
// tool with panic recovery. Every path yields a ToolResult; the executor
// never returns an error.
type Executor struct {
	registry *Registry
	analyzer intent.Analyzer
	toolName string

	mu       sync.Mutex
	compiled map[string]*tekuri.Schema
}

// NewExecutor creates an executor dispatching to the named tool. An empty
// name selects the built-in projects tool.
func NewExecutor(reg *Registry, analyzer intent.Analyzer, toolName string) *Executor {
	if toolName == "" {
		toolName = "projects"
	}
	return &Executor{
		registry: reg,
		analyzer: analyzer,
		toolName: toolName,
		compiled: make(map[string]*tekuri.Schema),
	}
}

// ToolName returns the name of the tool this executor dispatches to.
func (e *Executor) ToolName() string {
	return e.toolName
}

// RunManual executes the tool for a message whose model reply did not
// perform the work. The registry must already have been initialized by the
// request handler; RunManual only reads its state.
func (e *Executor) RunManual(ctx context.Context, message string, overrides intent.Overrides) ToolResult {
	start := time.Now()

	tracer := observability.GetTracer("stentor.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, e.toolName),
		),
	)
	defer span.End()

	result := e.runManual(ctx, message, overrides)
	result.ToolName = e.toolName
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.String(observability.AttrIntegrationMode, result.IntegrationMode),
	)
	var recordErr error
	if result.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		recordErr = fmt.Errorf("%s", result.Message)
		span.SetStatus(codes.Error, result.Message)
	}
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, e.toolName, result.Duration, recordErr)
	}

	return result
}

func (e *Executor) runManual(ctx context.Context, message string, overrides intent.Overrides) ToolResult {
	if !e.registry.Ready() {
		return ToolResult{
			Success:         false,
			Message:         msgRegistryUnavailable,
			IntegrationMode: ModeManualFailed,
		}
	}

	tool, err := e.registry.GetTool(e.toolName)
	if err != nil {
		return ToolResult{
			Success:         false,
			Message:         fmt.Sprintf("Tool '%s' not found", e.toolName),
			IntegrationMode: ModeManualFailed,
		}
	}

	analysis := e.analyzer.Analyze(ctx, message, overrides)

	// Namespaces and project ids are case-insensitive. Overrides and LLM
	// analyses can arrive with arbitrary casing, so fold before the
	// schema's lowercase patterns see them.
	analysis.Namespace = foldName(analysis.Namespace)
	analysis.ProjectID = foldName(analysis.ProjectID)

	if analysis.Action == intent.ActionCreate && analysis.ProjectID == "" {
		return ToolResult{
			Success:         false,
			Action:          analysis.Action,
			Namespace:       analysis.Namespace,
			Message:         MsgMissingProjectID,
			IntegrationMode: ModeManual,
		}
	}

	args := map[string]interface{}{
		"action":    analysis.Action,
		"namespace": analysis.Namespace,
	}
	if analysis.ProjectID != "" {
		args["project_id"] = analysis.ProjectID
	}

	input, err := e.buildInput(tool, args)
	if err != nil {
		return ToolResult{
			Success:         false,
			Action:          analysis.Action,
			Namespace:       analysis.Namespace,
			Message:         fmt.Sprintf("Invalid input for tool '%s': %v", e.toolName, err),
			IntegrationMode: ModeManualFailed,
		}
	}

	output, invokeErr := e.invoke(ctx, tool, input)
	if invokeErr != nil {
		return ToolResult{
			Success:         false,
			Action:          input.Action,
			Namespace:       input.Namespace,
			Message:         fmt.Sprintf("Tool execution failed: %v", invokeErr),
			IntegrationMode: ModeManualFailed,
		}
	}

	if !output.Success {
		return ToolResult{
			Success:         false,
			Action:          input.Action,
			Namespace:       input.Namespace,
			Message:         "I encountered an issue: " + output.Message,
			Payload:         output.Payload,
			IntegrationMode: ModeManual,
		}
	}

	return ToolResult{
		Success:         true,
		Action:          input.Action,
		Namespace:       input.Namespace,
		Message:         output.Message,
		Payload:         output.Payload,
		IntegrationMode: ModeManual,
	}
}

// foldName canonicalizes a namespace or project id to its lowercase,
// trimmed form.
func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// buildInput validates raw args against the tool's declared input schema
// and decodes them into the typed ToolInput. Request overrides are
// untrusted, so validation happens before anything reaches the tool.
func (e *Executor) buildInput(tool Tool, args map[string]interface{}) (ToolInput, error) {
	compiled, err := e.inputSchema(tool)
	if err != nil {
		return ToolInput{}, err
	}
	if compiled != nil {
		if err := schema.ValidateValue(compiled, args); err != nil {
			return ToolInput{}, err
		}
	}

	var input ToolInput
	if err := mapstructure.Decode(args, &input); err != nil {
		return ToolInput{}, fmt.Errorf("failed to decode tool input: %w", err)
	}
	return input, nil
}

// inputSchema returns the compiled input schema for a tool, compiling and
// caching it on first use. A tool without a declared input schema skips
// validation.
func (e *Executor) inputSchema(tool Tool) (*tekuri.Schema, error) {
	name := tool.GetName()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	raw := tool.GetSchema().Input
	if raw == nil {
		e.compiled[name] = nil
		return nil, nil
	}

	compiled, err := schema.Compile(name+".input", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid input schema for tool %q: %w", name, err)
	}
	e.compiled[name] = compiled
	return compiled, nil
}

// invoke runs the tool, converting a panic into an error so a misbehaving
// tool cannot escape the in-band failure contract.
func (e *Executor) invoke(ctx context.Context, tool Tool, input ToolInput) (output ToolOutput, invokeErr error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked during execution", "tool", tool.GetName(), "panic", r)
			invokeErr = fmt.Errorf("%v", r)
		}
	}()
	return tool.Run(ctx, input), nil
}
