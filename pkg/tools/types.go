// Package tools provides the typed tool registry, the built-in project
// management tool, an optional MCP tool source, and the executor that
// re-runs tool work when a model reply failed to perform it.
//
// Tools are registered under stable string names and retrieved by name.
// Input and output shapes travel with the tool as declared JSON schemas;
// the registry stores them verbatim and never introspects semantics.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Integration modes recorded on a ToolResult.
const (
	// ModeNative marks work the model claims to have performed through a
	// native tool call.
	ModeNative = "native"

	// ModeManual marks work the executor re-ran in-process.
	ModeManual = "manual"

	// ModeManualFailed marks a manual run that could not be carried out
	// (registry unavailable, tool missing, invocation error).
	ModeManualFailed = "manual_failed"
)

// ErrToolNotFound is returned when a tool name has no registration.
var ErrToolNotFound = errors.New("tool not found")

// Tool is the contract every registered tool implements. Run is total: it
// reports failure in-band through ToolOutput and never panics across the
// boundary.
type Tool interface {
	GetName() string
	GetDescription() string
	GetSchema() ToolSchema
	Run(ctx context.Context, input ToolInput) ToolOutput
	HealthCheck(ctx context.Context) bool
}

// ToolSchema carries a tool's declared input and output shapes as plain
// JSON schema maps, plus free-form metadata.
type ToolSchema struct {
	Input    map[string]interface{} `json:"input_schema"`
	Output   map[string]interface{} `json:"output_schema"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToolInput is the typed input for one tool invocation. Action, Namespace
// and ProjectID cover the built-in tools; anything else a tool declares in
// its input schema lands in Args.
type ToolInput struct {
	Action    string                 `json:"action" mapstructure:"action"`
	Namespace string                 `json:"namespace" mapstructure:"namespace"`
	ProjectID string                 `json:"project_id,omitempty" mapstructure:"project_id"`
	Args      map[string]interface{} `json:"args,omitempty" mapstructure:",remain"`
}

// ToolOutput is what a tool returns. Failures are carried in-band with
// Success false and a human-readable Message.
type ToolOutput struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ToolResult is the executor-level wrapper around one invocation. It
// carries enough to render the user-facing reply and an audit record.
type ToolResult struct {
	Success         bool                   `json:"success"`
	ToolName        string                 `json:"tool_name"`
	Action          string                 `json:"action,omitempty"`
	Namespace       string                 `json:"namespace,omitempty"`
	Message         string                 `json:"message"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
	IntegrationMode string                 `json:"integration_mode"`
	Duration        time.Duration          `json:"duration_ns,omitempty"`
}

// UserMessage renders the reply text shown to the user for this result.
// Failed manual runs are wrapped in an apology that names the cause.
func (r ToolResult) UserMessage() string {
	if r.IntegrationMode == ModeManualFailed {
		return "I apologize, but I was unable to complete that request: " + r.Message
	}
	return r.Message
}

// ToolError tags a failure with the component and action it came from.
type ToolError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func NewToolError(component, action, message string, err error) *ToolError {
	return &ToolError{
		Component: component,
		Action:    action,
		Message:   message,
		Err:       err,
	}
}
