package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stentor/pkg/intent"
)

// fixedAnalyzer returns the same analysis for every message.
type fixedAnalyzer struct {
	analysis intent.Analysis
}

func (a fixedAnalyzer) Analyze(ctx context.Context, message string, overrides intent.Overrides) intent.Analysis {
	result := a.analysis
	if overrides.Namespace != "" {
		result.Namespace = overrides.Namespace
	}
	if overrides.ProjectID != "" {
		result.ProjectID = overrides.ProjectID
	}
	return result
}

// panickyTool blows up on Run to exercise the executor's recovery.
type panickyTool struct{}

func (panickyTool) GetName() string                   { return "panicky" }
func (panickyTool) GetDescription() string            { return "always panics" }
func (panickyTool) GetSchema() ToolSchema             { return ToolSchema{} }
func (panickyTool) HealthCheck(ctx context.Context) bool { return true }
func (panickyTool) Run(ctx context.Context, input ToolInput) ToolOutput {
	panic("tool exploded")
}

func newReadyRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry()
	seed := func(ctx context.Context, r *Registry) error {
		projects, err := NewProjectsTool(t.TempDir())
		if err != nil {
			return err
		}
		return r.RegisterTool(projects)
	}
	require.NoError(t, reg.Initialize(context.Background(), seed))
	return reg
}

func TestExecutor_RunManual_Create(t *testing.T) {
	reg := newReadyRegistry(t)
	analyzer := fixedAnalyzer{analysis: intent.Analysis{
		Action: intent.ActionCreate, Namespace: "dev", ProjectID: "demo", Confidence: 0.9,
	}}
	exec := NewExecutor(reg, analyzer, "projects")

	result := exec.RunManual(context.Background(), "create project demo in dev", intent.Overrides{})

	assert.True(t, result.Success)
	assert.Equal(t, "projects", result.ToolName)
	assert.Equal(t, "create", result.Action)
	assert.Equal(t, "dev", result.Namespace)
	assert.Equal(t, ModeManual, result.IntegrationMode)
	assert.Equal(t, "✅ Successfully created project 'demo' in namespace 'dev'", result.UserMessage())
}

func TestExecutor_RunManual_CreateWithoutProjectID(t *testing.T) {
	reg := newReadyRegistry(t)
	analyzer := fixedAnalyzer{analysis: intent.Analysis{
		Action: intent.ActionCreate, Namespace: "test", Confidence: 0.8,
	}}
	exec := NewExecutor(reg, analyzer, "projects")

	result := exec.RunManual(context.Background(), "create a project", intent.Overrides{})

	assert.False(t, result.Success)
	assert.Equal(t, ModeManual, result.IntegrationMode)
	assert.Equal(t, MsgMissingProjectID, result.UserMessage())
}

func TestExecutor_RunManual_OverridesReachTheTool(t *testing.T) {
	reg := newReadyRegistry(t)
	analyzer := fixedAnalyzer{analysis: intent.Analysis{
		Action: intent.ActionList, Namespace: "test", Confidence: 0.8,
	}}
	exec := NewExecutor(reg, analyzer, "projects")

	result := exec.RunManual(context.Background(), "list projects", intent.Overrides{Namespace: "staging"})

	assert.True(t, result.Success)
	assert.Equal(t, "staging", result.Namespace)
	assert.Equal(t, "I found 0 project(s) in the 'staging' namespace:", result.UserMessage())
}

func TestExecutor_RunManual_FoldsNameCasing(t *testing.T) {
	reg := newReadyRegistry(t)

	analyzer := fixedAnalyzer{analysis: intent.Analysis{
		Action: intent.ActionList, Namespace: "test", Confidence: 0.8,
	}}
	exec := NewExecutor(reg, analyzer, "projects")

	result := exec.RunManual(context.Background(), "list projects", intent.Overrides{Namespace: "Staging"})

	assert.True(t, result.Success)
	assert.Equal(t, ModeManual, result.IntegrationMode)
	assert.Equal(t, "staging", result.Namespace)
	assert.Equal(t, "I found 0 project(s) in the 'staging' namespace:", result.UserMessage())

	creator := fixedAnalyzer{analysis: intent.Analysis{
		Action: intent.ActionCreate, Namespace: "test", Confidence: 0.8,
	}}
	exec = NewExecutor(reg, creator, "projects")

	result = exec.RunManual(context.Background(), "create it", intent.Overrides{Namespace: "Staging", ProjectID: " Demo "})

	assert.True(t, result.Success)
	assert.Equal(t, "staging", result.Namespace)
	assert.Equal(t, "✅ Successfully created project 'demo' in namespace 'staging'", result.UserMessage())
}

func TestExecutor_RunManual_RegistryNotReady(t *testing.T) {
	reg := NewRegistry()
	exec := NewExecutor(reg, fixedAnalyzer{}, "projects")

	result := exec.RunManual(context.Background(), "list projects", intent.Overrides{})

	assert.False(t, result.Success)
	assert.Equal(t, ModeManualFailed, result.IntegrationMode)
	assert.Contains(t, result.UserMessage(), "I apologize")
}

func TestExecutor_RunManual_UnknownTool(t *testing.T) {
	reg := newReadyRegistry(t)
	exec := NewExecutor(reg, fixedAnalyzer{}, "no-such-tool")

	result := exec.RunManual(context.Background(), "list projects", intent.Overrides{})

	assert.False(t, result.Success)
	assert.Equal(t, ModeManualFailed, result.IntegrationMode)
	assert.Contains(t, result.Message, "not found")
}

func TestExecutor_RunManual_RecoversFromToolPanic(t *testing.T) {
	reg := NewRegistry()
	seed := func(ctx context.Context, r *Registry) error {
		return r.RegisterTool(panickyTool{})
	}
	require.NoError(t, reg.Initialize(context.Background(), seed))

	analyzer := fixedAnalyzer{analysis: intent.Analysis{
		Action: intent.ActionList, Namespace: "test", Confidence: 0.8,
	}}
	exec := NewExecutor(reg, analyzer, "panicky")

	result := exec.RunManual(context.Background(), "list projects", intent.Overrides{})

	assert.False(t, result.Success)
	assert.Equal(t, ModeManualFailed, result.IntegrationMode)
	assert.Contains(t, result.Message, "tool exploded")
}

func TestExecutor_RunManual_InvalidInputRejectedBySchema(t *testing.T) {
	reg := newReadyRegistry(t)
	analyzer := fixedAnalyzer{analysis: intent.Analysis{
		Action: "destroy", Namespace: "test", Confidence: 0.8,
	}}
	exec := NewExecutor(reg, analyzer, "projects")

	result := exec.RunManual(context.Background(), "destroy everything", intent.Overrides{})

	assert.False(t, result.Success)
	assert.Equal(t, ModeManualFailed, result.IntegrationMode)
	assert.Contains(t, result.Message, "Invalid input")
}

func TestExecutor_DefaultToolName(t *testing.T) {
	exec := NewExecutor(NewRegistry(), fixedAnalyzer{}, "")
	assert.Equal(t, "projects", exec.ToolName())
}
