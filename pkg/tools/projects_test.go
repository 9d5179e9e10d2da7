package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProjectsTool(t *testing.T) *ProjectsTool {
	t.Helper()
	tool, err := NewProjectsTool(t.TempDir())
	require.NoError(t, err)
	return tool
}

func TestProjectsTool_CreateAndList(t *testing.T) {
	tool := newTestProjectsTool(t)
	ctx := context.Background()

	out := tool.Run(ctx, ToolInput{Action: "create", Namespace: "dev", ProjectID: "demo"})
	require.True(t, out.Success)
	assert.Equal(t, "✅ Successfully created project 'demo' in namespace 'dev'", out.Message)
	assert.Equal(t, "demo", out.Payload["project_id"])

	path, ok := out.Payload["path"].(string)
	require.True(t, ok)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(path, projectMetaFile))
	require.NoError(t, err)

	out = tool.Run(ctx, ToolInput{Action: "list", Namespace: "dev"})
	require.True(t, out.Success)
	assert.Equal(t, "I found 1 project(s) in the 'dev' namespace:\n- demo", out.Message)
	assert.Equal(t, 1, out.Payload["total"])
	assert.Equal(t, []string{"demo"}, out.Payload["projects"])
}

func TestProjectsTool_ListEmptyNamespace(t *testing.T) {
	tool := newTestProjectsTool(t)

	out := tool.Run(context.Background(), ToolInput{Action: "list", Namespace: "test"})
	require.True(t, out.Success)
	assert.Equal(t, "I found 0 project(s) in the 'test' namespace:", out.Message)
	assert.Equal(t, 0, out.Payload["total"])
}

func TestProjectsTool_ListSorted(t *testing.T) {
	tool := newTestProjectsTool(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		out := tool.Run(ctx, ToolInput{Action: "create", Namespace: "test", ProjectID: id})
		require.True(t, out.Success)
	}

	out := tool.Run(ctx, ToolInput{Action: "list", Namespace: "test"})
	require.True(t, out.Success)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, out.Payload["projects"])
	assert.Equal(t, "I found 3 project(s) in the 'test' namespace:\n- alpha\n- bravo\n- charlie", out.Message)
}

func TestProjectsTool_CreateDuplicate(t *testing.T) {
	tool := newTestProjectsTool(t)
	ctx := context.Background()

	out := tool.Run(ctx, ToolInput{Action: "create", Namespace: "dev", ProjectID: "demo"})
	require.True(t, out.Success)

	out = tool.Run(ctx, ToolInput{Action: "create", Namespace: "dev", ProjectID: "demo"})
	require.False(t, out.Success)
	assert.Equal(t, "Project 'demo' already exists in namespace 'dev'", out.Message)
}

func TestProjectsTool_CreateMissingProjectID(t *testing.T) {
	tool := newTestProjectsTool(t)

	out := tool.Run(context.Background(), ToolInput{Action: "create", Namespace: "dev"})
	require.False(t, out.Success)
	assert.Equal(t, MsgMissingProjectID, out.Message)
}

func TestProjectsTool_CreateWithDescription(t *testing.T) {
	tool := newTestProjectsTool(t)

	out := tool.Run(context.Background(), ToolInput{
		Action:    "create",
		Namespace: "dev",
		ProjectID: "billing",
		Args:      map[string]interface{}{"description": "invoicing service"},
	})
	require.True(t, out.Success)
	assert.Equal(t, "invoicing service", out.Payload["description"])

	path := out.Payload["path"].(string)
	meta, err := os.ReadFile(filepath.Join(path, projectMetaFile))
	require.NoError(t, err)
	assert.Contains(t, string(meta), "invoicing service")
}

func TestProjectsTool_RejectsUnsafeNames(t *testing.T) {
	tool := newTestProjectsTool(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input ToolInput
	}{
		{"namespace traversal", ToolInput{Action: "list", Namespace: "../outside"}},
		{"namespace separator", ToolInput{Action: "create", Namespace: "a/b", ProjectID: "x"}},
		{"project traversal", ToolInput{Action: "create", Namespace: "dev", ProjectID: ".."}},
		{"project separator", ToolInput{Action: "create", Namespace: "dev", ProjectID: "a/b"}},
		{"empty namespace", ToolInput{Action: "list"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tool.Run(ctx, tt.input)
			assert.False(t, out.Success)
			assert.Contains(t, out.Message, "Invalid")
		})
	}
}

func TestProjectsTool_UnsupportedAction(t *testing.T) {
	tool := newTestProjectsTool(t)

	out := tool.Run(context.Background(), ToolInput{Action: "delete", Namespace: "dev"})
	require.False(t, out.Success)
	assert.Equal(t, "Unsupported action 'delete' (valid: list, create)", out.Message)
}

func TestProjectsTool_ListIgnoresFiles(t *testing.T) {
	dir := t.TempDir()
	tool, err := NewProjectsTool(dir)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "test", "real"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test", "stray.txt"), []byte("x"), 0o644))

	out := tool.Run(context.Background(), ToolInput{Action: "list", Namespace: "test"})
	require.True(t, out.Success)
	assert.Equal(t, []string{"real"}, out.Payload["projects"])
}

func TestProjectsTool_Schema(t *testing.T) {
	tool := newTestProjectsTool(t)
	s := tool.GetSchema()

	require.NotNil(t, s.Input)
	assert.Equal(t, "object", s.Input["type"])

	props, ok := s.Input["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "action")
	assert.Contains(t, props, "namespace")
	assert.Contains(t, props, "project_id")

	required, ok := s.Input["required"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, required, "action")
	assert.Contains(t, required, "namespace")
	assert.NotContains(t, required, "project_id")

	require.NotNil(t, s.Output)
	assert.Equal(t, "object", s.Output["type"])
}

func TestProjectsTool_HealthCheck(t *testing.T) {
	tool := newTestProjectsTool(t)
	assert.True(t, tool.HealthCheck(context.Background()))
}
