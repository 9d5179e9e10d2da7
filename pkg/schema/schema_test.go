package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Action    string `json:"action" jsonschema:"required,enum=create,enum=list,description=Operation to perform"`
	Namespace string `json:"namespace,omitempty" jsonschema:"description=Target namespace"`
	Count     int    `json:"count,omitempty" jsonschema:"minimum=0,maximum=100"`
}

func TestGenerate(t *testing.T) {
	schemaMap, err := Generate[sampleInput]()
	require.NoError(t, err)

	assert.Equal(t, "object", schemaMap["type"])
	assert.NotContains(t, schemaMap, "$schema")
	assert.NotContains(t, schemaMap, "$id")

	properties, ok := schemaMap["properties"].(map[string]any)
	require.True(t, ok, "properties should be a map")
	require.Contains(t, properties, "action")
	require.Contains(t, properties, "namespace")

	action, ok := properties["action"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Operation to perform", action["description"])
	assert.Len(t, action["enum"], 2)

	required, ok := schemaMap["required"].([]any)
	require.True(t, ok, "required should be present")
	assert.Contains(t, required, "action")
	assert.NotContains(t, required, "namespace")
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		schemaMap := MustGenerate[sampleInput]()
		assert.Equal(t, "object", schemaMap["type"])
	})
}

func TestCompileAndValidate(t *testing.T) {
	compiled, err := Compile("sample.json", MustGenerate[sampleInput]())
	require.NoError(t, err)

	assert.NoError(t, ValidateValue(compiled, sampleInput{Action: "list", Namespace: "test"}))
	assert.NoError(t, ValidateValue(compiled, map[string]any{"action": "create"}))

	err = ValidateValue(compiled, map[string]any{"namespace": "test"})
	assert.Error(t, err, "missing required action should fail")

	err = ValidateValue(compiled, map[string]any{"action": "destroy"})
	assert.Error(t, err, "action outside the enum should fail")

	err = ValidateValue(compiled, map[string]any{"action": "list", "count": 500})
	assert.Error(t, err, "count above maximum should fail")
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("bad.json", map[string]any{"type": 42})
	assert.Error(t, err)
}
