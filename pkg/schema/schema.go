// Package schema generates JSON schemas from Go types and validates values
// against them. Generated schemas feed LLM structured output and tool
// declarations; compiled schemas gate tool inputs before execution.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	tekuri "github.com/santhosh-tekuri/jsonschema/v5"
)

// Generate builds a JSON schema map from a Go type using struct tags.
//
// Supported tags:
//   - json:"name" - field name
//   - json:",omitempty" - optional field
//   - jsonschema:"required" - explicitly mark as required
//   - jsonschema:"description=..." - field description
//   - jsonschema:"enum=a,enum=b" - allowed values
//   - jsonschema:"minimum=N,maximum=M" - numeric constraints
func Generate[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	reflected := reflector.Reflect(new(T))

	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	delete(result, "$schema")
	delete(result, "$id")

	return result, nil
}

// MustGenerate is Generate for static types known at compile time, where a
// generation failure is a programming error.
func MustGenerate[T any]() map[string]any {
	result, err := Generate[T]()
	if err != nil {
		panic(fmt.Sprintf("schema generation failed: %v", err))
	}
	return result
}

// Compile turns a schema map into a validator.
func Compile(name string, schemaMap map[string]any) (*tekuri.Schema, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema %q: %w", name, err)
	}

	compiled, err := tekuri.CompileString(name, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %q: %w", name, err)
	}

	return compiled, nil
}

// ValidateValue checks a Go value against a compiled schema. The value is
// round-tripped through JSON so struct tags apply.
func ValidateValue(compiled *tekuri.Schema, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("value does not match schema: %w", err)
	}

	return nil
}
