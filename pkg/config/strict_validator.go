package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// StrictValidationResult contains validation errors from strict unmarshaling.
type StrictValidationResult struct {
	UnknownFields []string
	TypeErrors    []string
}

// Valid returns true if there are no validation errors.
func (r *StrictValidationResult) Valid() bool {
	return len(r.UnknownFields) == 0 && len(r.TypeErrors) == 0
}

// FormatErrors returns a human-readable error message.
func (r *StrictValidationResult) FormatErrors() string {
	if r.Valid() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("❌ Configuration validation errors:\n\n")

	if len(r.UnknownFields) > 0 {
		sb.WriteString("Unknown fields (not recognized):\n")
		for _, field := range r.UnknownFields {
			sb.WriteString(fmt.Sprintf("   • %s\n", field))
		}
		sb.WriteString("\n")
		sb.WriteString("   These fields are not part of the configuration structure.\n")
		sb.WriteString("   Check for typos and incorrect nesting levels.\n\n")
	}

	if len(r.TypeErrors) > 0 {
		sb.WriteString("Type errors:\n")
		for _, err := range r.TypeErrors {
			sb.WriteString(fmt.Sprintf("   • %s\n", err))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Hint: run 'stentor validate <file>' after editing to check the configuration.\n")

	return sb.String()
}

// ValidateConfigStructure performs strict validation on raw config data.
// It catches typos, unknown fields, and incorrect nesting BEFORE the config
// is processed, so users get early feedback instead of silently ignored
// settings.
func ValidateConfigStructure(k *koanf.Koanf) (*StrictValidationResult, error) {
	result := &StrictValidationResult{}

	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true, // error on unknown fields
		TagName:     "yaml",
		// Weak type coercion disabled so type mismatches surface here.
		WeaklyTypedInput: false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
			intToFloatHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(k.Raw()); err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "unused key") || strings.Contains(errStr, "has invalid keys:") {
			result.UnknownFields = extractUnknownFields(errStr)
		} else {
			result.TypeErrors = append(result.TypeErrors, errStr)
		}
	}

	return result, nil
}

// intToFloatHookFunc widens YAML integers into float64 targets, so values
// like `confidence_threshold: 1` pass strict decoding.
func intToFloatHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t.Kind() != reflect.Float64 {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		default:
			return data, nil
		}
	}
}

// extractUnknownFields parses mapstructure error messages to extract field names.
func extractUnknownFields(errMsg string) []string {
	var fields []string

	// mapstructure error format: "...has invalid keys: key1, key2, key3"
	if idx := strings.Index(errMsg, "has invalid keys:"); idx != -1 {
		keysStr := errMsg[idx+len("has invalid keys:"):]
		for _, key := range strings.Split(strings.TrimSpace(keysStr), ",") {
			if key = strings.TrimSpace(key); key != "" {
				fields = append(fields, key)
			}
		}
	}

	// If we couldn't parse it, return the raw error
	if len(fields) == 0 {
		fields = []string{errMsg}
	}

	return fields
}
