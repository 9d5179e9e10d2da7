package config

import "fmt"

// ValidationConfig configures response validation: the checks that decide
// whether a model reply actually performed the requested work or has to be
// redone through manual tool execution.
type ValidationConfig struct {
	// Enabled toggles response validation entirely. Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Enable response validation,default=true"`

	// TriggerKeywords gate validation: a message containing none of them is
	// never validated.
	TriggerKeywords []string `yaml:"trigger_keywords,omitempty" json:"trigger_keywords,omitempty" jsonschema:"title=Trigger Keywords,description=Keywords that make a message tool-related"`

	// MinResponseLength flags replies shorter than this after trimming.
	// Default: 50
	MinResponseLength int `yaml:"min_response_length,omitempty" json:"min_response_length,omitempty" jsonschema:"title=Min Response Length,description=Minimum acceptable reply length,default=50"`

	// TemplateIndicators are substrings that betray leaked placeholders.
	TemplateIndicators []string `yaml:"template_indicators,omitempty" json:"template_indicators,omitempty" jsonschema:"title=Template Indicators,description=Substrings indicating leaked template placeholders"`

	// InabilityPhrases are substrings where the model declines the work.
	InabilityPhrases []string `yaml:"inability_phrases,omitempty" json:"inability_phrases,omitempty" jsonschema:"title=Inability Phrases,description=Substrings indicating the model declined"`

	// EnableHallucinationDetection toggles the invented-enumeration check.
	// Default: true
	EnableHallucinationDetection *bool `yaml:"enable_hallucination_detection,omitempty" json:"enable_hallucination_detection,omitempty" jsonschema:"title=Hallucination Detection,description=Enable hallucination indicator check,default=true"`

	// HallucinationIndicators are substrings of typical invented listings.
	HallucinationIndicators []string `yaml:"hallucination_indicators,omitempty" json:"hallucination_indicators,omitempty" jsonschema:"title=Hallucination Indicators,description=Substrings of invented enumerations"`

	// EnableCountQueryValidation toggles the suspicious-count check.
	// Default: true
	EnableCountQueryValidation *bool `yaml:"enable_count_query_validation,omitempty" json:"enable_count_query_validation,omitempty" jsonschema:"title=Count Query Validation,description=Enable suspicious count answer check,default=true"`
}

func defaultTriggerKeywords() []string {
	return []string{"project", "projects", "namespace", "create", "list"}
}

func defaultTemplateIndicators() []string {
	return []string{
		"[number of", "[project", "[namespace", "[insert", "[your",
		"{{", "{project", "{namespace", "<project", "<namespace",
	}
}

func defaultInabilityPhrases() []string {
	return []string{
		"i don't have access", "i do not have access",
		"cannot directly", "can't directly",
		"i'm unable to", "i am unable to",
		"i cannot access", "as an ai",
	}
}

func defaultHallucinationIndicators() []string {
	return []string{
		"project 1", "project 2", "project 3",
		"project a", "project b", "project c",
		"example project", "sample project",
	}
}

// SetDefaults applies default values.
func (c *ValidationConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if len(c.TriggerKeywords) == 0 {
		c.TriggerKeywords = defaultTriggerKeywords()
	}
	if c.MinResponseLength == 0 {
		c.MinResponseLength = 50
	}
	if len(c.TemplateIndicators) == 0 {
		c.TemplateIndicators = defaultTemplateIndicators()
	}
	if len(c.InabilityPhrases) == 0 {
		c.InabilityPhrases = defaultInabilityPhrases()
	}
	if c.EnableHallucinationDetection == nil {
		c.EnableHallucinationDetection = BoolPtr(true)
	}
	if len(c.HallucinationIndicators) == 0 {
		c.HallucinationIndicators = defaultHallucinationIndicators()
	}
	if c.EnableCountQueryValidation == nil {
		c.EnableCountQueryValidation = BoolPtr(true)
	}
}

// Validate checks the validation configuration.
func (c *ValidationConfig) Validate() error {
	if c.MinResponseLength < 0 {
		return fmt.Errorf("min_response_length must not be negative, got %d", c.MinResponseLength)
	}
	return nil
}
