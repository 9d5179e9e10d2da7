package config

import (
	"fmt"
	"regexp"
)

// Analysis strategy names.
const (
	StrategyLLM    = "llm"
	StrategyRules  = "rules"
	StrategyHybrid = "hybrid"
)

// AnalysisRule is one named rule for intent extraction. Rules are pure data:
// loaded once at startup, immutable afterwards.
type AnalysisRule struct {
	// Name identifies the rule. Action rules whose name contains "create"
	// feed the create bucket; all others feed the list bucket.
	Name string `yaml:"name" json:"name" jsonschema:"title=Name,description=Rule identifier"`

	// Patterns are regular expressions applied to the lowercased message.
	// Capture group 1 is the extracted value.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty" jsonschema:"title=Patterns,description=Regular expressions with one capture group"`

	// Keywords score the rule's action bucket when present in the message.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty" jsonschema:"title=Keywords,description=Keywords that score this rule"`

	// Weight multiplies this rule's keyword hits. Default: 1.0
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty" jsonschema:"title=Weight,description=Score multiplier,default=1"`

	// Enabled toggles the rule. Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Whether the rule is active,default=true"`
}

// IsEnabled reports whether the rule is active.
func (r *AnalysisRule) IsEnabled() bool {
	return BoolValue(r.Enabled, true)
}

// RouterConfig configures intent analysis.
type RouterConfig struct {
	// Strategy selects the analyzer: llm, rules, or hybrid (LLM with rule
	// fallback). Default: hybrid
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty" jsonschema:"title=Strategy,description=Intent analysis strategy,enum=llm,enum=rules,enum=hybrid,default=hybrid"`

	// DefaultNamespace is used when no namespace is extracted. Default: test
	DefaultNamespace string `yaml:"default_namespace,omitempty" json:"default_namespace,omitempty" jsonschema:"title=Default Namespace,description=Namespace when none is extracted,default=test"`

	// ConfidenceThreshold discards LLM analyses below it in hybrid mode.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty" jsonschema:"title=Confidence Threshold,description=Minimum confidence for LLM analyses,minimum=0,maximum=1,default=0.7"`

	// FuzzyMatching matches keywords as substrings instead of whole tokens.
	FuzzyMatching *bool `yaml:"fuzzy_matching,omitempty" json:"fuzzy_matching,omitempty" jsonschema:"title=Fuzzy Matching,description=Match keywords as substrings,default=true"`

	// ExcludedNamespaces are stop-words rejected as namespace captures.
	ExcludedNamespaces []string `yaml:"excluded_namespaces,omitempty" json:"excluded_namespaces,omitempty" jsonschema:"title=Excluded Namespaces,description=Stop-words never treated as namespaces"`

	// NamespacePatterns extract the namespace, tried in order.
	NamespacePatterns []AnalysisRule `yaml:"namespace_patterns,omitempty" json:"namespace_patterns,omitempty" jsonschema:"title=Namespace Patterns,description=Ordered namespace extraction rules"`

	// ActionPatterns score the action buckets and extract project ids.
	ActionPatterns []AnalysisRule `yaml:"action_patterns,omitempty" json:"action_patterns,omitempty" jsonschema:"title=Action Patterns,description=Ordered action scoring rules"`
}

// Built-in rule sets, applied when the config file defines none.
func defaultActionPatterns() []AnalysisRule {
	return []AnalysisRule{
		{
			Name:     "create_project",
			Keywords: []string{"create", "new", "add", "make", "build", "generate"},
			Patterns: []string{
				`create (?:a |an )?(?:new )?project (?:called |named )?([a-z][a-z0-9_-]*)`,
				`new project (?:called |named )?([a-z][a-z0-9_-]*)`,
			},
			Weight: 1.0,
		},
		{
			Name:     "list_projects",
			Keywords: []string{"list", "show", "display", "view", "get", "see"},
			Weight:   1.0,
		},
	}
}

func defaultNamespacePatterns() []AnalysisRule {
	return []AnalysisRule{
		{
			Name: "explicit_namespace",
			Patterns: []string{
				`in (?:the )?([a-z0-9][a-z0-9_-]*) namespace`,
				`namespace ([a-z0-9][a-z0-9_-]*)`,
				`([a-z0-9][a-z0-9_-]*) namespace`,
			},
			Weight: 1.0,
		},
		{
			Name: "prepositional_namespace",
			Patterns: []string{
				`in ([a-z0-9][a-z0-9_-]*)`,
				`under ([a-z0-9][a-z0-9_-]*)`,
			},
			Weight: 1.0,
		},
	}
}

func defaultExcludedNamespaces() []string {
	return []string{
		"the", "a", "an", "my", "me", "this", "that", "all", "any", "some",
		"it", "there", "here", "project", "projects", "namespace", "namespaces",
	}
}

// SetDefaults applies default values.
func (c *RouterConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyHybrid
	}
	if c.DefaultNamespace == "" {
		c.DefaultNamespace = "test"
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.7
	}
	if c.FuzzyMatching == nil {
		c.FuzzyMatching = BoolPtr(true)
	}
	if len(c.ExcludedNamespaces) == 0 {
		c.ExcludedNamespaces = defaultExcludedNamespaces()
	}
	if len(c.NamespacePatterns) == 0 {
		c.NamespacePatterns = defaultNamespacePatterns()
	}
	if len(c.ActionPatterns) == 0 {
		c.ActionPatterns = defaultActionPatterns()
	}

	for i := range c.NamespacePatterns {
		if c.NamespacePatterns[i].Weight == 0 {
			c.NamespacePatterns[i].Weight = 1.0
		}
	}
	for i := range c.ActionPatterns {
		if c.ActionPatterns[i].Weight == 0 {
			c.ActionPatterns[i].Weight = 1.0
		}
	}
}

// Validate checks the router configuration, including that every rule
// pattern compiles.
func (c *RouterConfig) Validate() error {
	switch c.Strategy {
	case StrategyLLM, StrategyRules, StrategyHybrid:
	default:
		return fmt.Errorf("invalid strategy %q (valid: llm, rules, hybrid)", c.Strategy)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}

	for _, group := range []struct {
		name  string
		rules []AnalysisRule
	}{
		{"namespace_patterns", c.NamespacePatterns},
		{"action_patterns", c.ActionPatterns},
	} {
		for _, rule := range group.rules {
			if rule.Name == "" {
				return fmt.Errorf("%s: rule name is required", group.name)
			}
			if rule.Weight < 0 {
				return fmt.Errorf("%s rule %q: weight must not be negative", group.name, rule.Name)
			}
			for _, pattern := range rule.Patterns {
				if _, err := regexp.Compile(pattern); err != nil {
					return fmt.Errorf("%s rule %q: invalid pattern %q: %w", group.name, rule.Name, pattern, err)
				}
			}
		}
	}

	return nil
}
