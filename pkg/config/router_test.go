package config

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterConfig_Defaults(t *testing.T) {
	c := RouterConfig{}
	c.SetDefaults()

	assert.Equal(t, StrategyHybrid, c.Strategy)
	assert.Equal(t, "test", c.DefaultNamespace)
	assert.InDelta(t, 0.7, c.ConfidenceThreshold, 1e-9)
	assert.True(t, BoolValue(c.FuzzyMatching, false))
	assert.NotEmpty(t, c.ExcludedNamespaces)
	assert.NotEmpty(t, c.NamespacePatterns)
	assert.NotEmpty(t, c.ActionPatterns)

	require.NoError(t, c.Validate())
}

func TestRouterConfig_DefaultPatternsCompile(t *testing.T) {
	c := RouterConfig{}
	c.SetDefaults()

	for _, group := range [][]AnalysisRule{c.NamespacePatterns, c.ActionPatterns} {
		for _, rule := range group {
			for _, pattern := range rule.Patterns {
				re, err := regexp.Compile(pattern)
				require.NoError(t, err, "rule %s pattern %q", rule.Name, pattern)
				require.GreaterOrEqual(t, re.NumSubexp(), 1,
					"rule %s pattern %q must have a capture group", rule.Name, pattern)
			}
		}
	}
}

func TestRouterConfig_DefaultPatternsExtract(t *testing.T) {
	c := RouterConfig{}
	c.SetDefaults()

	// The explicit namespace rule extracts from "in <ns> namespace" phrasing.
	explicit := c.NamespacePatterns[0]
	re := regexp.MustCompile(explicit.Patterns[0])
	m := re.FindStringSubmatch("create a new project called demo in dev namespace")
	require.Len(t, m, 2)
	assert.Equal(t, "dev", m[1])

	// The create rule pattern extracts the project id.
	create := c.ActionPatterns[0]
	re = regexp.MustCompile(create.Patterns[0])
	m = re.FindStringSubmatch("create a new project called demo in dev namespace")
	require.Len(t, m, 2)
	assert.Equal(t, "demo", m[1])

	// Bare "create a project" yields no project id capture.
	assert.Nil(t, re.FindStringSubmatch("create a project"))
}

func TestRouterConfig_InvalidPattern(t *testing.T) {
	c := RouterConfig{
		ActionPatterns: []AnalysisRule{
			{Name: "broken", Patterns: []string{"("}},
		},
	}
	c.SetDefaults()

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRouterConfig_InvalidStrategy(t *testing.T) {
	c := RouterConfig{Strategy: "oracle"}
	c.SetDefaults()
	assert.Error(t, c.Validate())
}

func TestRouterConfig_ThresholdBounds(t *testing.T) {
	c := RouterConfig{ConfidenceThreshold: 1.5}
	c.SetDefaults()
	assert.Error(t, c.Validate())
}

func TestRouterConfig_RuleNameRequired(t *testing.T) {
	c := RouterConfig{
		NamespacePatterns: []AnalysisRule{{Patterns: []string{`in (\w+)`}}},
	}
	c.SetDefaults()

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule name is required")
}

func TestRouterConfig_WeightDefaulting(t *testing.T) {
	c := RouterConfig{
		ActionPatterns: []AnalysisRule{{Name: "custom", Keywords: []string{"go"}}},
	}
	c.SetDefaults()

	assert.Equal(t, 1.0, c.ActionPatterns[0].Weight)
}

func TestAnalysisRule_IsEnabled(t *testing.T) {
	r := AnalysisRule{Name: "r"}
	assert.True(t, r.IsEnabled(), "nil enabled defaults to true")

	r.Enabled = BoolPtr(false)
	assert.False(t, r.IsEnabled())
}
