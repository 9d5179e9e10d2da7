package intent

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stentor/pkg/config"
)

func testRouterConfig() *config.RouterConfig {
	cfg := &config.RouterConfig{}
	cfg.SetDefaults()
	return cfg
}

func newTestRuleAnalyzer(t *testing.T, cfg *config.RouterConfig) *RuleAnalyzer {
	t.Helper()
	analyzer, err := NewRuleAnalyzer(cfg)
	require.NoError(t, err)
	return analyzer
}

func TestRuleAnalyzer_Analyze(t *testing.T) {
	analyzer := newTestRuleAnalyzer(t, testRouterConfig())

	tests := []struct {
		name          string
		message       string
		wantAction    string
		wantNamespace string
		wantProjectID string
		minConfidence float64
	}{
		{
			name:          "create with explicit namespace",
			message:       "create a new project called demo in dev namespace",
			wantAction:    ActionCreate,
			wantNamespace: "dev",
			wantProjectID: "demo",
			minConfidence: 0.9,
		},
		{
			name:          "list with default namespace",
			message:       "show me my projects",
			wantAction:    ActionList,
			wantNamespace: "test",
			minConfidence: 0.7,
		},
		{
			name:          "list with prepositional namespace",
			message:       "list projects in prod",
			wantAction:    ActionList,
			wantNamespace: "prod",
			minConfidence: 0.8,
		},
		{
			name:          "create without project id",
			message:       "create a project",
			wantAction:    ActionCreate,
			wantNamespace: "test",
			wantProjectID: "",
			minConfidence: 0.7,
		},
		{
			name:          "count query ties to list",
			message:       "how many projects do I have in prod?",
			wantAction:    ActionList,
			wantNamespace: "prod",
			minConfidence: 0.7,
		},
		{
			name:          "create project without filler words",
			message:       "create project billing-api",
			wantAction:    ActionCreate,
			wantNamespace: "test",
			wantProjectID: "billing-api",
			minConfidence: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := analyzer.Analyze(context.Background(), tt.message, Overrides{})

			assert.Equal(t, tt.wantAction, analysis.Action)
			assert.Equal(t, tt.wantNamespace, analysis.Namespace)
			assert.Equal(t, tt.wantProjectID, analysis.ProjectID)
			assert.GreaterOrEqual(t, analysis.Confidence, tt.minConfidence)
			assert.LessOrEqual(t, analysis.Confidence, 1.0)
			assert.NotEmpty(t, analysis.Reasoning)
		})
	}
}

func TestRuleAnalyzer_NominalConfidence(t *testing.T) {
	analyzer := newTestRuleAnalyzer(t, testRouterConfig())

	tests := []struct {
		message        string
		wantConfidence float64
	}{
		{"show me my projects", 0.7},
		{"list projects in prod", 0.8},
		{"create project billing-api", 0.8},
		{"create a new project called demo in dev namespace", 1.0},
	}

	for _, tt := range tests {
		analysis := analyzer.Analyze(context.Background(), tt.message, Overrides{})
		assert.Equal(t, tt.wantConfidence, analysis.Confidence, "message: %s", tt.message)

		encoded, err := json.Marshal(analysis)
		require.NoError(t, err)
		assert.Contains(t, string(encoded),
			`"confidence":`+strconv.FormatFloat(tt.wantConfidence, 'g', -1, 64),
			"message: %s", tt.message)
	}
}

func TestRuleAnalyzer_EmptyMessage(t *testing.T) {
	analyzer := newTestRuleAnalyzer(t, testRouterConfig())

	for _, message := range []string{"", "   ", "\n\t"} {
		analysis := analyzer.Analyze(context.Background(), message, Overrides{})

		assert.Equal(t, ActionList, analysis.Action)
		assert.Equal(t, "test", analysis.Namespace)
		assert.Empty(t, analysis.ProjectID)
		assert.Equal(t, 0.0, analysis.Confidence)
		assert.Equal(t, "empty message", analysis.Reasoning)
	}
}

func TestRuleAnalyzer_OverrideDominance(t *testing.T) {
	analyzer := newTestRuleAnalyzer(t, testRouterConfig())

	analysis := analyzer.Analyze(context.Background(), "list projects in prod", Overrides{Namespace: "staging"})

	assert.Equal(t, "staging", analysis.Namespace)
	assert.Contains(t, analysis.Reasoning, `"staging"`)

	analysis = analyzer.Analyze(context.Background(), "create a project", Overrides{ProjectID: "billing"})
	assert.Equal(t, "billing", analysis.ProjectID)
	assert.Contains(t, analysis.Reasoning, `"billing"`)
}

func TestRuleAnalyzer_ExcludedNamespaces(t *testing.T) {
	analyzer := newTestRuleAnalyzer(t, testRouterConfig())

	tests := []struct {
		message       string
		wantNamespace string
	}{
		// Stop-word captures fall through to the default.
		{"show projects in my workspace", "test"},
		{"list everything in the projects namespace", "test"},
		{"list projects in this", "test"},
		// A later pattern can still rescue the real namespace.
		{"list projects in my prod namespace", "prod"},
	}

	for _, tt := range tests {
		analysis := analyzer.Analyze(context.Background(), tt.message, Overrides{})
		assert.Equal(t, tt.wantNamespace, analysis.Namespace, "message: %s", tt.message)
	}
}

func TestRuleAnalyzer_FuzzyMatching(t *testing.T) {
	// Substring matching scores keywords embedded in longer words.
	fuzzyCfg := testRouterConfig()
	fuzzy := newTestRuleAnalyzer(t, fuzzyCfg)

	analysis := fuzzy.Analyze(context.Background(), "getting and showing everything", Overrides{})
	assert.Equal(t, ActionList, analysis.Action)
	assert.GreaterOrEqual(t, analysis.Confidence, 0.8, "two fuzzy hits should raise confidence")

	// Whole-token matching does not.
	tokenCfg := testRouterConfig()
	tokenCfg.FuzzyMatching = config.BoolPtr(false)
	token := newTestRuleAnalyzer(t, tokenCfg)

	analysis = token.Analyze(context.Background(), "getting and showing everything", Overrides{})
	assert.Equal(t, ActionList, analysis.Action)
	assert.Equal(t, 0.7, analysis.Confidence, "no whole-token hits, base confidence only")

	analysis = token.Analyze(context.Background(), "show projects", Overrides{})
	assert.Equal(t, ActionList, analysis.Action)
}

func TestRuleAnalyzer_ProjectIDFallbackPatterns(t *testing.T) {
	analyzer := newTestRuleAnalyzer(t, testRouterConfig())

	tests := []struct {
		message       string
		wantProjectID string
	}{
		{"make a project called shop", "shop"},
		{"add new project inventory", "inventory"},
		{"build the project named api_v2", "api_v2"},
	}

	for _, tt := range tests {
		analysis := analyzer.Analyze(context.Background(), tt.message, Overrides{})
		assert.Equal(t, ActionCreate, analysis.Action, "message: %s", tt.message)
		assert.Equal(t, tt.wantProjectID, analysis.ProjectID, "message: %s", tt.message)
	}
}

func TestRuleAnalyzer_DisabledRule(t *testing.T) {
	cfg := testRouterConfig()
	for i := range cfg.ActionPatterns {
		if cfg.ActionPatterns[i].Name == "create_project" {
			cfg.ActionPatterns[i].Enabled = config.BoolPtr(false)
		}
	}
	analyzer := newTestRuleAnalyzer(t, cfg)

	analysis := analyzer.Analyze(context.Background(), "create project demo", Overrides{})
	assert.Equal(t, ActionList, analysis.Action, "disabled create rule leaves only the list bucket")
}

func TestRuleAnalyzer_RuleWeights(t *testing.T) {
	cfg := testRouterConfig()
	cfg.ActionPatterns = []config.AnalysisRule{
		{Name: "create_heavy", Keywords: []string{"make"}, Weight: 5.0},
		{Name: "list_light", Keywords: []string{"show", "list"}, Weight: 1.0},
	}
	analyzer := newTestRuleAnalyzer(t, cfg)

	analysis := analyzer.Analyze(context.Background(), "make and show and list", Overrides{})
	assert.Equal(t, ActionCreate, analysis.Action, "weighted create hit outscores two list hits")
}

func TestNewRuleAnalyzer_InvalidPattern(t *testing.T) {
	cfg := testRouterConfig()
	cfg.NamespacePatterns = []config.AnalysisRule{
		{Name: "broken", Patterns: []string{"("}},
	}

	_, err := NewRuleAnalyzer(cfg)
	assert.Error(t, err)

	_, err = NewRuleAnalyzer(nil)
	assert.Error(t, err)
}
