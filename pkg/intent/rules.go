package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// RuleAnalyzer extracts intent deterministically from configured patterns
// and keywords. All rules are compiled at construction; the analyzer is
// immutable afterwards and safe to share without locks.
type RuleAnalyzer struct {
	defaultNamespace string
	fuzzy            bool
	excluded         map[string]bool
	namespaceRules   []compiledRule
	actionRules      []compiledRule
}

type compiledRule struct {
	name     string
	keywords []string
	weight   float64
	patterns []*regexp.Regexp
	create   bool
}

// Patterns tried for a project id when the create-oriented rules capture
// nothing.
var fallbackProjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`create (?:project )?(?:called |named )?([a-z][a-z0-9_-]+)`),
	regexp.MustCompile(`new project (?:called |named )?([a-z][a-z0-9_-]*)`),
	regexp.MustCompile(`project (?:called |named )?([a-z][a-z0-9_-]*)`),
}

// NewRuleAnalyzer compiles the configured rule sets.
func NewRuleAnalyzer(cfg *config.RouterConfig) (*RuleAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("router config is required")
	}

	excluded := make(map[string]bool, len(cfg.ExcludedNamespaces))
	for _, ns := range cfg.ExcludedNamespaces {
		excluded[strings.ToLower(ns)] = true
	}

	namespaceRules, err := compileRules(cfg.NamespacePatterns)
	if err != nil {
		return nil, fmt.Errorf("namespace_patterns: %w", err)
	}
	actionRules, err := compileRules(cfg.ActionPatterns)
	if err != nil {
		return nil, fmt.Errorf("action_patterns: %w", err)
	}

	return &RuleAnalyzer{
		defaultNamespace: cfg.DefaultNamespace,
		fuzzy:            config.BoolValue(cfg.FuzzyMatching, true),
		excluded:         excluded,
		namespaceRules:   namespaceRules,
		actionRules:      actionRules,
	}, nil
}

func compileRules(rules []config.AnalysisRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))

	for _, rule := range rules {
		if !rule.IsEnabled() {
			continue
		}

		cr := compiledRule{
			name:   rule.Name,
			weight: rule.Weight,
			create: strings.Contains(strings.ToLower(rule.Name), ActionCreate),
		}
		for _, keyword := range rule.Keywords {
			cr.keywords = append(cr.keywords, strings.ToLower(keyword))
		}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", rule.Name, pattern, err)
			}
			cr.patterns = append(cr.patterns, re)
		}

		compiled = append(compiled, cr)
	}

	return compiled, nil
}

// Analyze extracts intent from the message and merges request overrides.
func (a *RuleAnalyzer) Analyze(ctx context.Context, message string, overrides Overrides) Analysis {
	startTime := time.Now()

	tracer := observability.GetTracer("stentor.intent")
	ctx, span := tracer.Start(ctx, observability.SpanIntentAnalysis,
		trace.WithAttributes(attribute.String(observability.AttrIntentStrategy, config.StrategyRules)),
	)
	defer span.End()

	analysis := applyOverrides(a.analyze(message), overrides, a.defaultNamespace)

	span.SetAttributes(
		attribute.String(observability.AttrIntentAction, analysis.Action),
		attribute.String(observability.AttrIntentNamespace, analysis.Namespace),
	)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordIntentAnalysis(ctx, config.StrategyRules, analysis.Action, time.Since(startTime))
	}

	return analysis
}

// analyze runs the extraction without override merging. The hybrid analyzer
// calls this directly so it can annotate the reasoning before the merge.
func (a *RuleAnalyzer) analyze(message string) Analysis {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return Analysis{
			Action:     ActionList,
			Namespace:  a.defaultNamespace,
			Confidence: 0.0,
			Reasoning:  "empty message",
		}
	}

	lower := strings.ToLower(trimmed)

	action, maxScore := a.scoreActions(lower)
	namespace, explicit := a.extractNamespace(lower)
	if namespace == "" {
		namespace = a.defaultNamespace
	}

	var projectID string
	if action == ActionCreate {
		projectID = a.extractProjectID(lower)
	}

	// Confidence is tallied in integer tenths and converted once, so the
	// reported value is a nominal 0.7, 0.8, 0.9 or 1.0.
	tenths := 7
	if maxScore > 1 {
		tenths++
	}
	if explicit {
		tenths++
	}
	if action == ActionCreate && projectID != "" {
		tenths++
	}
	confidence := float64(tenths) / 10

	nsNote := "default"
	if explicit {
		nsNote = "from message"
	}
	reasoning := fmt.Sprintf("rule analysis: action %q (score %.1f), namespace %q (%s)", action, maxScore, namespace, nsNote)
	if action == ActionCreate {
		if projectID != "" {
			reasoning += fmt.Sprintf(", project %q", projectID)
		} else {
			reasoning += ", no project id found"
		}
	}

	return Analysis{
		Action:     action,
		Namespace:  namespace,
		ProjectID:  projectID,
		Confidence: clampConfidence(confidence),
		Reasoning:  reasoning,
	}
}

// scoreActions accumulates keyword hits per action bucket and returns the
// winning action with the winning score. Ties break to list.
func (a *RuleAnalyzer) scoreActions(lower string) (string, float64) {
	var tokens map[string]bool
	if !a.fuzzy {
		tokens = tokenize(lower)
	}

	var createScore, listScore float64
	for _, rule := range a.actionRules {
		hits := 0
		for _, keyword := range rule.keywords {
			if a.fuzzy {
				if strings.Contains(lower, keyword) {
					hits++
				}
			} else if tokens[keyword] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		score := float64(hits) * rule.weight
		if rule.create {
			createScore += score
		} else {
			listScore += score
		}
	}

	if createScore > listScore {
		return ActionCreate, createScore
	}
	return ActionList, listScore
}

// extractNamespace tries namespace rules in configured order and returns
// the first capture that is not an excluded stop-word.
func (a *RuleAnalyzer) extractNamespace(lower string) (string, bool) {
	for _, rule := range a.namespaceRules {
		for _, pattern := range rule.patterns {
			match := pattern.FindStringSubmatch(lower)
			if len(match) < 2 || match[1] == "" {
				continue
			}
			if a.excluded[match[1]] {
				continue
			}
			return match[1], true
		}
	}
	return "", false
}

// extractProjectID reuses the create-oriented rules' patterns, then the
// fallback patterns.
func (a *RuleAnalyzer) extractProjectID(lower string) string {
	for _, rule := range a.actionRules {
		if !rule.create {
			continue
		}
		for _, pattern := range rule.patterns {
			match := pattern.FindStringSubmatch(lower)
			if len(match) > 1 && match[1] != "" {
				return match[1]
			}
		}
	}

	for _, pattern := range fallbackProjectPatterns {
		match := pattern.FindStringSubmatch(lower)
		if len(match) > 1 && match[1] != "" {
			return match[1]
		}
	}

	return ""
}

func tokenize(lower string) map[string]bool {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})

	tokens := make(map[string]bool, len(fields))
	for _, field := range fields {
		tokens[field] = true
	}
	return tokens
}
