package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/llms"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// HybridAnalyzer prefers the LLM strategy and falls back to rules when the
// LLM fails or, with a non-zero threshold, when its confidence is too low.
// The fallback runs at most once per request; there are no retries.
type HybridAnalyzer struct {
	primary          *llmStrategy
	fallback         *RuleAnalyzer
	threshold        float64
	defaultNamespace string
}

// NewHybridAnalyzer composes the LLM strategy with a rule fallback. A zero
// threshold disables the confidence gate, leaving only hard failures to
// trigger the fallback.
func NewHybridAnalyzer(provider llms.StructuredOutputProvider, fallback *RuleAnalyzer, threshold float64, defaultNamespace string) *HybridAnalyzer {
	return &HybridAnalyzer{
		primary:          newLLMStrategy(provider, defaultNamespace),
		fallback:         fallback,
		threshold:        threshold,
		defaultNamespace: defaultNamespace,
	}
}

// Analyze extracts intent, falling back to rules on any primary failure,
// and merges request overrides.
func (a *HybridAnalyzer) Analyze(ctx context.Context, message string, overrides Overrides) Analysis {
	startTime := time.Now()

	tracer := observability.GetTracer("stentor.intent")
	ctx, span := tracer.Start(ctx, observability.SpanIntentAnalysis)
	defer span.End()

	analysis, strategy := a.analyze(ctx, message)
	analysis = applyOverrides(analysis, overrides, a.defaultNamespace)

	span.SetAttributes(
		attribute.String(observability.AttrIntentStrategy, strategy),
		attribute.String(observability.AttrIntentAction, analysis.Action),
		attribute.String(observability.AttrIntentNamespace, analysis.Namespace),
	)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordIntentAnalysis(ctx, strategy, analysis.Action, time.Since(startTime))
	}

	return analysis
}

func (a *HybridAnalyzer) analyze(ctx context.Context, message string) (Analysis, string) {
	if strings.TrimSpace(message) == "" {
		return a.fallback.analyze(message), config.StrategyRules
	}

	analysis, err := a.primary.analyze(ctx, message)
	if err != nil {
		slog.Debug("LLM intent analysis failed, using rules", "error", err)
		analysis = a.fallback.analyze(message)
		analysis.Reasoning += " (LLM unavailable)"
		return analysis, config.StrategyRules
	}

	if a.threshold > 0 && analysis.Confidence < a.threshold {
		slog.Debug("LLM intent confidence below threshold, using rules",
			"confidence", analysis.Confidence,
			"threshold", a.threshold,
		)
		llmConfidence := analysis.Confidence
		analysis = a.fallback.analyze(message)
		analysis.Reasoning += fmt.Sprintf(" (LLM confidence %.2f below threshold)", llmConfidence)
		return analysis, config.StrategyRules
	}

	return analysis, config.StrategyLLM
}
