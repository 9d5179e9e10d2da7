package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled,omitempty"`
}

func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("stentor")

	agentDuration, err := meter.Float64Histogram(
		"stentor_agent_call_duration_seconds",
		metric.WithDescription("Agent call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}

	agentCalls, err := meter.Int64Counter(
		"stentor_agent_calls_total",
		metric.WithDescription("Total agent calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent calls counter: %w", err)
	}

	agentErrors, err := meter.Int64Counter(
		"stentor_agent_errors_total",
		metric.WithDescription("Total agent errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	agentTokens, err := meter.Int64Counter(
		"stentor_agent_tokens_used_total",
		metric.WithDescription("Total tokens used by agents"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent tokens counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"stentor_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"stentor_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"stentor_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"stentor_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"stentor_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"stentor_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"stentor_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	intentAnalyses, err := meter.Int64Counter(
		"stentor_intent_analyses_total",
		metric.WithDescription("Total intent analyses by strategy and action"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent analyses counter: %w", err)
	}

	intentDuration, err := meter.Float64Histogram(
		"stentor_intent_analysis_duration_seconds",
		metric.WithDescription("Intent analysis duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent duration histogram: %w", err)
	}

	validationChecks, err := meter.Int64Counter(
		"stentor_validation_checks_total",
		metric.WithDescription("Response validation verdicts by check"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation checks counter: %w", err)
	}

	sessionsActive, err := meter.Int64Gauge(
		"stentor_sessions_active",
		metric.WithDescription("Currently held sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions gauge: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"stentor_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"stentor_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return &PrometheusMetrics{
		agentDuration:    agentDuration,
		agentCallsTotal:  agentCalls,
		agentErrorsTotal: agentErrors,
		agentTokensTotal: agentTokens,
		toolDuration:     toolDuration,
		toolCallsTotal:   toolCalls,
		toolErrorsTotal:  toolErrors,
		llmDuration:      llmDuration,
		llmInputTokens:   llmInputTokens,
		llmOutputTokens:  llmOutputTokens,
		llmErrorsTotal:   llmErrors,
		intentAnalyses:   intentAnalyses,
		intentDuration:   intentDuration,
		validationChecks: validationChecks,
		sessionsActive:   sessionsActive,
		httpDuration:     httpDuration,
		httpRequests:     httpRequests,
	}, nil
}
