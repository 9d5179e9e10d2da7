package intent

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/llms"
)

// New builds an analyzer for the configured strategy. The llm strategy is
// the hybrid analyzer without a confidence gate: per contract even a pure
// LLM analyzer degrades to rules rather than failing the request.
func New(cfg *config.RouterConfig, provider llms.StructuredOutputProvider) (Analyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("router config is required")
	}

	rules, err := NewRuleAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	strategy := strings.ToLower(strings.TrimSpace(cfg.Strategy))

	if strategy != config.StrategyRules && provider == nil {
		slog.Warn("No structured-output provider available, using rule-based intent analysis",
			"strategy", strategy,
		)
		return rules, nil
	}

	switch strategy {
	case config.StrategyRules:
		return rules, nil
	case config.StrategyLLM:
		return NewHybridAnalyzer(provider, rules, 0, cfg.DefaultNamespace), nil
	case config.StrategyHybrid, "":
		return NewHybridAnalyzer(provider, rules, cfg.ConfidenceThreshold, cfg.DefaultNamespace), nil
	default:
		return nil, fmt.Errorf("unsupported analysis strategy: %s (supported: llm, rules, hybrid)", cfg.Strategy)
	}
}
