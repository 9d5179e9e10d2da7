package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/stentor/pkg/llms"
)

const systemPromptTemplate = `You analyze user messages about project management and extract structured intent.

Actions:
- "create": the user wants to make something new (create, new, add, make)
- "list": the user wants to see existing things (list, show, display, view, get)

Namespace: look for phrases like "in X", "in the X namespace", or "X namespace".
When the message names no namespace, use %q.

For create requests, extract the project name when the message gives one.

Respond with the action, the namespace, the project id if any, a confidence
between 0 and 1, and one short sentence of reasoning.`

// llmStrategy asks a structured-output capable model for the analysis.
// Any failure, from transport to a reply that does not fit the schema, is
// reported as an error; nothing is salvaged from malformed output.
type llmStrategy struct {
	provider         llms.StructuredOutputProvider
	defaultNamespace string
	systemPrompt     string
}

func newLLMStrategy(provider llms.StructuredOutputProvider, defaultNamespace string) *llmStrategy {
	return &llmStrategy{
		provider:         provider,
		defaultNamespace: defaultNamespace,
		systemPrompt:     fmt.Sprintf(systemPromptTemplate, defaultNamespace),
	}
}

func (s *llmStrategy) analyze(ctx context.Context, message string) (Analysis, error) {
	messages := []llms.Message{
		llms.SystemMessage(s.systemPrompt),
		llms.UserMessage(message),
	}

	structConfig := &llms.StructuredOutputConfig{
		Format: "json",
		Schema: analysisSchema,
	}

	text, _, _, err := s.provider.GenerateStructured(ctx, messages, nil, structConfig)
	if err != nil {
		return Analysis{}, fmt.Errorf("structured generation failed: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("malformed structured output: %w", err)
	}

	if analysis.Action != ActionCreate && analysis.Action != ActionList {
		return Analysis{}, fmt.Errorf("structured output has unknown action %q", analysis.Action)
	}

	if analysis.Namespace == "" {
		analysis.Namespace = s.defaultNamespace
	}
	analysis.Confidence = clampConfidence(analysis.Confidence)

	return analysis, nil
}
