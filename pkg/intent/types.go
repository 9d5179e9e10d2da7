// Package intent extracts structured intent from free-form user messages.
//
// An Analyzer turns a message plus request-level overrides into an Analysis:
// which action the user wants, against which namespace, and (for creation)
// which project. Three strategies exist behind the one interface: an
// LLM-backed strategy using structured output, a deterministic rule strategy
// driven by configured patterns and keywords, and a hybrid that prefers the
// LLM and falls back to rules. Analyzers are total: they never fail a
// request, whatever the input or the LLM's mood.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/stentor/pkg/schema"
)

// Supported actions.
const (
	ActionCreate = "create"
	ActionList   = "list"
)

// Analysis is the structured intent extracted from one user message.
type Analysis struct {
	// Action is what the user wants done: create or list.
	Action string `json:"action" jsonschema:"required,enum=create,enum=list,description=The operation the user is asking for"`

	// Namespace partitions tool operations. Defaults to the configured
	// namespace when the message names none.
	Namespace string `json:"namespace" jsonschema:"description=The namespace the operation targets"`

	// ProjectID is the project to create. Empty for list operations.
	ProjectID string `json:"project_id,omitempty" jsonschema:"description=The project identifier for create operations"`

	// Confidence is the analyzer's certainty in [0,1].
	Confidence float64 `json:"confidence" jsonschema:"required,minimum=0,maximum=1,description=Certainty of this analysis between 0 and 1"`

	// Reasoning is a brief human-readable explanation.
	Reasoning string `json:"reasoning" jsonschema:"description=Brief explanation of how the intent was determined"`
}

// Overrides carries request-level fields that dominate whatever the
// analyzer extracts from the message.
type Overrides struct {
	Namespace string
	ProjectID string
}

// Analyzer extracts intent from a message. Implementations are safe for
// concurrent use and never return an error: any internal failure degrades
// to a lower-fidelity analysis instead.
type Analyzer interface {
	Analyze(ctx context.Context, message string, overrides Overrides) Analysis
}

// analysisSchema constrains LLM structured output to the Analysis shape.
var analysisSchema = schema.MustGenerate[Analysis]()

// applyOverrides merges request-level fields into an analysis. Overridden
// fields win and the reasoning records that they came from the request. A
// namespace still empty afterwards becomes the default.
func applyOverrides(analysis Analysis, overrides Overrides, defaultNamespace string) Analysis {
	var notes []string

	if overrides.Namespace != "" {
		analysis.Namespace = overrides.Namespace
		notes = append(notes, fmt.Sprintf("namespace %q from request", overrides.Namespace))
	}
	if overrides.ProjectID != "" {
		analysis.ProjectID = overrides.ProjectID
		notes = append(notes, fmt.Sprintf("project id %q from request", overrides.ProjectID))
	}

	if len(notes) > 0 {
		analysis.Reasoning += " [overrides: " + strings.Join(notes, ", ") + "]"
	}

	if analysis.Namespace == "" {
		analysis.Namespace = defaultNamespace
	}

	return analysis
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
