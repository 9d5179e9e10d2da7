// Package validation decides whether a model reply actually performed the
// requested work or has to be redone through manual tool execution.
package validation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// Check names, used in logs and metric labels.
const (
	checkTemplate        = "template_response"
	checkInability       = "inability_phrase"
	checkTooShort        = "too_short"
	checkHallucination   = "hallucination"
	checkSuspiciousCount = "suspicious_count"

	checkPassed = "none"
)

// Substrings that mark a message as a count query.
var countTriggers = []string{"how many", "count", "number of", "total"}

// Validator inspects replies against the original message. It is compiled
// once from configuration and stateless per call, so one instance serves
// all requests without locking.
type Validator struct {
	enabled           bool
	minResponseLength int

	triggerKeywords []string
	templates       []string
	inabilities     []string
	hallucinations  []string

	hallucinationCheck bool
	countCheck         bool
}

// New compiles a validator from configuration. All indicator lists are
// lowercased once here; checks are case-insensitive substring tests.
func New(cfg *config.ValidationConfig) *Validator {
	return &Validator{
		enabled:            config.BoolValue(cfg.Enabled, true),
		minResponseLength:  cfg.MinResponseLength,
		triggerKeywords:    lowerAll(cfg.TriggerKeywords),
		templates:          lowerAll(cfg.TemplateIndicators),
		inabilities:        lowerAll(cfg.InabilityPhrases),
		hallucinations:     lowerAll(cfg.HallucinationIndicators),
		hallucinationCheck: config.BoolValue(cfg.EnableHallucinationDetection, true),
		countCheck:         config.BoolValue(cfg.EnableCountQueryValidation, true),
	}
}

// IsToolRelated reports whether the message contains any trigger keyword.
// Messages that are not tool-related are never validated.
func (v *Validator) IsToolRelated(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range v.triggerKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// NeedsManualExecution applies the ordered checks to the reply and reports
// whether the work has to be redone. The first matching check short-circuits
// and is logged by name.
func (v *Validator) NeedsManualExecution(ctx context.Context, reply, message string) bool {
	if !v.enabled || !v.IsToolRelated(message) {
		return false
	}

	check := v.failedCheck(reply, message)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordValidation(ctx, check, check != checkPassed)
	}

	if check == checkPassed {
		return false
	}

	slog.Info("Reply flagged for manual tool execution",
		"check", check,
		"reply_length", len(reply),
	)
	return true
}

// failedCheck returns the name of the first check the reply fails, in the
// fixed order: template, inability, length, hallucination, count.
func (v *Validator) failedCheck(reply, message string) string {
	lowerReply := strings.ToLower(reply)

	if containsAny(lowerReply, v.templates) {
		return checkTemplate
	}

	if containsAny(lowerReply, v.inabilities) {
		return checkInability
	}

	if len(strings.TrimSpace(reply)) < v.minResponseLength {
		return checkTooShort
	}

	if v.hallucinationCheck && containsAny(lowerReply, v.hallucinations) {
		return checkHallucination
	}

	if v.countCheck && v.isSuspiciousCountAnswer(lowerReply, message) {
		return checkSuspiciousCount
	}

	return checkPassed
}

// isSuspiciousCountAnswer flags numeric answers to count queries that do
// not carry the tool's "found" phrasing: the model very likely invented
// the number.
func (v *Validator) isSuspiciousCountAnswer(lowerReply, message string) bool {
	lowerMessage := strings.ToLower(message)
	if !containsAny(lowerMessage, countTriggers) {
		return false
	}

	return strings.ContainsAny(lowerReply, "0123456789") &&
		!strings.Contains(lowerReply, "found")
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	lowered := make([]string, len(values))
	for i, value := range values {
		lowered[i] = strings.ToLower(value)
	}
	return lowered
}
