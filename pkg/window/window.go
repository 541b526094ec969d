// Package window bounds how much dependency output is injected into a
// task's input context, trading completeness for a hard size ceiling.
package window

import "strings"

// Default character budgets for context assembly.
const (
	DefaultMaxCharsPerDependency = 8000
	DefaultMaxTotalContextChars  = 32000
	DefaultSummaryTargetChars    = 1000
)

// Limits are the character budgets applied during windowing. They are passed
// explicitly by the caller; there is no package-level configuration.
type Limits struct {
	PerDependency int // Cap applied to each dependency output individually
	TotalContext  int // Cumulative cap across all dependency outputs
	SummaryTarget int // Minimum budget worth truncating into
}

// DefaultLimits returns the standard budgets.
func DefaultLimits() Limits {
	return Limits{
		PerDependency: DefaultMaxCharsPerDependency,
		TotalContext:  DefaultMaxTotalContextChars,
		SummaryTarget: DefaultSummaryTargetChars,
	}
}

// DependencyOutput is one completed predecessor's contribution to a task's
// input context.
type DependencyOutput struct {
	TaskID    string
	AgentType string
	Output    string
}

// EstimateTokens estimates token count from text, roughly 4 characters per
// token. Used only for local budgeting, never for billing.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// TruncateToSummary truncates text to at most targetChars, preferring to cut
// at the last sentence-terminating period, but only when that period falls
// past half the target (an early period would over-truncate). Otherwise the
// raw cut gets an ellipsis marker.
func TruncateToSummary(text string, targetChars int) string {
	if len(text) <= targetChars {
		return text
	}
	truncated := text[:targetChars]
	lastPeriod := strings.LastIndex(truncated, ".")
	if lastPeriod > targetChars/2 {
		return truncated[:lastPeriod+1]
	}
	return truncated + "..."
}

// Apply enforces the per-item and aggregate character budgets over
// dependency outputs, in input order. Each output is capped individually
// first; if adding it would still exceed the total budget it is truncated
// to the remaining budget when that remainder exceeds the summary target,
// and dropped entirely otherwise. Later dependencies are therefore more
// likely to be dropped than earlier ones; there is no fairness reordering.
func Apply(deps []DependencyOutput, limits Limits) []DependencyOutput {
	totalChars := 0
	windowed := make([]DependencyOutput, 0, len(deps))

	for _, dep := range deps {
		output := dep.Output

		if len(output) > limits.PerDependency {
			output = TruncateToSummary(output, limits.PerDependency)
		}

		if totalChars+len(output) > limits.TotalContext {
			remaining := limits.TotalContext - totalChars
			if remaining <= limits.SummaryTarget {
				// Budget exhausted, drop this dependency
				continue
			}
			output = TruncateToSummary(output, remaining)
		}

		dep.Output = output
		windowed = append(windowed, dep)
		totalChars += len(output)
	}

	return windowed
}
