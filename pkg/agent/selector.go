package agent

import "strings"

// Complexity buckets used by the model selector.
const (
	LowComplexity    = "low"
	MediumComplexity = "medium"
	HighComplexity   = "high"
)

var highIndicators = []string{
	"architecture", "design system", "security", "scale",
	"performance", "complex", "integration", "migrate",
}

var lowIndicators = []string{
	"simple", "basic", "update", "fix typo", "rename", "minor",
}

// SelectModel picks a model tier for a task, starting from the agent's
// default tier and adjusting for remaining budget and task complexity.
// budgetRemaining is the fraction of the workflow budget still unspent.
func (r Registry) SelectModel(t Type, complexity string, budgetRemaining float64) ModelTier {
	def := r.ModelFor(t)

	if budgetRemaining < 0.2 {
		return TierHaiku
	}
	if budgetRemaining < 0.5 && complexity != HighComplexity {
		if def == TierOpus {
			return TierSonnet
		}
		return def
	}
	if complexity == HighComplexity && def == TierSonnet && budgetRemaining > 0.7 {
		return TierOpus
	}
	return def
}

// EstimateComplexity classifies a task by keyword heuristics over its title
// and description.
func EstimateComplexity(title, description string) string {
	text := strings.ToLower(description + " " + title)
	for _, ind := range highIndicators {
		if strings.Contains(text, ind) {
			return HighComplexity
		}
	}
	for _, ind := range lowIndicators {
		if strings.Contains(text, ind) {
			return LowComplexity
		}
	}
	return MediumComplexity
}
