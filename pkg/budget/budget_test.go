package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignatij/agentflow/internal/log"
	"github.com/ignatij/agentflow/pkg/agent"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
)

func TestCalculateCost(t *testing.T) {
	t.Run("haiku", func(t *testing.T) {
		cost := CalculateCost(agent.TierHaiku, 1_000_000, 1_000_000)
		assert.InDelta(t, 0.25+1.25, cost, 1e-9)
	})
	t.Run("sonnet", func(t *testing.T) {
		cost := CalculateCost(agent.TierSonnet, 1_000_000, 1_000_000)
		assert.InDelta(t, 3.0+15.0, cost, 1e-9)
	})
	t.Run("opus", func(t *testing.T) {
		cost := CalculateCost(agent.TierOpus, 1_000_000, 1_000_000)
		assert.InDelta(t, 15.0+75.0, cost, 1e-9)
	})
	t.Run("zero tokens cost nothing", func(t *testing.T) {
		assert.Zero(t, CalculateCost(agent.TierOpus, 0, 0))
	})
	t.Run("linear in token count", func(t *testing.T) {
		one := CalculateCost(agent.TierSonnet, 1000, 500)
		ten := CalculateCost(agent.TierSonnet, 10_000, 5000)
		assert.InDelta(t, one*10, ten, 1e-9)
	})
	t.Run("additive across calls", func(t *testing.T) {
		whole := CalculateCost(agent.TierSonnet, 3000, 900)
		parts := CalculateCost(agent.TierSonnet, 1000, 300) + CalculateCost(agent.TierSonnet, 2000, 600)
		assert.InDelta(t, whole, parts, 1e-9)
	})
	t.Run("unknown tier falls back to sonnet rates", func(t *testing.T) {
		assert.Equal(t, CalculateCost(agent.TierSonnet, 1000, 1000), CalculateCost(agent.ModelTier("gpt"), 1000, 1000))
	})
}

func TestResolveTier(t *testing.T) {
	tests := []struct {
		model string
		want  agent.ModelTier
	}{
		{"haiku", agent.TierHaiku},
		{"sonnet", agent.TierSonnet},
		{"opus", agent.TierOpus},
		{"claude-opus-4", agent.TierOpus},
		{"claude-3-5-haiku-latest", agent.TierHaiku},
		{"OPUS", agent.TierOpus},
		{"gpt-4", agent.TierSonnet},
		{"", agent.TierSonnet},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveTier(tt.model), "model %q", tt.model)
	}
}

func TestRecordUsage(t *testing.T) {
	store := storage.NewMockStore()
	logger := log.GetLogger()
	acc := NewAccountant(store, logger)

	err := store.SaveWorkflow(models.WorkflowRun{ID: "wf_1", WorkflowType: "fix_bug", Status: models.PendingWorkflowStatus})
	assert.NoError(t, err)

	cost, err := acc.RecordUsage("wf_1", "t1", "PM", "sonnet", 1_000_000, 0)
	assert.NoError(t, err)
	assert.InDelta(t, 3.0, cost, 1e-9)

	cost, err = acc.RecordUsage("wf_1", "t2", "ARCH", "opus", 0, 1_000_000)
	assert.NoError(t, err)
	assert.InDelta(t, 75.0, cost, 1e-9)

	// The run counters track the sum of the records
	wf, err := store.GetWorkflow("wf_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2_000_000), wf.TotalTokensUsed)
	assert.InDelta(t, 78.0, wf.EstimatedCostUSD, 1e-9)

	sum, err := acc.WorkflowUsage("wf_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1_000_000), sum.TotalInput)
	assert.Equal(t, int64(1_000_000), sum.TotalOutput)
	assert.Equal(t, int64(2_000_000), sum.TotalTokens)
	assert.InDelta(t, 78.0, sum.TotalCost, 1e-9)
}

func TestCheckBudget(t *testing.T) {
	store := storage.NewMockStore()
	acc := NewAccountant(store, log.GetLogger())
	assert.NoError(t, store.SaveWorkflow(models.WorkflowRun{ID: "wf_1", WorkflowType: "fix_bug"}))

	t.Run("under budget", func(t *testing.T) {
		_, err := acc.RecordUsage("wf_1", "t1", "PM", "sonnet", 500, 499)
		assert.NoError(t, err)
		within, fraction, err := acc.CheckBudget("wf_1", 1000)
		assert.NoError(t, err)
		assert.True(t, within)
		assert.InDelta(t, 0.999, fraction, 1e-9)
	})

	t.Run("exactly at budget is not within", func(t *testing.T) {
		_, err := acc.RecordUsage("wf_1", "t2", "PM", "sonnet", 1, 0)
		assert.NoError(t, err)
		within, fraction, err := acc.CheckBudget("wf_1", 1000)
		assert.NoError(t, err)
		assert.False(t, within)
		assert.InDelta(t, 1.0, fraction, 1e-9)
	})

	t.Run("warning threshold", func(t *testing.T) {
		warn, err := acc.IsBudgetWarning("wf_1", 10_000)
		assert.NoError(t, err)
		assert.False(t, warn)

		warn, err = acc.IsBudgetWarning("wf_1", 1250) // 1000/1250 = 0.8
		assert.NoError(t, err)
		assert.True(t, warn)
	})

	t.Run("non-positive budget reports zero fraction", func(t *testing.T) {
		within, fraction, err := acc.CheckBudget("wf_1", 0)
		assert.NoError(t, err)
		assert.False(t, within)
		assert.Zero(t, fraction)
	})
}
