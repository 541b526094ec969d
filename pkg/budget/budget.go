// Package budget converts token usage to cost and evaluates budget
// thresholds for workflow runs.
package budget

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/agent"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
)

const (
	DefaultWorkflowBudget = 500_000
	DefaultAgentBudget    = 50_000
	WarningThreshold      = 0.8
)

type rates struct {
	input  float64 // USD per million input tokens
	output float64 // USD per million output tokens
}

// 2025 per-million-token rates.
var tokenCosts = map[agent.ModelTier]rates{
	agent.TierHaiku:  {input: 0.25, output: 1.25},
	agent.TierSonnet: {input: 3.0, output: 15.0},
	agent.TierOpus:   {input: 15.0, output: 75.0},
}

// CalculateCost returns the USD cost for the given token counts. The
// function is linear and additive in both arguments. Unrecognized tiers are
// charged at the sonnet rate.
func CalculateCost(tier agent.ModelTier, inputTokens, outputTokens int64) float64 {
	r, ok := tokenCosts[tier]
	if !ok {
		r = tokenCosts[agent.TierSonnet]
	}
	inputCost := float64(inputTokens) / 1_000_000 * r.input
	outputCost := float64(outputTokens) / 1_000_000 * r.output
	return inputCost + outputCost
}

// ResolveTier parses a model alias like "sonnet" or "claude-opus-4" into a
// tier, defaulting to sonnet when no segment matches.
func ResolveTier(model string) agent.ModelTier {
	for _, part := range strings.Split(strings.ToLower(model), "-") {
		switch agent.ModelTier(part) {
		case agent.TierHaiku, agent.TierSonnet, agent.TierOpus:
			return agent.ModelTier(part)
		}
	}
	return agent.TierSonnet
}

// Logger is the minimal logging interface the accountant needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Accountant records token usage against workflow runs and answers budget
// questions over the accumulated records.
type Accountant struct {
	store  storage.Store
	logger Logger
}

func NewAccountant(store storage.Store, logger Logger) *Accountant {
	return &Accountant{store: store, logger: logger}
}

// RecordUsage appends a usage record and rolls the tokens/cost into the
// workflow run's counters in the same transaction, so the counters never
// diverge from the sum of records. Returns the computed cost.
func (a *Accountant) RecordUsage(workflowID, taskID, agentType, model string, inputTokens, outputTokens int64) (cost float64, err error) {
	tier := ResolveTier(model)
	cost = CalculateCost(tier, inputTokens, outputTokens)

	txStore, err := a.store.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				a.logger.Errorf("Failed to rollback: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			a.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	record := models.UsageRecord{
		WorkflowRunID: workflowID,
		TaskID:        taskID,
		AgentType:     agentType,
		Model:         model,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		CostUSD:       cost,
	}
	if err = txStore.SaveUsage(record); err != nil {
		return 0, errors.Wrapf(err, "failed to record usage for workflow %s", workflowID)
	}
	if err = txStore.AddWorkflowUsage(workflowID, inputTokens+outputTokens, cost); err != nil {
		return 0, errors.Wrapf(err, "failed to update usage totals for workflow %s", workflowID)
	}
	return cost, nil
}

// WorkflowUsage aggregates all usage records of a workflow run.
func (a *Accountant) WorkflowUsage(workflowID string) (models.UsageSummary, error) {
	return a.store.GetWorkflowUsage(workflowID)
}

// CheckBudget reports whether the workflow is within its token budget and
// what fraction is used. Being exactly at the budget counts as NOT within
// budget (used < budget, strictly).
func (a *Accountant) CheckBudget(workflowID string, budget int64) (bool, float64, error) {
	usage, err := a.store.GetWorkflowUsage(workflowID)
	if err != nil {
		return false, 0, err
	}
	if budget <= 0 {
		return usage.TotalTokens < budget, 0, nil
	}
	fraction := float64(usage.TotalTokens) / float64(budget)
	return usage.TotalTokens < budget, fraction, nil
}

// IsBudgetWarning reports whether usage has reached the warning threshold.
func (a *Accountant) IsBudgetWarning(workflowID string, budget int64) (bool, error) {
	_, fraction, err := a.CheckBudget(workflowID, budget)
	if err != nil {
		return false, err
	}
	return fraction >= WarningThreshold, nil
}
