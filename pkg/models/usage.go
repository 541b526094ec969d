package models

import "time"

// UsageRecord is an immutable, append-only fact about one agent invocation.
// Records are never updated or deleted; totals are aggregated on read.
type UsageRecord struct {
	ID            int64     `json:"id" db:"id"`
	WorkflowRunID string    `json:"workflow_run_id" db:"workflow_run_id"`
	TaskID        string    `json:"task_id" db:"task_id"`
	AgentType     string    `json:"agent_type" db:"agent_type"`
	Model         string    `json:"model" db:"model"`
	InputTokens   int64     `json:"input_tokens" db:"input_tokens"`
	OutputTokens  int64     `json:"output_tokens" db:"output_tokens"`
	CostUSD       float64   `json:"cost_usd" db:"cost_usd"`
	RecordedAt    time.Time `json:"recorded_at" db:"recorded_at"`
}

// UsageSummary aggregates the usage records of one workflow run.
type UsageSummary struct {
	TotalInput  int64   `json:"total_input" db:"total_input"`
	TotalOutput int64   `json:"total_output" db:"total_output"`
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost" db:"total_cost"`
}
