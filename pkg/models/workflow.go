package models

import "time"

type WorkflowStatus string

const (
	PendingWorkflowStatus   WorkflowStatus = "pending"
	RunningWorkflowStatus   WorkflowStatus = "running"
	PausedWorkflowStatus    WorkflowStatus = "paused"
	CompletedWorkflowStatus WorkflowStatus = "completed"
	FailedWorkflowStatus    WorkflowStatus = "failed"
	CancelledWorkflowStatus WorkflowStatus = "cancelled"
)

// Terminal reports whether no further transitions leave this status.
func (s WorkflowStatus) Terminal() bool {
	return s == CompletedWorkflowStatus || s == FailedWorkflowStatus || s == CancelledWorkflowStatus
}

// WorkflowRun is one end-to-end execution of a stage template against a
// user-supplied description. Counters mirror the sum of the run's usage
// records; they are updated in the same transaction that appends a record.
type WorkflowRun struct {
	ID               string          `json:"id" db:"id"` // Opaque unique identifier (e.g., "wf_20250101_120000_a1b2c3d4")
	WorkflowType     string          `json:"workflow_type" db:"workflow_type"`
	Description      string          `json:"description" db:"description"`
	Status           WorkflowStatus  `json:"status" db:"status"`
	TotalTokensUsed  int64           `json:"total_tokens_used" db:"total_tokens_used"`
	EstimatedCostUSD float64         `json:"estimated_cost_usd" db:"estimated_cost_usd"`
	ErrorMsg         string          `json:"error,omitempty" db:"error_msg"`
	StartedAt        *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
	Stages           []StageInstance `json:"stages,omitempty"` // Populated at runtime
}
