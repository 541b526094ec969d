package models

import "time"

type StageStatus string

const (
	PendingStageStatus   StageStatus = "pending"
	RunningStageStatus   StageStatus = "running"
	CompletedStageStatus StageStatus = "completed"
	FailedStageStatus    StageStatus = "failed"
	SkippedStageStatus   StageStatus = "skipped"
)

// StageInstance is one ordered phase of a WorkflowRun. Order is unique within
// the run and defines execution order; transitions only move forward, so a
// completed stage is never re-run (this is what makes resume idempotent).
type StageInstance struct {
	ID            string      `json:"id" db:"id"` // "<workflow_id>_stage_NN"
	WorkflowRunID string      `json:"workflow_run_id" db:"workflow_run_id"`
	Name          string      `json:"stage_name" db:"stage_name"`
	Order         int         `json:"stage_order" db:"stage_order"` // Zero-based
	Parallel      bool        `json:"parallel" db:"parallel"`       // Tasks within the stage fan out concurrently
	Status        StageStatus `json:"status" db:"status"`
	StartedAt     *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}
