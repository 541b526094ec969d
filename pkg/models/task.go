package models

import "time"

type TaskStatus string

const (
	PendingTaskStatus   TaskStatus = "pending"
	AssignedTaskStatus  TaskStatus = "assigned"
	RunningTaskStatus   TaskStatus = "running"
	CompletedTaskStatus TaskStatus = "completed"
	FailedTaskStatus    TaskStatus = "failed"
	BlockedTaskStatus   TaskStatus = "blocked"
)

type TaskPriority string

const (
	LowTaskPriority    TaskPriority = "low"
	MediumTaskPriority TaskPriority = "medium"
	HighTaskPriority   TaskPriority = "high"
)

// Task is one unit of work assigned to an agent type within a stage. Tasks
// are created either at workflow start (the seed task) or dynamically by a
// completed task's output, so the dependency graph grows during execution.
type Task struct {
	ID              string       `json:"id" db:"id"`
	WorkflowRunID   string       `json:"workflow_run_id" db:"workflow_run_id"`
	StageID         string       `json:"stage_id,omitempty" db:"stage_id"` // Empty when not bound to a stage
	Title           string       `json:"title" db:"title"`
	Description     string       `json:"description" db:"description"`
	AgentType       string       `json:"agent_type" db:"agent_type"` // Executor-type selector; unknown values resolve via fallback
	Priority        TaskPriority `json:"priority" db:"priority"`
	Status          TaskStatus   `json:"status" db:"status"`
	TokensUsed      int64        `json:"tokens_used" db:"tokens_used"`
	ExecutionTimeMS int64        `json:"execution_time_ms" db:"execution_time_ms"`
	ErrorMsg        string       `json:"error,omitempty" db:"error_msg"`
	CreatedBy       string       `json:"created_by" db:"created_by"` // Agent type or "user"
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}
