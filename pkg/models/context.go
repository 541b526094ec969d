package models

import "time"

// TaskContext is the serialized input handed to the agent executing a task,
// persisted for auditability before the agent is invoked.
type TaskContext struct {
	TaskID        string    `json:"task_id" db:"task_id"`
	Context       string    `json:"context_xml" db:"context_xml"`
	ContextTokens int       `json:"context_tokens" db:"context_tokens"` // Estimated, not billed
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TaskOutput is what a completed task produced; downstream tasks consume the
// summary through the context windower.
type TaskOutput struct {
	TaskID     string    `json:"task_id" db:"task_id"`
	Output     string    `json:"output_xml" db:"output_xml"`
	Summary    string    `json:"summary" db:"summary"`
	TokensUsed int64     `json:"tokens_used" db:"tokens_used"`
	ModelUsed  string    `json:"model_used" db:"model_used"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
