package models

// TaskDependency is a directed edge stating that TaskID cannot run before
// DependsOnTaskID has completed. Edges are never mutated after creation.
type TaskDependency struct {
	TaskID          string `json:"task_id" db:"task_id"`
	DependsOnTaskID string `json:"depends_on_task_id" db:"depends_on_task_id"`
}
