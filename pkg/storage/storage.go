package storage

import (
	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/models"
)

var (
	// ErrNotFound is returned on any workflow/stage/task lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTask is returned when a task id already exists.
	ErrDuplicateTask = errors.New("task already exists")
)

// Store defines the persistence operations for agentflow. Begin returns a
// transactional view of the same interface; one transaction per logical
// status update is the expected discipline.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Workflow run operations
	SaveWorkflow(w models.WorkflowRun) error
	GetWorkflow(id string) (models.WorkflowRun, error)
	ListWorkflows(status models.WorkflowStatus, limit int) ([]models.WorkflowRun, error)
	LatestWorkflow() (models.WorkflowRun, error)
	UpdateWorkflowStatus(id string, status models.WorkflowStatus, errorMsg string) error
	AddWorkflowUsage(id string, tokens int64, cost float64) error

	// Stage operations
	SaveStage(s models.StageInstance) error
	GetStage(id string) (models.StageInstance, error)
	GetWorkflowStages(workflowID string) ([]models.StageInstance, error)
	UpdateStageStatus(id string, status models.StageStatus) error

	// Task operations
	SaveTask(t models.Task) error
	GetTask(id string) (models.Task, error)
	GetWorkflowTasks(workflowID string, status models.TaskStatus) ([]models.Task, error)
	GetStageTasks(stageID string, status models.TaskStatus) ([]models.Task, error)
	UpdateTaskStatus(id string, status models.TaskStatus, errorMsg string) error
	UpdateTaskUsage(id string, tokens int64, executionTimeMS int64) error

	// Dependency operations
	SaveDependency(d models.TaskDependency) error
	GetDependencies(taskID string) ([]string, error)
	GetWorkflowDependencies(workflowID string) ([]models.TaskDependency, error)

	// Usage records
	SaveUsage(u models.UsageRecord) error
	GetWorkflowUsage(workflowID string) (models.UsageSummary, error)

	// Task context and output
	SaveTaskContext(c models.TaskContext) error
	GetTaskContext(taskID string) (models.TaskContext, error)
	SaveTaskOutput(o models.TaskOutput) error
	GetTaskOutput(taskID string) (models.TaskOutput, error)
}
