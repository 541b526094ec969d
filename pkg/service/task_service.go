package service

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
)

// TaskService owns task and dependency records and computes runnability.
type TaskService struct {
	store  storage.Store
	logger Logger
}

func NewTaskService(store storage.Store, logger Logger) *TaskService {
	return &TaskService{store: store, logger: logger}
}

// CreateTask inserts a task in pending status. Fails when the id already
// exists.
func (ts *TaskService) CreateTask(t models.Task) (err error) {
	if t.ID == "" {
		return errors.New("empty task id")
	}
	if t.Status == "" {
		t.Status = models.PendingTaskStatus
	}
	if t.Priority == "" {
		t.Priority = models.MediumTaskPriority
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	txStore, err := ts.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ts.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.SaveTask(t); err != nil {
		return errors.Wrapf(err, "failed to save task %s", t.ID)
	}
	ts.logger.Infof("Created task %s for workflow %s", t.ID, t.WorkflowRunID)
	return nil
}

// AddDependency inserts a dependency edge. Adding the same edge twice is a
// no-op; a task depending on itself is rejected.
func (ts *TaskService) AddDependency(taskID, dependsOnTaskID string) error {
	if taskID == dependsOnTaskID {
		return errors.Errorf("task %s cannot depend on itself", taskID)
	}
	dep := models.TaskDependency{TaskID: taskID, DependsOnTaskID: dependsOnTaskID}
	if err := ts.store.SaveDependency(dep); err != nil {
		return errors.Wrapf(err, "failed to save dependency %s -> %s", taskID, dependsOnTaskID)
	}
	return nil
}

// Dependencies returns the ids of the tasks the given task depends on.
func (ts *TaskService) Dependencies(taskID string) ([]string, error) {
	return ts.store.GetDependencies(taskID)
}

// RunnableTasks returns every pending task of the workflow whose
// dependencies have all completed. A task with no dependencies is trivially
// runnable. The result is computed fresh on every call and sorted by
// creation order, which is the processing order for sequential stages.
func (ts *TaskService) RunnableTasks(workflowID string) ([]models.Task, error) {
	all, err := ts.store.GetWorkflowTasks(workflowID, "")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tasks for workflow %s", workflowID)
	}
	deps, err := ts.store.GetWorkflowDependencies(workflowID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list dependencies for workflow %s", workflowID)
	}

	statusByID := make(map[string]models.TaskStatus, len(all))
	for _, t := range all {
		statusByID[t.ID] = t.Status
	}
	blockedBy := make(map[string][]string)
	for _, d := range deps {
		blockedBy[d.TaskID] = append(blockedBy[d.TaskID], d.DependsOnTaskID)
	}

	runnable := []models.Task{}
	for _, t := range all {
		if t.Status != models.PendingTaskStatus {
			continue
		}
		ready := true
		for _, depID := range blockedBy[t.ID] {
			// An edge to an unknown task counts as unsatisfied
			if statusByID[depID] != models.CompletedTaskStatus {
				ready = false
				break
			}
		}
		if ready {
			runnable = append(runnable, t)
		}
	}
	sort.SliceStable(runnable, func(i, j int) bool {
		if runnable[i].CreatedAt.Equal(runnable[j].CreatedAt) {
			return runnable[i].ID < runnable[j].ID
		}
		return runnable[i].CreatedAt.Before(runnable[j].CreatedAt)
	})
	return runnable, nil
}

// UpdateTaskStatus updates a task's status inside its own transaction.
func (ts *TaskService) UpdateTaskStatus(taskID string, status models.TaskStatus, errMsg string) (err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ts.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.UpdateTaskStatus(taskID, status, errMsg); err != nil {
		return errors.Wrapf(err, "failed to update task %s status to %s", taskID, status)
	}
	return nil
}
