package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
)

// EngineConfig carries engine-level policy knobs.
type EngineConfig struct {
	// ContinueOnHandlerError makes event dispatch log and skip a failing
	// handler instead of aborting dispatch and failing the workflow.
	ContinueOnHandlerError bool
}

// WorkflowEngine is the top-level state machine. It creates workflow runs
// and their ordered stages from templates, drives stage-by-stage
// progression, emits lifecycle events, and implements pause/resume/cancel.
//
// One engine instance drives one workflow per Execute invocation; separate
// workflows may be driven concurrently, serialized only by the storage
// layer.
type WorkflowEngine struct {
	store     storage.Store
	templates Templates
	stages    *StageExecutor
	tasks     *TaskService
	handlers  map[Event][]EventHandler
	cfg       EngineConfig
	logger    Logger
	mu        sync.RWMutex
}

func NewWorkflowEngine(
	store storage.Store,
	templates Templates,
	stages *StageExecutor,
	tasks *TaskService,
	logger Logger,
	cfg EngineConfig,
) *WorkflowEngine {
	return &WorkflowEngine{
		store:     store,
		templates: templates,
		stages:    stages,
		tasks:     tasks,
		handlers:  make(map[Event][]EventHandler),
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateAndExecute validates the workflow type, creates the run with its
// ordered stages and seed task in one transaction, then executes it. The
// workflow id is returned even when execution fails, so the caller can
// inspect or resume the run.
func (e *WorkflowEngine) CreateAndExecute(ctx context.Context, workflowType, description string) (string, error) {
	workflowID, err := e.Create(ctx, workflowType, description)
	if err != nil {
		return "", err
	}
	if err := e.Execute(ctx, workflowID); err != nil {
		return workflowID, err
	}
	return workflowID, nil
}

// Create persists a new run with its ordered stages and seed task in one
// transaction, without executing it.
func (e *WorkflowEngine) Create(ctx context.Context, workflowType, description string) (string, error) {
	def, ok := e.templates.Get(workflowType)
	if !ok {
		return "", errors.Wrapf(ErrUnknownWorkflowType, "%s", workflowType)
	}
	if len(def.Stages) == 0 {
		return "", errors.Errorf("workflow type %s has no stages", workflowType)
	}

	workflowID := NewWorkflowID()
	now := time.Now()

	txStore, err := e.store.Begin()
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	if err := e.createRun(txStore, def, workflowID, workflowType, description, now); err != nil {
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			e.logger.Errorf("Failed to rollback: %v (original error: %v)", rollbackErr, err)
		}
		return "", err
	}
	if err := txStore.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit")
	}
	e.logger.Infof("Created workflow %s of type %s", workflowID, workflowType)
	return workflowID, nil
}

func (e *WorkflowEngine) createRun(txStore storage.Store, def Definition, workflowID, workflowType, description string, now time.Time) error {
	run := models.WorkflowRun{
		ID:           workflowID,
		WorkflowType: workflowType,
		Description:  description,
		Status:       models.PendingWorkflowStatus,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := txStore.SaveWorkflow(run); err != nil {
		return errors.Wrapf(err, "failed to save workflow %s", workflowID)
	}

	for i, stageDef := range def.Stages {
		stage := models.StageInstance{
			ID:            StageID(workflowID, i),
			WorkflowRunID: workflowID,
			Name:          stageDef.Name,
			Order:         i,
			Parallel:      stageDef.Parallel,
			Status:        models.PendingStageStatus,
		}
		if err := txStore.SaveStage(stage); err != nil {
			return errors.Wrapf(err, "failed to save stage %s", stage.ID)
		}
	}

	firstStage := def.Stages[0]
	seed := models.Task{
		ID:            SeedTaskID(workflowID),
		WorkflowRunID: workflowID,
		StageID:       StageID(workflowID, 0),
		Title:         "Analyze requirements: " + truncate(description, 100),
		Description:   description,
		AgentType:     string(firstStage.AgentTypes[0]),
		Priority:      models.HighTaskPriority,
		Status:        models.PendingTaskStatus,
		CreatedBy:     "user",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := txStore.SaveTask(seed); err != nil {
		return errors.Wrapf(err, "failed to save seed task for workflow %s", workflowID)
	}
	return nil
}

// Execute drives a workflow run through its remaining stages. Stages already
// completed are skipped, which is the entire resume mechanism; re-invoking
// Execute on a partially completed run continues where it left off. A stage
// failure fails the run and stops progression; later stages are not
// attempted. Pause and cancel are cooperative and take effect at stage
// boundaries only.
func (e *WorkflowEngine) Execute(ctx context.Context, workflowID string) error {
	if _, err := e.store.GetWorkflow(workflowID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrWorkflowNotFound, "%s", workflowID)
		}
		return errors.Wrapf(err, "failed to load workflow %s", workflowID)
	}

	if err := e.store.UpdateWorkflowStatus(workflowID, models.RunningWorkflowStatus, ""); err != nil {
		return e.fail(ctx, workflowID, errors.Wrap(err, "failed to mark workflow running"))
	}
	if err := e.emit(ctx, WorkflowStartedEvent, map[string]interface{}{"workflow_id": workflowID}); err != nil {
		return e.fail(ctx, workflowID, err)
	}

	stages, err := e.store.GetWorkflowStages(workflowID)
	if err != nil {
		return e.fail(ctx, workflowID, errors.Wrap(err, "failed to load stages"))
	}

	for _, stage := range stages {
		if stage.Status == models.CompletedStageStatus {
			continue
		}

		run, err := e.store.GetWorkflow(workflowID)
		if err != nil {
			return e.fail(ctx, workflowID, errors.Wrap(err, "failed to reload workflow"))
		}
		if run.Status == models.PausedWorkflowStatus || run.Status == models.CancelledWorkflowStatus {
			e.logger.Infof("Workflow %s is %s, stopping before stage %s", workflowID, run.Status, stage.Name)
			return nil
		}

		if err := e.store.UpdateStageStatus(stage.ID, models.RunningStageStatus); err != nil {
			return e.fail(ctx, workflowID, errors.Wrapf(err, "failed to mark stage %s running", stage.ID))
		}
		stageData := map[string]interface{}{
			"workflow_id": workflowID,
			"stage_id":    stage.ID,
			"stage_name":  stage.Name,
		}
		if err := e.emit(ctx, StageStartedEvent, stageData); err != nil {
			return e.fail(ctx, workflowID, err)
		}

		if e.stages.ExecuteStage(ctx, workflowID, stage.ID, stage.Parallel) {
			if err := e.store.UpdateStageStatus(stage.ID, models.CompletedStageStatus); err != nil {
				return e.fail(ctx, workflowID, errors.Wrapf(err, "failed to mark stage %s completed", stage.ID))
			}
			if err := e.emit(ctx, StageCompletedEvent, stageData); err != nil {
				return e.fail(ctx, workflowID, err)
			}
			continue
		}

		if err := e.store.UpdateStageStatus(stage.ID, models.FailedStageStatus); err != nil {
			return e.fail(ctx, workflowID, errors.Wrapf(err, "failed to mark stage %s failed", stage.ID))
		}
		if err := e.emit(ctx, StageFailedEvent, stageData); err != nil {
			return e.fail(ctx, workflowID, err)
		}
		msg := "stage " + stage.Name + " failed"
		if err := e.store.UpdateWorkflowStatus(workflowID, models.FailedWorkflowStatus, msg); err != nil {
			return e.fail(ctx, workflowID, errors.Wrap(err, "failed to mark workflow failed"))
		}
		if err := e.emit(ctx, WorkflowFailedEvent, map[string]interface{}{"workflow_id": workflowID, "error": msg}); err != nil {
			e.logger.Errorf("Failed to emit %s for workflow %s: %v", WorkflowFailedEvent, workflowID, err)
		}
		e.logger.Infof("Workflow %s failed: %s", workflowID, msg)
		return nil
	}

	if err := e.store.UpdateWorkflowStatus(workflowID, models.CompletedWorkflowStatus, ""); err != nil {
		return e.fail(ctx, workflowID, errors.Wrap(err, "failed to mark workflow completed"))
	}
	if err := e.emit(ctx, WorkflowCompletedEvent, map[string]interface{}{"workflow_id": workflowID}); err != nil {
		return e.fail(ctx, workflowID, err)
	}
	e.logger.Infof("Workflow %s completed", workflowID)
	return nil
}

// fail records an unexpected error on the run, emits workflow_failed, and
// returns the original error to the caller of Execute.
func (e *WorkflowEngine) fail(ctx context.Context, workflowID string, cause error) error {
	if err := e.store.UpdateWorkflowStatus(workflowID, models.FailedWorkflowStatus, cause.Error()); err != nil {
		e.logger.Errorf("Failed to mark workflow %s failed: %v", workflowID, err)
	}
	if err := e.emit(ctx, WorkflowFailedEvent, map[string]interface{}{"workflow_id": workflowID, "error": cause.Error()}); err != nil {
		e.logger.Errorf("Failed to emit %s for workflow %s: %v", WorkflowFailedEvent, workflowID, err)
	}
	return cause
}

// Pause marks a running workflow paused. Pause is cooperative: it does not
// interrupt the stage currently executing, it only stops progression at the
// next stage boundary.
func (e *WorkflowEngine) Pause(ctx context.Context, workflowID string) error {
	if err := e.store.UpdateWorkflowStatus(workflowID, models.PausedWorkflowStatus, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrWorkflowNotFound, "%s", workflowID)
		}
		return errors.Wrapf(err, "failed to pause workflow %s", workflowID)
	}
	return e.emit(ctx, WorkflowPausedEvent, map[string]interface{}{"workflow_id": workflowID})
}

// Resume re-executes a paused or failed workflow. Completed stages are
// skipped by Execute, so no separate resume path is needed.
func (e *WorkflowEngine) Resume(ctx context.Context, workflowID string) error {
	run, err := e.store.GetWorkflow(workflowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrWorkflowNotFound, "%s", workflowID)
		}
		return errors.Wrapf(err, "failed to load workflow %s", workflowID)
	}
	if run.Status != models.PausedWorkflowStatus && run.Status != models.FailedWorkflowStatus {
		return errors.Wrapf(ErrInvalidTransition, "cannot resume workflow in status %s", run.Status)
	}
	return e.Execute(ctx, workflowID)
}

// Cancel unconditionally marks the workflow cancelled. In-flight stage work
// is not aborted; cancellation takes effect at the next stage boundary
// (last-write-wins on status).
func (e *WorkflowEngine) Cancel(ctx context.Context, workflowID string) error {
	if err := e.store.UpdateWorkflowStatus(workflowID, models.CancelledWorkflowStatus, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.Wrapf(ErrWorkflowNotFound, "%s", workflowID)
		}
		return errors.Wrapf(err, "failed to cancel workflow %s", workflowID)
	}
	return e.emit(ctx, WorkflowCancelledEvent, map[string]interface{}{"workflow_id": workflowID})
}

// GetWorkflow fetches a workflow run with its stages.
func (e *WorkflowEngine) GetWorkflow(workflowID string) (models.WorkflowRun, error) {
	run, err := e.store.GetWorkflow(workflowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.WorkflowRun{}, errors.Wrapf(ErrWorkflowNotFound, "%s", workflowID)
		}
		return models.WorkflowRun{}, err
	}
	stages, err := e.store.GetWorkflowStages(workflowID)
	if err != nil {
		return models.WorkflowRun{}, errors.Wrapf(err, "failed to load stages for workflow %s", workflowID)
	}
	run.Stages = stages
	return run, nil
}

// ListWorkflows lists workflow runs, newest first.
func (e *WorkflowEngine) ListWorkflows(status models.WorkflowStatus, limit int) ([]models.WorkflowRun, error) {
	return e.store.ListWorkflows(status, limit)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
