package service

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ignatij/agentflow/internal/log"
	"github.com/ignatij/agentflow/pkg/agent"
	"github.com/ignatij/agentflow/pkg/budget"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
	"github.com/ignatij/agentflow/pkg/window"
)

func newEngineFixture(t *testing.T, cfg EngineConfig) (storage.Store, *recordingExecutor, *WorkflowEngine) {
	t.Helper()
	store := storage.NewMockStore()
	logger := log.GetLogger()
	tasks := NewTaskService(store, logger)
	exec := newRecordingExecutor()
	stages := NewStageExecutor(store, tasks, agent.NewRegistry(), exec,
		budget.NewAccountant(store, logger), window.DefaultLimits(), logger)
	engine := NewWorkflowEngine(store, DefaultTemplates(), stages, tasks, logger, cfg)
	return store, exec, engine
}

func TestCreateAndExecuteUnknownType(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})
	_, err := engine.CreateAndExecute(context.Background(), "world_domination", "take over")
	assert.ErrorIs(t, err, ErrUnknownWorkflowType)
}

func TestCreateAndExecuteHappyPath(t *testing.T) {
	store, exec, engine := newEngineFixture(t, EngineConfig{})

	var mu sync.Mutex
	var events []Event
	record := func(ctx context.Context, ev Event, data map[string]interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	}
	for _, ev := range []Event{WorkflowStartedEvent, StageStartedEvent, StageCompletedEvent, StageFailedEvent, WorkflowCompletedEvent, WorkflowFailedEvent} {
		engine.OnEvent(ev, record)
	}

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "the login page 500s")
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedWorkflowStatus, run.Status)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.CompletedAt)
	assert.Len(t, run.Stages, 4)
	for _, st := range run.Stages {
		assert.Equal(t, models.CompletedStageStatus, st.Status)
	}

	// The seed task went to the first stage's first agent
	seed, err := store.GetTask(SeedTaskID(id))
	assert.NoError(t, err)
	assert.Equal(t, StageID(id, 0), seed.StageID)
	assert.Equal(t, string(agent.Research), seed.AgentType)
	assert.Equal(t, models.CompletedTaskStatus, seed.Status)
	assert.Equal(t, models.HighTaskPriority, seed.Priority)

	// Only the seed task existed, so only one executor call happened
	assert.Len(t, exec.calls(), 1)

	// Lifecycle events in order: started, 4x(stage started+completed), completed
	want := []Event{
		WorkflowStartedEvent,
		StageStartedEvent, StageCompletedEvent,
		StageStartedEvent, StageCompletedEvent,
		StageStartedEvent, StageCompletedEvent,
		StageStartedEvent, StageCompletedEvent,
		WorkflowCompletedEvent,
	}
	assert.Equal(t, want, events)
}

func TestExecuteStageFailureFailsWorkflow(t *testing.T) {
	store, exec, engine := newEngineFixture(t, EngineConfig{})

	var events []Event
	engine.OnEvent(StageFailedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		events = append(events, ev)
		return nil
	})
	engine.OnEvent(WorkflowFailedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		events = append(events, ev)
		return nil
	})

	id, err := engine.Create(context.Background(), "fix_bug", "flaky checkout flow")
	assert.NoError(t, err)
	exec.fail[SeedTaskID(id)] = true

	// A stage failure is an orchestration outcome, not an engine error
	assert.NoError(t, engine.Execute(context.Background(), id))

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.FailedWorkflowStatus, run.Status)
	assert.Equal(t, "stage analysis failed", run.ErrorMsg)
	assert.Equal(t, models.FailedStageStatus, run.Stages[0].Status)
	// Later stages were never attempted
	for _, st := range run.Stages[1:] {
		assert.Equal(t, models.PendingStageStatus, st.Status)
	}
	assert.Equal(t, []Event{StageFailedEvent, WorkflowFailedEvent}, events)

	task, _ := store.GetTask(SeedTaskID(id))
	assert.Equal(t, models.FailedTaskStatus, task.Status)
}

func TestResumeSkipsCompletedStages(t *testing.T) {
	_, exec, engine := newEngineFixture(t, EngineConfig{})

	id, err := engine.Create(context.Background(), "fix_bug", "broken search index")
	assert.NoError(t, err)
	exec.fail[SeedTaskID(id)] = true
	assert.NoError(t, engine.Execute(context.Background(), id))

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.FailedWorkflowStatus, run.Status)
	callsBeforeResume := len(exec.calls())

	// Resume re-runs from the failed stage; the failed task stays failed
	// (no automatic retries), so the stage now completes trivially.
	assert.NoError(t, engine.Resume(context.Background(), id))

	run, err = engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedWorkflowStatus, run.Status)
	for _, st := range run.Stages {
		assert.Equal(t, models.CompletedStageStatus, st.Status)
	}
	assert.Len(t, exec.calls(), callsBeforeResume)
}

func TestResumeRejectsInvalidStatus(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "stale cache")
	assert.NoError(t, err)

	err = engine.Resume(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResumeUnknownWorkflow(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})
	err := engine.Resume(context.Background(), "wf_nope")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestPauseStopsAtStageBoundary(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})

	// Pause as soon as the first stage starts; the running stage finishes,
	// progression stops before the next one.
	engine.OnEvent(StageStartedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		return engine.Pause(ctx, data["workflow_id"].(string))
	})

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "intermittent timeouts")
	assert.NoError(t, err)

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.PausedWorkflowStatus, run.Status)
	assert.Equal(t, models.CompletedStageStatus, run.Stages[0].Status)
	assert.Equal(t, models.PendingStageStatus, run.Stages[1].Status)
}

func TestCancelStopsAtStageBoundary(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})

	engine.OnEvent(StageCompletedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		return engine.Cancel(ctx, data["workflow_id"].(string))
	})

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "payment retries duplicated")
	assert.NoError(t, err)

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.CancelledWorkflowStatus, run.Status)
	assert.Equal(t, models.CompletedStageStatus, run.Stages[0].Status)
	assert.Equal(t, models.PendingStageStatus, run.Stages[1].Status)
}

func TestHandlerErrorFailsWorkflow(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})

	engine.OnEvent(WorkflowStartedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		return errors.New("webhook unreachable")
	})

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "crash on startup")
	assert.Error(t, err)
	assert.NotEmpty(t, id)

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.FailedWorkflowStatus, run.Status)
	assert.Contains(t, run.ErrorMsg, "webhook unreachable")
}

func TestHandlerErrorIsolated(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{ContinueOnHandlerError: true})

	calls := 0
	engine.OnEvent(WorkflowStartedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		return errors.New("webhook unreachable")
	})
	engine.OnEvent(WorkflowStartedEvent, func(ctx context.Context, ev Event, data map[string]interface{}) error {
		calls++
		return nil
	})

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "crash on startup")
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	run, err := engine.GetWorkflow(id)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedWorkflowStatus, run.Status)
}

func TestListWorkflows(t *testing.T) {
	_, _, engine := newEngineFixture(t, EngineConfig{})

	id1, err := engine.CreateAndExecute(context.Background(), "fix_bug", "first")
	assert.NoError(t, err)
	id2, err := engine.Create(context.Background(), "security_audit", "second")
	assert.NoError(t, err)

	all, err := engine.ListWorkflows("", 10)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := engine.ListWorkflows(models.CompletedWorkflowStatus, 10)
	assert.NoError(t, err)
	assert.Len(t, completed, 1)
	assert.Equal(t, id1, completed[0].ID)

	pending, err := engine.ListWorkflows(models.PendingWorkflowStatus, 10)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, id2, pending[0].ID)
}
