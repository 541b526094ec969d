package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/agent"
	"github.com/ignatij/agentflow/pkg/budget"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
	"github.com/ignatij/agentflow/pkg/window"
)

// StageExecutor runs all pending tasks of one stage, either sequentially or
// with unbounded parallel fan-out. Individual task failures are contained
// here: callers only ever see a boolean per stage.
type StageExecutor struct {
	store      storage.Store
	tasks      *TaskService
	agents     agent.Registry
	executor   agent.Executor
	accountant *budget.Accountant
	limits     window.Limits
	logger     Logger
}

func NewStageExecutor(
	store storage.Store,
	tasks *TaskService,
	agents agent.Registry,
	executor agent.Executor,
	accountant *budget.Accountant,
	limits window.Limits,
	logger Logger,
) *StageExecutor {
	return &StageExecutor{
		store:      store,
		tasks:      tasks,
		agents:     agents,
		executor:   executor,
		accountant: accountant,
		limits:     limits,
		logger:     logger,
	}
}

// ExecuteStage executes every pending task bound to the stage. Follow-on
// task creation is responsible for always setting the stage id, so a single
// query suffices. An empty stage is trivially successful.
//
// Parallel stages launch all tasks at once and wait for every one of them;
// the stage succeeds only if every task succeeds, and no task is left
// unexecuted because another failed. There is no concurrency ceiling, which
// is a known resource-exhaustion risk with very wide stages. Sequential
// stages stop at the first failure.
func (se *StageExecutor) ExecuteStage(ctx context.Context, workflowID, stageID string, parallel bool) bool {
	stageTasks, err := se.store.GetStageTasks(stageID, models.PendingTaskStatus)
	if err != nil {
		se.logger.Errorf("Failed to fetch tasks for stage %s: %v", stageID, err)
		return false
	}
	if len(stageTasks) == 0 {
		return true
	}

	if parallel {
		results := make([]bool, len(stageTasks))
		var wg sync.WaitGroup
		for i, t := range stageTasks {
			wg.Add(1)
			go func(i int, t models.Task) {
				defer wg.Done()
				results[i] = se.ExecuteTask(ctx, t)
			}(i, t)
		}
		wg.Wait()
		for _, ok := range results {
			if !ok {
				return false
			}
		}
		return true
	}

	for _, t := range stageTasks {
		if !se.ExecuteTask(ctx, t) {
			return false
		}
	}
	return true
}

// ExecuteTask drives a single task to a terminal status and reports whether
// it succeeded. Executor errors and panics are swallowed into false; they
// never propagate past this boundary.
func (se *StageExecutor) ExecuteTask(ctx context.Context, task models.Task) bool {
	resolved := agent.Resolve(task.AgentType)

	depIDs, err := se.tasks.Dependencies(task.ID)
	if err != nil {
		se.failTask(task.ID, err)
		return false
	}
	depOutputs := make([]window.DependencyOutput, 0, len(depIDs))
	for _, depID := range depIDs {
		out, err := se.store.GetTaskOutput(depID)
		if err != nil {
			// Dependency produced no output; nothing to inject
			continue
		}
		agentType := ""
		if depTask, err := se.store.GetTask(depID); err == nil {
			agentType = depTask.AgentType
		}
		depOutputs = append(depOutputs, window.DependencyOutput{
			TaskID:    depID,
			AgentType: agentType,
			Output:    out.Summary,
		})
	}
	depOutputs = window.Apply(depOutputs, se.limits)

	var requirements []string
	if task.Description != "" {
		requirements = []string{task.Description}
	}
	taskContext := window.BuildTaskContext(window.ContextInput{
		TaskID:       task.ID,
		AgentType:    string(resolved),
		WorkflowID:   task.WorkflowRunID,
		Summary:      task.Title,
		Requirements: requirements,
		Dependencies: depOutputs,
	})

	if err := se.store.SaveTaskContext(models.TaskContext{
		TaskID:        task.ID,
		Context:       taskContext,
		ContextTokens: window.EstimateTokens(taskContext),
	}); err != nil {
		se.failTask(task.ID, errors.Wrap(err, "failed to persist task context"))
		return false
	}

	complexity := agent.EstimateComplexity(task.Title, task.Description)
	remaining := 1.0
	if _, fraction, err := se.accountant.CheckBudget(task.WorkflowRunID, budget.DefaultWorkflowBudget); err == nil {
		remaining = 1 - fraction
		if remaining < 0 {
			remaining = 0
		}
	}
	tier := se.agents.SelectModel(resolved, complexity, remaining)

	if err := se.tasks.UpdateTaskStatus(task.ID, models.RunningTaskStatus, ""); err != nil {
		se.logger.Errorf("Failed to mark task %s running: %v", task.ID, err)
		return false
	}

	started := time.Now()
	result, err := se.invoke(ctx, agent.ExecuteRequest{
		TaskID:     task.ID,
		AgentType:  resolved,
		WorkflowID: task.WorkflowRunID,
		Context:    taskContext,
		Model:      tier,
	})
	elapsedMS := time.Since(started).Milliseconds()

	if err != nil {
		se.logger.Errorf("Task %s execution failed: %v", task.ID, err)
		se.failTask(task.ID, err)
		return false
	}

	tokens := result.InputTokens + result.OutputTokens
	if _, err := se.accountant.RecordUsage(task.WorkflowRunID, task.ID, string(resolved), result.Model, result.InputTokens, result.OutputTokens); err != nil {
		se.logger.Errorf("Failed to record usage for task %s: %v", task.ID, err)
	}
	if err := se.store.UpdateTaskUsage(task.ID, tokens, elapsedMS); err != nil {
		se.logger.Errorf("Failed to update usage for task %s: %v", task.ID, err)
	}
	if err := se.store.SaveTaskOutput(models.TaskOutput{
		TaskID:     task.ID,
		Output:     result.Output,
		Summary:    result.Summary,
		TokensUsed: tokens,
		ModelUsed:  result.Model,
	}); err != nil {
		se.logger.Errorf("Failed to save output for task %s: %v", task.ID, err)
	}

	if !result.Success {
		if err := se.tasks.UpdateTaskStatus(task.ID, models.FailedTaskStatus, result.Summary); err != nil {
			se.logger.Errorf("Failed to mark task %s failed: %v", task.ID, err)
		}
		return false
	}
	if err := se.tasks.UpdateTaskStatus(task.ID, models.CompletedTaskStatus, ""); err != nil {
		se.logger.Errorf("Failed to mark task %s completed: %v", task.ID, err)
	}
	se.logger.Infof("Task %s completed in %dms using %d tokens", task.ID, elapsedMS, tokens)
	return true
}

// invoke calls the executor, converting panics into errors so a misbehaving
// collaborator cannot take down a whole stage.
func (se *StageExecutor) invoke(ctx context.Context, req agent.ExecuteRequest) (result agent.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("executor panic: %v", r)
		}
	}()
	return se.executor.Execute(ctx, req)
}

func (se *StageExecutor) failTask(taskID string, cause error) {
	if err := se.tasks.UpdateTaskStatus(taskID, models.FailedTaskStatus, cause.Error()); err != nil {
		se.logger.Errorf("Failed to mark task %s failed: %v", taskID, err)
	}
}
