package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/pkg/models"
)

// mockStore implements Store with in-memory storage. It is shared by the
// unit tests of every package that talks to storage; transactions are
// simulated, writes apply immediately.
type mockStore struct {
	mu           sync.Mutex
	workflows    []models.WorkflowRun
	stages       []models.StageInstance
	tasks        []models.Task
	dependencies []models.TaskDependency
	usage        []models.UsageRecord
	contexts     map[string]models.TaskContext
	outputs      map[string]models.TaskOutput
	nextUsageID  int64
}

// NewMockStore returns an empty in-memory Store.
func NewMockStore() Store {
	return &mockStore{
		contexts: make(map[string]models.TaskContext),
		outputs:  make(map[string]models.TaskOutput),
	}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveWorkflow(w models.WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.workflows {
		if existing.ID == w.ID {
			return errors.New("workflow already exists")
		}
	}
	m.workflows = append(m.workflows, w)
	return nil
}

func (m *mockStore) GetWorkflow(id string) (models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wf := range m.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return models.WorkflowRun{}, ErrNotFound
}

func (m *mockStore) ListWorkflows(status models.WorkflowStatus, limit int) ([]models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.WorkflowRun{}
	for _, wf := range m.workflows {
		if status != "" && wf.Status != status {
			continue
		}
		out = append(out, wf)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) LatestWorkflow() (models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.workflows) == 0 {
		return models.WorkflowRun{}, ErrNotFound
	}
	latest := m.workflows[0]
	for _, wf := range m.workflows[1:] {
		if wf.CreatedAt.After(latest.CreatedAt) {
			latest = wf
		}
	}
	return latest, nil
}

func (m *mockStore) UpdateWorkflowStatus(id string, status models.WorkflowStatus, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, wf := range m.workflows {
		if wf.ID == id {
			now := time.Now()
			m.workflows[i].Status = status
			m.workflows[i].UpdatedAt = now
			if errorMsg != "" {
				m.workflows[i].ErrorMsg = errorMsg
			}
			switch status {
			case models.RunningWorkflowStatus:
				if m.workflows[i].StartedAt == nil {
					m.workflows[i].StartedAt = &now
				}
			case models.CompletedWorkflowStatus:
				m.workflows[i].CompletedAt = &now
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) AddWorkflowUsage(id string, tokens int64, cost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, wf := range m.workflows {
		if wf.ID == id {
			m.workflows[i].TotalTokensUsed += tokens
			m.workflows[i].EstimatedCostUSD += cost
			m.workflows[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveStage(s models.StageInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.stages {
		if existing.ID == s.ID {
			return errors.New("stage already exists")
		}
	}
	m.stages = append(m.stages, s)
	return nil
}

func (m *mockStore) GetStage(id string) (models.StageInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stages {
		if s.ID == id {
			return s, nil
		}
	}
	return models.StageInstance{}, ErrNotFound
}

func (m *mockStore) GetWorkflowStages(workflowID string) ([]models.StageInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StageInstance{}
	for _, s := range m.stages {
		if s.WorkflowRunID == workflowID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *mockStore) UpdateStageStatus(id string, status models.StageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.stages {
		if s.ID == id {
			now := time.Now()
			m.stages[i].Status = status
			switch status {
			case models.RunningStageStatus:
				if m.stages[i].StartedAt == nil {
					m.stages[i].StartedAt = &now
				}
			case models.CompletedStageStatus, models.FailedStageStatus:
				m.stages[i].CompletedAt = &now
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveTask(t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tasks {
		if existing.ID == t.ID {
			return ErrDuplicateTask
		}
	}
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *mockStore) GetTask(id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (m *mockStore) GetWorkflowTasks(workflowID string, status models.TaskStatus) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Task{}
	for _, t := range m.tasks {
		if t.WorkflowRunID != workflowID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) GetStageTasks(stageID string, status models.TaskStatus) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Task{}
	for _, t := range m.tasks {
		if t.StageID != stageID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) UpdateTaskStatus(id string, status models.TaskStatus, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id {
			now := time.Now()
			m.tasks[i].Status = status
			m.tasks[i].UpdatedAt = now
			if errorMsg != "" {
				m.tasks[i].ErrorMsg = errorMsg
			}
			if status == models.CompletedTaskStatus {
				m.tasks[i].CompletedAt = &now
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) UpdateTaskUsage(id string, tokens int64, executionTimeMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks[i].TokensUsed += tokens
			m.tasks[i].ExecutionTimeMS = executionTimeMS
			m.tasks[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveDependency(d models.TaskDependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.dependencies {
		if existing.TaskID == d.TaskID && existing.DependsOnTaskID == d.DependsOnTaskID {
			// Idempotent: the same edge twice is a no-op
			return nil
		}
	}
	m.dependencies = append(m.dependencies, d)
	return nil
}

func (m *mockStore) GetDependencies(taskID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deps []string
	for _, d := range m.dependencies {
		if d.TaskID == taskID {
			deps = append(deps, d.DependsOnTaskID)
		}
	}
	return deps, nil
}

func (m *mockStore) GetWorkflowDependencies(workflowID string) ([]models.TaskDependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	taskIDs := make(map[string]bool)
	for _, t := range m.tasks {
		if t.WorkflowRunID == workflowID {
			taskIDs[t.ID] = true
		}
	}
	var deps []models.TaskDependency
	for _, d := range m.dependencies {
		if taskIDs[d.TaskID] {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

func (m *mockStore) SaveUsage(u models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUsageID++
	u.ID = m.nextUsageID
	if u.RecordedAt.IsZero() {
		u.RecordedAt = time.Now()
	}
	m.usage = append(m.usage, u)
	return nil
}

func (m *mockStore) GetWorkflowUsage(workflowID string) (models.UsageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum models.UsageSummary
	for _, u := range m.usage {
		if u.WorkflowRunID != workflowID {
			continue
		}
		sum.TotalInput += u.InputTokens
		sum.TotalOutput += u.OutputTokens
		sum.TotalCost += u.CostUSD
	}
	sum.TotalTokens = sum.TotalInput + sum.TotalOutput
	return sum, nil
}

func (m *mockStore) SaveTaskContext(c models.TaskContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.contexts[c.TaskID] = c
	return nil
}

func (m *mockStore) GetTaskContext(taskID string) (models.TaskContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[taskID]
	if !ok {
		return models.TaskContext{}, ErrNotFound
	}
	return c, nil
}

func (m *mockStore) SaveTaskOutput(o models.TaskOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	m.outputs[o.TaskID] = o
	return nil
}

func (m *mockStore) GetTaskOutput(taskID string) (models.TaskOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outputs[taskID]
	if !ok {
		return models.TaskOutput{}, ErrNotFound
	}
	return o, nil
}
