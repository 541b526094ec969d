package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// SaveWorkflow inserts a new workflow run (no stages/tasks).
func (s *PostgresStore) SaveWorkflow(w models.WorkflowRun) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_runs (id, workflow_type, description, status, total_tokens_used, estimated_cost_usd, error_msg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.WorkflowType, w.Description, w.Status, w.TotalTokensUsed, w.EstimatedCostUSD, w.ErrorMsg, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkflow(id string) (models.WorkflowRun, error) {
	var wf models.WorkflowRun
	err := s.db.Get(&wf, "SELECT * FROM workflow_runs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRun{}, err
	}
	return wf, nil
}

func (s *PostgresStore) ListWorkflows(status models.WorkflowStatus, limit int) ([]models.WorkflowRun, error) {
	workflows := []models.WorkflowRun{}
	if limit <= 0 {
		limit = 20
	}
	var err error
	if status != "" {
		err = s.db.Select(&workflows, "SELECT * FROM workflow_runs WHERE status = $1 ORDER BY created_at DESC LIMIT $2", status, limit)
	} else {
		err = s.db.Select(&workflows, "SELECT * FROM workflow_runs ORDER BY created_at DESC LIMIT $1", limit)
	}
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *PostgresStore) LatestWorkflow() (models.WorkflowRun, error) {
	var wf models.WorkflowRun
	err := s.db.Get(&wf, "SELECT * FROM workflow_runs ORDER BY created_at DESC LIMIT 1")
	if err == sql.ErrNoRows {
		return models.WorkflowRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRun{}, err
	}
	return wf, nil
}

// UpdateWorkflowStatus updates the status, stamping started_at the first
// time the run goes running and completed_at when it completes.
func (s *PostgresStore) UpdateWorkflowStatus(id string, status models.WorkflowStatus, errorMsg string) error {
	res, err := s.db.Exec(`
		UPDATE workflow_runs
		SET status = $1,
		error_msg = CASE WHEN $2 <> '' THEN $2 ELSE error_msg END,
		started_at = CASE WHEN $3 = 'running' THEN COALESCE(started_at, CURRENT_TIMESTAMP) ELSE started_at END,
		completed_at = CASE WHEN $4 = 'completed' THEN CURRENT_TIMESTAMP ELSE completed_at END,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $5`,
		// PostgreSQL treats the parameters inside the CASE clauses as separate, so the status is passed three times
		status, errorMsg, status, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) AddWorkflowUsage(id string, tokens int64, cost float64) error {
	res, err := s.db.Exec(`
		UPDATE workflow_runs
		SET total_tokens_used = total_tokens_used + $1,
		estimated_cost_usd = estimated_cost_usd + $2,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`,
		tokens, cost, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveStage(st models.StageInstance) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_stages (id, workflow_run_id, stage_name, stage_order, parallel, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.WorkflowRunID, st.Name, st.Order, st.Parallel, st.Status)
	return err
}

func (s *PostgresStore) GetStage(id string) (models.StageInstance, error) {
	var st models.StageInstance
	err := s.db.Get(&st, "SELECT * FROM workflow_stages WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.StageInstance{}, storage.ErrNotFound
	}
	if err != nil {
		return models.StageInstance{}, err
	}
	return st, nil
}

func (s *PostgresStore) GetWorkflowStages(workflowID string) ([]models.StageInstance, error) {
	stages := []models.StageInstance{}
	err := s.db.Select(&stages, "SELECT * FROM workflow_stages WHERE workflow_run_id = $1 ORDER BY stage_order", workflowID)
	if err != nil {
		return nil, err
	}
	return stages, nil
}

func (s *PostgresStore) UpdateStageStatus(id string, status models.StageStatus) error {
	res, err := s.db.Exec(`
		UPDATE workflow_stages
		SET status = $1,
		started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, CURRENT_TIMESTAMP) ELSE started_at END,
		completed_at = CASE WHEN $3 IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = $4`,
		status, status, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveTask(t models.Task) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, workflow_run_id, stage_id, title, description, status, priority, agent_type, tokens_used, execution_time_ms, error_msg, created_by, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.WorkflowRunID, t.StageID, t.Title, t.Description, t.Status, t.Priority, t.AgentType,
		t.TokensUsed, t.ExecutionTimeMS, t.ErrorMsg, t.CreatedBy, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateTask
	}
	return err
}

func (s *PostgresStore) GetTask(id string) (models.Task, error) {
	var task models.Task
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *PostgresStore) GetWorkflowTasks(workflowID string, status models.TaskStatus) ([]models.Task, error) {
	tasks := []models.Task{}
	var err error
	if status != "" {
		err = s.db.Select(&tasks, "SELECT * FROM tasks WHERE workflow_run_id = $1 AND status = $2 ORDER BY created_at, id", workflowID, status)
	} else {
		err = s.db.Select(&tasks, "SELECT * FROM tasks WHERE workflow_run_id = $1 ORDER BY created_at, id", workflowID)
	}
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) GetStageTasks(stageID string, status models.TaskStatus) ([]models.Task, error) {
	tasks := []models.Task{}
	var err error
	if status != "" {
		err = s.db.Select(&tasks, "SELECT * FROM tasks WHERE stage_id = $1 AND status = $2 ORDER BY created_at, id", stageID, status)
	} else {
		err = s.db.Select(&tasks, "SELECT * FROM tasks WHERE stage_id = $1 ORDER BY created_at, id", stageID)
	}
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) UpdateTaskStatus(id string, status models.TaskStatus, errorMsg string) error {
	res, err := s.db.Exec(`
		UPDATE tasks
		SET status = $1,
		error_msg = CASE WHEN $2 <> '' THEN $2 ELSE error_msg END,
		completed_at = CASE WHEN $3 = 'completed' THEN CURRENT_TIMESTAMP ELSE completed_at END,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		status, errorMsg, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) UpdateTaskUsage(id string, tokens int64, executionTimeMS int64) error {
	res, err := s.db.Exec(`
		UPDATE tasks
		SET tokens_used = tokens_used + $1,
		execution_time_ms = $2,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`,
		tokens, executionTimeMS, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SaveDependency(d models.TaskDependency) error {
	_, err := s.db.Exec(`
		INSERT INTO task_dependencies (task_id, depends_on_task_id) VALUES ($1, $2)
		ON CONFLICT (task_id, depends_on_task_id) DO NOTHING`,
		d.TaskID, d.DependsOnTaskID)
	return err
}

func (s *PostgresStore) GetDependencies(taskID string) ([]string, error) {
	deps := []string{}
	err := s.db.Select(&deps, "SELECT depends_on_task_id FROM task_dependencies WHERE task_id = $1", taskID)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func (s *PostgresStore) GetWorkflowDependencies(workflowID string) ([]models.TaskDependency, error) {
	deps := []models.TaskDependency{}
	err := s.db.Select(&deps, `
		SELECT td.task_id, td.depends_on_task_id
		FROM task_dependencies td
		JOIN tasks t ON td.task_id = t.id
		WHERE t.workflow_run_id = $1`, workflowID)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func (s *PostgresStore) SaveUsage(u models.UsageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO token_usage (workflow_run_id, task_id, agent_type, model, input_tokens, output_tokens, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.WorkflowRunID, u.TaskID, u.AgentType, u.Model, u.InputTokens, u.OutputTokens, u.CostUSD)
	return err
}

func (s *PostgresStore) GetWorkflowUsage(workflowID string) (models.UsageSummary, error) {
	var sum models.UsageSummary
	err := s.db.Get(&sum, `
		SELECT
		COALESCE(SUM(input_tokens), 0) AS total_input,
		COALESCE(SUM(output_tokens), 0) AS total_output,
		COALESCE(SUM(cost_usd), 0) AS total_cost
		FROM token_usage
		WHERE workflow_run_id = $1`, workflowID)
	if err != nil {
		return models.UsageSummary{}, err
	}
	sum.TotalTokens = sum.TotalInput + sum.TotalOutput
	return sum, nil
}

func (s *PostgresStore) SaveTaskContext(c models.TaskContext) error {
	_, err := s.db.Exec(`
		INSERT INTO task_context (task_id, context_xml, context_tokens)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id) DO UPDATE SET context_xml = $2, context_tokens = $3`,
		c.TaskID, c.Context, c.ContextTokens)
	return err
}

func (s *PostgresStore) GetTaskContext(taskID string) (models.TaskContext, error) {
	var c models.TaskContext
	err := s.db.Get(&c, "SELECT * FROM task_context WHERE task_id = $1", taskID)
	if err == sql.ErrNoRows {
		return models.TaskContext{}, storage.ErrNotFound
	}
	if err != nil {
		return models.TaskContext{}, err
	}
	return c, nil
}

func (s *PostgresStore) SaveTaskOutput(o models.TaskOutput) error {
	_, err := s.db.Exec(`
		INSERT INTO task_outputs (task_id, output_xml, summary, tokens_used, model_used)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO UPDATE SET output_xml = $2, summary = $3, tokens_used = $4, model_used = $5`,
		o.TaskID, o.Output, o.Summary, o.TokensUsed, o.ModelUsed)
	return err
}

func (s *PostgresStore) GetTaskOutput(taskID string) (models.TaskOutput, error) {
	var o models.TaskOutput
	err := s.db.Get(&o, "SELECT * FROM task_outputs WHERE task_id = $1", taskID)
	if err == sql.ErrNoRows {
		return models.TaskOutput{}, storage.ErrNotFound
	}
	if err != nil {
		return models.TaskOutput{}, err
	}
	return o, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
