package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignatij/agentflow/internal/log"
	"github.com/ignatij/agentflow/pkg/agent"
	"github.com/ignatij/agentflow/pkg/budget"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/service"
	"github.com/ignatij/agentflow/pkg/storage"
	"github.com/ignatij/agentflow/pkg/window"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.WorkflowEngine) {
	t.Helper()
	store := storage.NewMockStore()
	logger := log.GetLogger()
	tasks := service.NewTaskService(store, logger)
	exec := agent.ExecutorFunc(func(ctx context.Context, req agent.ExecuteRequest) (agent.Result, error) {
		return agent.Result{Success: true, Summary: "ok", Model: "sonnet", InputTokens: 10, OutputTokens: 5}, nil
	})
	accountant := budget.NewAccountant(store, logger)
	stages := service.NewStageExecutor(store, tasks, agent.NewRegistry(), exec, accountant, window.DefaultLimits(), logger)
	engine := service.NewWorkflowEngine(store, service.DefaultTemplates(), stages, tasks, logger, service.EngineConfig{})

	srv := httptest.NewServer(NewMux(engine, accountant))
	t.Cleanup(srv.Close)
	return srv, engine
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateWorkflowValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("rejects malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/workflows", "application/json", strings.NewReader("{"))
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/workflows", "application/json", strings.NewReader(`{"workflow_type":"fix_bug"}`))
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects unknown workflow type", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/workflows", "application/json",
			strings.NewReader(`{"workflow_type":"world_domination","description":"take over"}`))
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCreateAndFetchWorkflow(t *testing.T) {
	srv, engine := newTestServer(t)

	resp, err := http.Post(srv.URL+"/workflows", "application/json",
		strings.NewReader(`{"workflow_type":"fix_bug","description":"login page 500s"}`))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	id := created["workflow_id"]
	assert.NotEmpty(t, id)

	// Execution runs in the background; wait for the terminal status
	deadline := time.Now().Add(5 * time.Second)
	var run models.WorkflowRun
	for {
		run, err = engine.GetWorkflow(id)
		assert.NoError(t, err)
		if run.Status.Terminal() || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, models.CompletedWorkflowStatus, run.Status)

	getResp, err := http.Get(srv.URL + "/workflows/" + id)
	assert.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var fetched models.WorkflowRun
	assert.NoError(t, json.NewDecoder(getResp.Body).Decode(&fetched))
	assert.Equal(t, id, fetched.ID)
	assert.Len(t, fetched.Stages, 4)

	usageResp, err := http.Get(srv.URL + "/workflows/" + id + "/usage")
	assert.NoError(t, err)
	defer usageResp.Body.Close()
	assert.Equal(t, http.StatusOK, usageResp.StatusCode)

	var sum models.UsageSummary
	assert.NoError(t, json.NewDecoder(usageResp.Body).Decode(&sum))
	assert.Equal(t, int64(15), sum.TotalTokens)
}

func TestWorkflowNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/workflows/wf_nope")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	pauseResp, err := http.Post(srv.URL+"/workflows/wf_nope/pause", "application/json", nil)
	assert.NoError(t, err)
	defer pauseResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, pauseResp.StatusCode)
}

func TestResumeRequiresPausedOrFailed(t *testing.T) {
	srv, engine := newTestServer(t)

	id, err := engine.CreateAndExecute(context.Background(), "fix_bug", "stale cache")
	assert.NoError(t, err)

	resp, err := http.Post(srv.URL+"/workflows/"+id+"/resume", "application/json", nil)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListWorkflowsEndpoint(t *testing.T) {
	srv, engine := newTestServer(t)

	_, err := engine.CreateAndExecute(context.Background(), "fix_bug", "first")
	assert.NoError(t, err)

	resp, err := http.Get(srv.URL + "/workflows")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var workflows []models.WorkflowRun
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&workflows))
	assert.Len(t, workflows, 1)
}
