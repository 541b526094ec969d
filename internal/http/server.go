package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/ignatij/agentflow/internal/log"
	"github.com/ignatij/agentflow/pkg/budget"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/service"
)

// StartServer wires the workflow endpoints and blocks serving them.
func StartServer(port string, engine *service.WorkflowEngine, accountant *budget.Accountant) error {
	mux := NewMux(engine, accountant)
	log.GetLogger().Infof("Starting AgentFlow server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

// NewMux builds the route table; split out so tests can drive it through
// httptest without binding a port.
func NewMux(engine *service.WorkflowEngine, accountant *budget.Accountant) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/workflows", workflowsHandler(engine))
	mux.HandleFunc("/workflows/", workflowHandler(engine, accountant))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "AgentFlow server is running")
}

func workflowsHandler(engine *service.WorkflowEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listWorkflowsHTTP(w, r, engine)
		case http.MethodPost:
			createWorkflowHTTP(w, r, engine)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type createWorkflowRequest struct {
	WorkflowType string `json:"workflow_type"`
	Description  string `json:"description"`
}

func createWorkflowHTTP(w http.ResponseWriter, r *http.Request, engine *service.WorkflowEngine) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.WorkflowType == "" || req.Description == "" {
		http.Error(w, "Missing 'workflow_type' or 'description'", http.StatusBadRequest)
		return
	}

	// Execution can run for minutes; respond with the id immediately and
	// let the client poll GET /workflows/{id}.
	id, err := engine.Create(r.Context(), req.WorkflowType, req.Description)
	if err != nil {
		log.GetLogger().Errorf("Failed to create workflow: %v", err)
		status := http.StatusInternalServerError
		if isClientError(err) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Failed to create workflow: %v", err), status)
		return
	}
	go func() {
		// Detached from the request context so the run outlives the response
		if err := engine.Execute(context.Background(), id); err != nil {
			log.GetLogger().Errorf("Workflow %s execution failed: %v", id, err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"workflow_id": id})
}

func listWorkflowsHTTP(w http.ResponseWriter, r *http.Request, engine *service.WorkflowEngine) {
	status := models.WorkflowStatus(r.URL.Query().Get("status"))
	workflows, err := engine.ListWorkflows(status, 20)
	if err != nil {
		log.GetLogger().Errorf("Failed to list workflows: %v", err)
		http.Error(w, fmt.Sprintf("Failed to list workflows: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, workflows)
}

// workflowHandler serves /workflows/{id} and the pause/resume/cancel/usage
// sub-resources.
func workflowHandler(engine *service.WorkflowEngine, accountant *budget.Accountant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/workflows/")
		parts := strings.SplitN(rest, "/", 2)
		id := parts[0]
		if id == "" {
			http.Error(w, "Missing workflow id", http.StatusBadRequest)
			return
		}
		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			run, err := engine.GetWorkflow(id)
			if err != nil {
				writeWorkflowError(w, err)
				return
			}
			writeJSON(w, run)
		case action == "usage" && r.Method == http.MethodGet:
			sum, err := accountant.WorkflowUsage(id)
			if err != nil {
				writeWorkflowError(w, err)
				return
			}
			writeJSON(w, sum)
		case action == "pause" && r.Method == http.MethodPost:
			actionResponse(w, id, engine.Pause(r.Context(), id))
		case action == "cancel" && r.Method == http.MethodPost:
			actionResponse(w, id, engine.Cancel(r.Context(), id))
		case action == "resume" && r.Method == http.MethodPost:
			// Resume re-runs remaining stages, so it goes to the background
			// like create does.
			run, err := engine.GetWorkflow(id)
			if err != nil {
				writeWorkflowError(w, err)
				return
			}
			if run.Status != models.PausedWorkflowStatus && run.Status != models.FailedWorkflowStatus {
				http.Error(w, fmt.Sprintf("Cannot resume workflow in status %s", run.Status), http.StatusConflict)
				return
			}
			go func() {
				if err := engine.Resume(context.Background(), id); err != nil {
					log.GetLogger().Errorf("Workflow %s resume failed: %v", id, err)
				}
			}()
			w.WriteHeader(http.StatusAccepted)
			writeJSON(w, map[string]string{"workflow_id": id})
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

func actionResponse(w http.ResponseWriter, id string, err error) {
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, map[string]string{"workflow_id": id})
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	log.GetLogger().Errorf("Workflow request failed: %v", err)
	if isNotFound(err) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if isClientError(err) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, service.ErrWorkflowNotFound)
}

func isClientError(err error) bool {
	return errors.Is(err, service.ErrUnknownWorkflowType) || errors.Is(err, service.ErrInvalidTransition)
}
