package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/pulse/internal/model"
	"github.com/seantiz/pulse/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// workflowSummary is one entry of the workflow list response.
type workflowSummary struct {
	Name     string `json:"name"`
	APICount int    `json:"api_count"`
}

// listWorkflowsResponse wraps GET /v1/workflows.
type listWorkflowsResponse struct {
	Workflows []workflowSummary `json:"workflows"`
}

// triggerResponse is the JSON body for a successfully triggered run.
type triggerResponse struct {
	RunID    string `json:"run_id"`
	Workflow string `json:"workflow"`
	Status   string `json:"status"`
}

// listRunsResponse wraps the paginated run list response.
type listRunsResponse struct {
	Runs   []*model.WorkflowRun `json:"runs"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := s.store.ListDefinitions()

	summaries := make([]workflowSummary, len(defs))
	for i, def := range defs {
		summaries[i] = workflowSummary{Name: def.Name, APICount: len(def.APIs)}
	}

	s.writeJSON(w, http.StatusOK, listWorkflowsResponse{Workflows: summaries})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	def, err := s.store.GetDefinition(name)
	if errors.Is(err, store.ErrUnknownWorkflow) {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		s.logger.Error("get workflow", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}

	s.writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	runID, err := s.engine.Trigger(r.Context(), name, model.TriggerManual)
	if errors.Is(err, store.ErrUnknownWorkflow) {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	if err != nil {
		s.logger.Error("trigger workflow", "workflow", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to trigger workflow")
		return
	}

	s.writeJSON(w, http.StatusAccepted, triggerResponse{
		RunID:    runID,
		Workflow: name,
		Status:   model.StatusPending,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)
	workflow := r.URL.Query().Get("workflow")

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), workflow, limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.WorkflowRun{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
