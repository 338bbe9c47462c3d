package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/history"
	"github.com/genflow-ai/genflow/internal/metrics"
	"github.com/genflow-ai/genflow/types"
	"github.com/genflow-ai/genflow/workflow"
)

// Runner executes a workflow graph. *workflow.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, g *workflow.Graph, query string) (*workflow.ExecutionResult, error)
}

// ExecuteRequest is the payload for workflow execution.
type ExecuteRequest struct {
	Workflow workflow.Graph `json:"workflow"`
	Query    string         `json:"query"`
	UserID   string         `json:"user_id,omitempty"`
}

// StepsResponse lists the coarse progress steps a graph will go through.
type StepsResponse struct {
	Steps []workflow.Step `json:"steps"`
}

// WorkflowHandler serves the workflow validation, execution, and history
// endpoints.
type WorkflowHandler struct {
	runner  Runner
	store   *history.Store
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewWorkflowHandler creates a workflow handler. store and collector may be
// nil, in which case history and metrics are skipped.
func NewWorkflowHandler(runner Runner, store *history.Store, collector *metrics.Collector, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		runner:  runner,
		store:   store,
		metrics: collector,
		logger:  logger.With(zap.String("component", "workflow_handler")),
	}
}

// HandleValidate validates a graph without executing it. The body is the
// graph itself, `{nodes, connections}`, as the editor submits it. The verdict
// is always a 200: an invalid graph is a successful validation with findings.
func (h *WorkflowHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var g workflow.Graph
	if err := DecodeJSONBody(w, r, &g, h.logger); err != nil {
		return
	}
	WriteSuccess(w, workflow.Validate(&g))
}

// HandleSteps returns the progress steps a graph will report while running,
// so clients can render a progress UI before execution starts. The body is
// the graph itself, like HandleValidate.
func (h *WorkflowHandler) HandleSteps(w http.ResponseWriter, r *http.Request) {
	var g workflow.Graph
	if err := DecodeJSONBody(w, r, &g, h.logger); err != nil {
		return
	}
	WriteSuccess(w, StepsResponse{Steps: workflow.Steps(&g)})
}

// HandleExecute validates and runs a graph against the user's query.
func (h *WorkflowHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Query == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "query is required", h.logger)
		return
	}

	start := time.Now()
	result, err := h.runner.Run(r.Context(), &req.Workflow, req.Query)
	elapsed := time.Since(start)

	if err != nil {
		apiErr := AsAPIError(err)
		h.recordExecution(string(history.StatusFailed), elapsed)
		h.appendHistory(req, nil, apiErr)
		WriteError(w, apiErr, h.logger)
		return
	}

	h.recordExecution(string(history.StatusCompleted), elapsed)
	h.appendHistory(req, result, nil)
	WriteSuccess(w, result)
}

func (h *WorkflowHandler) recordExecution(status string, elapsed time.Duration) {
	if h.metrics != nil {
		h.metrics.RecordExecution(status, elapsed)
	}
}

func (h *WorkflowHandler) appendHistory(req ExecuteRequest, result *workflow.ExecutionResult, runErr *types.Error) {
	if h.store == nil || req.UserID == "" {
		return
	}

	rec := history.Record{
		UserID: req.UserID,
		Query:  req.Query,
	}
	if runErr != nil {
		rec.Status = history.StatusFailed
		rec.ErrorCode = string(runErr.Code)
		rec.ErrorMessage = runErr.Message
		rec.FailedNodeID = runErr.NodeID
	} else {
		rec.Status = history.StatusCompleted
		rec.Response = result.Response
		rec.Sources = result.Sources
		rec.ExecutionTimeMS = result.ExecutionTimeMS
	}
	h.store.Append(rec)
}

// executionView is an Execution with its sources decoded for the client.
type executionView struct {
	history.Execution
	Sources []string `json:"sources"`
}

// HandleListExecutions returns the most recent executions for a user.
func (h *WorkflowHandler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "execution history is not enabled", h.logger)
		return
	}

	userID := r.PathValue("user_id")
	if userID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "user_id is required", h.logger)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	executions, err := h.store.ListByUser(r.Context(), userID, limit)
	if err != nil {
		WriteError(w, AsAPIError(err), h.logger)
		return
	}

	views := make([]executionView, len(executions))
	for i := range executions {
		views[i] = executionView{Execution: executions[i], Sources: executions[i].Sources()}
	}
	WriteSuccess(w, views)
}

// HandleGetExecution returns a single execution by id.
func (h *WorkflowHandler) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "execution history is not enabled", h.logger)
		return
	}

	exec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, AsAPIError(err), h.logger)
		return
	}
	WriteSuccess(w, executionView{Execution: *exec, Sources: exec.Sources()})
}

// HandleStats returns aggregate execution statistics.
func (h *WorkflowHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "execution history is not enabled", h.logger)
		return
	}

	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		WriteError(w, AsAPIError(err), h.logger)
		return
	}
	WriteSuccess(w, stats)
}
