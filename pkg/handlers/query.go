package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/valuerank"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/workflow"
)

// WorkflowRunner is the engine surface the query endpoints consume.
type WorkflowRunner interface {
	Run(ctx context.Context, question, schemaSummary string, maxIterations int) (*workflow.State, error)
	Resume(ctx context.Context, s *workflow.State, feedback string) (*workflow.State, error)
}

// QueryRequest is the POST /api/query payload. MaxIterations optionally
// overrides the configured SQL generation budget for this question.
type QueryRequest struct {
	Question      string `json:"question"`
	MaxIterations int    `json:"max_iterations"`
}

// ResumeRequest is the POST /api/query/resume payload. ResumeToken is
// the opaque token a paused QueryResponse carried.
type ResumeRequest struct {
	ResumeToken json.RawMessage `json:"resume_token"`
	Feedback    string          `json:"feedback"`
}

// QueryResponse is the result of a completed or paused workflow run.
type QueryResponse struct {
	RunID                  string                    `json:"run_id"`
	Question               string                    `json:"question"`
	FinalAnswer            string                    `json:"final_answer"`
	Plan                   string                    `json:"plan"`
	SQLAttempts            []string                  `json:"sql_attempts"`
	LastSQL                string                    `json:"last_sql"`
	ExecutionResult        string                    `json:"execution_result"`
	ExecutionError         string                    `json:"execution_error,omitempty"`
	RelevantColumns        []models.ColumnHit        `json:"relevant_columns"`
	RelevantValues         []valuerank.RankedValue   `json:"relevant_values"`
	JoinPaths              []workflow.JoinPath       `json:"join_paths"`
	SelectedPathIndices    []int                     `json:"selected_path_indices"`
	PathSelectionReasoning string                    `json:"path_selection_reasoning"`
	Transcript             []string                  `json:"transcript"`
	NeedsHumanInput        bool                      `json:"needs_human_input"`
	ConfirmationType       workflow.ConfirmationType `json:"confirmation_type,omitempty"`
	ResumeToken            json.RawMessage           `json:"resume_token,omitempty"`
}

// QueryHandler serves question answering over the workflow engine.
// The schema summary is read through a provider so a rebuild is picked
// up by later requests.
type QueryHandler struct {
	runner        WorkflowRunner
	schemaSummary func() string
	logger        *zap.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(runner WorkflowRunner, schemaSummary func() string, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		runner:        runner,
		schemaSummary: schemaSummary,
		logger:        logger.Named("query_handler"),
	}
}

// RegisterRoutes registers the query endpoints on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
	mux.HandleFunc("POST /api/query/resume", h.Resume)
}

// Query handles POST /api/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	state, err := h.runner.Run(r.Context(), req.Question, h.schemaSummary(), req.MaxIterations)
	if err != nil {
		h.logger.Error("workflow run failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "workflow_failed", "failed to process question")
		return
	}
	h.writeState(w, state)
}

// Resume handles POST /api/query/resume.
func (h *QueryHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if len(req.ResumeToken) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "resume_token is required")
		return
	}

	state, err := workflow.UnmarshalState(req.ResumeToken)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_token", "resume_token is not a valid workflow state")
		return
	}

	state, err = h.runner.Resume(r.Context(), state, req.Feedback)
	if err != nil {
		h.logger.Error("workflow resume failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadRequest, "resume_failed", err.Error())
		return
	}
	h.writeState(w, state)
}

func (h *QueryHandler) writeState(w http.ResponseWriter, state *workflow.State) {
	resp := QueryResponse{
		RunID:                  state.RunID,
		Question:               state.Question,
		FinalAnswer:            state.FinalAnswer,
		Plan:                   state.Plan,
		SQLAttempts:            state.SQLQueries,
		LastSQL:                state.SQLQuery,
		ExecutionResult:        state.ExecutionResult,
		ExecutionError:         state.ExecutionError,
		RelevantColumns:        state.RelevantColumns,
		RelevantValues:         state.RelevantValues,
		JoinPaths:              state.JoinPaths,
		SelectedPathIndices:    state.SelectedPathIndices,
		PathSelectionReasoning: state.PathSelectionReasoning,
		Transcript:             state.Transcript,
		NeedsHumanInput:        state.NeedsHumanInput,
	}
	if state.NeedsHumanInput {
		resp.ConfirmationType = state.ConfirmationType
		token, err := workflow.MarshalState(state)
		if err != nil {
			h.logger.Error("failed to serialize resume token", zap.Error(err))
			_ = ErrorResponse(w, http.StatusInternalServerError, "serialization_failed", "failed to serialize workflow state")
			return
		}
		resp.ResumeToken = token
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to encode query response", zap.Error(err))
	}
}
