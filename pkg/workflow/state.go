// Package workflow implements the state machine that turns a natural
// language question into SQL and a final answer: planning, column and
// value retrieval, join-path discovery, SQL generation, execution,
// classified retries, and optional human confirmation checkpoints.
package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/valuerank"
)

// NodeName identifies one node of the workflow graph.
type NodeName string

const (
	NodePlanning          NodeName = "planning"
	NodeColumnSearch      NodeName = "column_search"
	NodeValueSearch       NodeName = "value_search"
	NodePathFinding       NodeName = "path_finding"
	NodeSQLGeneration     NodeName = "sql_generation"
	NodeHumanConfirmation NodeName = "human_confirmation"
	NodeSQLExecution      NodeName = "sql_execution"
	NodeRetryDecision     NodeName = "retry_decision"
	NodeAnswerGeneration  NodeName = "answer_generation"

	// nodeTerminated and nodeSuspended are routing sentinels, not nodes
	// with handlers. Terminated ends the run; suspended pauses it for
	// human input.
	nodeTerminated NodeName = "terminated"
	nodeSuspended  NodeName = "suspended"
)

// ConfirmationType says what a paused workflow is waiting on.
type ConfirmationType string

const (
	ConfirmationNone  ConfirmationType = ""
	ConfirmationPlan  ConfirmationType = "plan"
	ConfirmationSQL   ConfirmationType = "sql"
	ConfirmationError ConfirmationType = "error"
)

// JoinPath is one discovered join route, as a table sequence plus the
// rendered column-level path for prompt consumption.
type JoinPath struct {
	Tables   []string `json:"path"`
	FullPath string   `json:"full_path"`
}

// State is the mutable record threaded through one question's workflow.
// Every field is always present; it is created fresh per question and
// owned exclusively by the engine while a run is in flight. The zero
// values are the safe defaults.
//
// State serializes to JSON so a paused run can round-trip through an
// external caller as a resume token.
type State struct {
	RunID         string `json:"run_id"`
	Question      string `json:"question"`
	SchemaSummary string `json:"schema_summary"`

	CurrentStep   string `json:"current_step"`
	Iteration     int    `json:"iteration"`
	MaxIterations int    `json:"max_iterations"`
	NodeVisits    int    `json:"node_visits"`

	Plan            string   `json:"plan"`
	RequiredActions []Action `json:"required_actions"`

	RelevantColumns []models.ColumnHit      `json:"relevant_columns"`
	RelevantValues  []valuerank.RankedValue `json:"relevant_values"`
	JoinPaths       []JoinPath              `json:"join_paths"`

	SQLQuery   string   `json:"sql_query"`
	SQLQueries []string `json:"sql_queries"`

	SelectedPathIndices    []int  `json:"selected_path_indices"`
	PathSelectionReasoning string `json:"path_selection_reasoning"`

	// ExecutionResult and ExecutionError are mutually exclusive; at most
	// one is non-empty at a time.
	ExecutionResult string `json:"execution_result"`
	ExecutionError  string `json:"execution_error"`

	NeedsColumnSearch bool `json:"needs_column_search"`
	NeedsValueSearch  bool `json:"needs_value_search"`
	NeedsPathFinding  bool `json:"needs_path_finding"`
	ReadyToExecute    bool `json:"ready_to_execute"`

	PathFindingDeferred           bool     `json:"path_finding_deferred"`
	PathFindingFailed             bool     `json:"path_finding_failed"`
	PathFindingErrors             []string `json:"path_finding_errors"`
	SingleTableWithJoinIndicators bool     `json:"single_table_with_join_indicators"`
	ValueSearchErrors             []string `json:"value_search_errors"`

	HumanInteraction     bool             `json:"human_interaction"`
	AwaitingConfirmation bool             `json:"awaiting_confirmation"`
	ConfirmationType     ConfirmationType `json:"confirmation_type"`
	NeedsHumanInput      bool             `json:"needs_human_input"`
	HumanFeedback        string           `json:"human_feedback"`
	ResumeNode           NodeName         `json:"resume_node"`

	FinalAnswer string   `json:"final_answer"`
	Transcript  []string `json:"transcript"`
}

// NewState initializes the state for one question with safe defaults.
func NewState(question, schemaSummary string, maxIterations int, humanInteraction bool) *State {
	if maxIterations <= 0 {
		maxIterations = 3
	}
	return &State{
		RunID:            uuid.NewString(),
		Question:         question,
		SchemaSummary:    schemaSummary,
		CurrentStep:      "start",
		MaxIterations:    maxIterations,
		HumanInteraction: humanInteraction,
	}
}

// appendStep adds one entry to the append-only transcript.
func (s *State) appendStep(format string, args ...any) {
	s.Transcript = append(s.Transcript, fmt.Sprintf(format, args...))
}

// recordSQL appends a generated statement to the attempt history and
// makes it the current candidate. The history never shrinks.
func (s *State) recordSQL(sqlQuery string) {
	s.SQLQuery = sqlQuery
	s.SQLQueries = append(s.SQLQueries, sqlQuery)
}

// setExecutionError records a failed execution, clearing any result.
func (s *State) setExecutionError(errText string) {
	s.ExecutionError = errText
	s.ExecutionResult = ""
}

// setExecutionResult records a successful execution, clearing any error.
func (s *State) setExecutionResult(result string) {
	s.ExecutionResult = result
	s.ExecutionError = ""
}

// hasAction reports whether the plan requested the given action.
func (s *State) hasAction(action Action) bool {
	for _, a := range s.RequiredActions {
		if a == action {
			return true
		}
	}
	return false
}

// MarshalState serializes a paused state into a resume token.
func MarshalState(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow state: %w", err)
	}
	return data, nil
}

// UnmarshalState restores a state from a resume token.
func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize workflow state: %w", err)
	}
	return &s, nil
}
