package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/logging"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/schemagraph"
	sqlutil "github.com/sqlpilot-ai/sqlpilot-engine/pkg/sql"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/valuerank"
)

const (
	// columnSearchK is how many hits semantic column search returns per query.
	columnSearchK = 5
	// minColumnHits triggers the all-columns fallback when retrieval
	// surfaces fewer distinct columns than this.
	minColumnHits = 3
	// maxFallbackColumns bounds the all-columns fallback enumeration.
	maxFallbackColumns = 50
	// maxSearchQueries caps derived column and value search queries.
	maxSearchQueries = 3
	// valueSearchLimit bounds results per value query.
	valueSearchLimit = 5

	// DefaultMaxNodeVisits guards the routing graph against cycles.
	DefaultMaxNodeVisits = 50
)

// ErrorAnswerPrefix marks a final answer that explains a failure rather
// than reporting a result.
const ErrorAnswerPrefix = "Unable to answer: "

// ColumnSearcher is the semantic column search the engine consumes.
type ColumnSearcher interface {
	SearchColumns(ctx context.Context, queries []string, k int) (map[string][]models.ColumnHit, error)
}

// ValueSearcher finds matching cell values for a literal fragment.
type ValueSearcher interface {
	Search(ctx context.Context, query, table, column string, limit int) ([]valuerank.RankedValue, error)
}

// PathFinder exposes the schema-graph operations the engine needs.
// *schemagraph.Graph satisfies it.
type PathFinder interface {
	ShortestPath(start, end string) ([]string, error)
	TableColumns(table string) []string
	Tables() []string
	AllNodes() []*schemagraph.Node
}

// Dependencies are the collaborators an engine is wired with.
type Dependencies struct {
	LLM      llm.LLMClient
	Columns  ColumnSearcher
	Values   ValueSearcher
	Paths    PathFinder
	Executor datasource.SQLExecutor
}

// Options tune engine behavior per deployment.
type Options struct {
	MaxIterations    int
	HumanInteraction bool
	MaxNodeVisits    int
}

type nodeHandler func(ctx context.Context, s *State) (Event, error)

// Engine runs the question-to-answer workflow. One engine serves many
// questions; each Run owns its State exclusively.
type Engine struct {
	deps        Dependencies
	opts        Options
	transitions transitionTable
	handlers    map[NodeName]nodeHandler
	logger      *zap.Logger
}

// NewEngine validates dependencies and the transition table up front so
// a miswired graph fails at startup, not mid-question.
func NewEngine(deps Dependencies, opts Options, logger *zap.Logger) (*Engine, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("workflow engine requires an LLM client")
	}
	if deps.Columns == nil {
		return nil, fmt.Errorf("workflow engine requires a column searcher")
	}
	if deps.Values == nil {
		return nil, fmt.Errorf("workflow engine requires a value searcher")
	}
	if deps.Paths == nil {
		return nil, fmt.Errorf("workflow engine requires a path finder")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("workflow engine requires a SQL executor")
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 3
	}
	if opts.MaxNodeVisits <= 0 {
		opts.MaxNodeVisits = DefaultMaxNodeVisits
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transitions := newTransitionTable()
	if err := transitions.validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow transition table: %w", err)
	}

	e := &Engine{
		deps:        deps,
		opts:        opts,
		transitions: transitions,
		logger:      logger.Named("workflow"),
	}
	e.handlers = map[NodeName]nodeHandler{
		NodePlanning:          e.planningNode,
		NodeColumnSearch:      e.columnSearchNode,
		NodeValueSearch:       e.valueSearchNode,
		NodePathFinding:       e.pathFindingNode,
		NodeSQLGeneration:     e.sqlGenerationNode,
		NodeHumanConfirmation: e.humanConfirmationNode,
		NodeSQLExecution:      e.sqlExecutionNode,
		NodeRetryDecision:     e.retryDecisionNode,
		NodeAnswerGeneration:  e.answerGenerationNode,
	}
	return e, nil
}

// Run executes the workflow for one question. maxIterations overrides
// the configured generation budget for this run when positive; zero or
// negative keeps the engine default. When human interaction is enabled
// the returned state may be paused (NeedsHumanInput true); the caller
// stores it and later calls Resume with the user's feedback.
func (e *Engine) Run(ctx context.Context, question, schemaSummary string, maxIterations int) (*State, error) {
	if maxIterations <= 0 {
		maxIterations = e.opts.MaxIterations
	}
	s := NewState(question, schemaSummary, maxIterations, e.opts.HumanInteraction)
	e.logger.Info("workflow started",
		zap.String("run_id", s.RunID),
		zap.String("question", question))
	return e.loop(ctx, s, NodePlanning)
}

// Resume continues a paused workflow with the supplied human feedback,
// re-entering the graph at the recorded resume node.
func (e *Engine) Resume(ctx context.Context, s *State, feedback string) (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot resume a nil state")
	}
	if !s.NeedsHumanInput {
		return nil, fmt.Errorf("state is not awaiting human input")
	}
	start := s.ResumeNode
	if _, ok := e.handlers[start]; !ok {
		return nil, fmt.Errorf("state has invalid resume node %q", start)
	}
	s.HumanFeedback = feedback
	s.NeedsHumanInput = false
	s.AwaitingConfirmation = false
	s.appendStep("resumed after %s confirmation", s.ConfirmationType)
	e.logger.Info("workflow resumed",
		zap.String("run_id", s.RunID),
		zap.String("confirmation_type", string(s.ConfirmationType)),
		zap.String("resume_node", string(start)))
	return e.loop(ctx, s, start)
}

func (e *Engine) loop(ctx context.Context, s *State, start NodeName) (*State, error) {
	current := start
	for current != nodeTerminated {
		if s.NodeVisits >= e.opts.MaxNodeVisits {
			e.logger.Warn("node visit budget exhausted", zap.Int("visits", s.NodeVisits))
			s.appendStep("node visit budget exhausted after %d steps", s.NodeVisits)
			if s.FinalAnswer == "" {
				s.FinalAnswer = ErrorAnswerPrefix + "the question required more processing steps than allowed. Please try a simpler phrasing."
			}
			s.CurrentStep = "budget_exhausted"
			return s, nil
		}
		s.NodeVisits++

		handler, ok := e.handlers[current]
		if !ok {
			return s, fmt.Errorf("no handler for workflow node %q", current)
		}
		event, err := handler(ctx, s)
		if err != nil {
			return s, fmt.Errorf("workflow node %s failed: %w", current, err)
		}

		next, err := e.transitions.next(current, event)
		if err != nil {
			return s, err
		}
		e.logger.Debug("workflow transition",
			zap.String("from", string(current)),
			zap.String("event", string(event)),
			zap.String("to", string(next)))

		if next == nodeSuspended {
			return s, nil
		}
		current = next
	}
	e.logger.Info("workflow finished",
		zap.Int("iterations", s.Iteration),
		zap.Int("node_visits", s.NodeVisits),
		zap.Int("sql_attempts", len(s.SQLQueries)))
	return s, nil
}

// nextRetrievalEvent picks the next pending retrieval step from the
// decision flags, falling through to generation.
func nextRetrievalEvent(s *State) Event {
	switch {
	case s.NeedsColumnSearch:
		return EventColumnsNeeded
	case s.NeedsValueSearch:
		return EventValuesNeeded
	case s.NeedsPathFinding:
		return EventPathsNeeded
	default:
		return EventGenerate
	}
}

// nodeForEvent resolves where a retrieval event lands, used to record
// resume targets for confirmation checkpoints.
func (e *Engine) nodeForEvent(from NodeName, event Event) NodeName {
	next, err := e.transitions.next(from, event)
	if err != nil {
		return NodeSQLGeneration
	}
	return next
}

func (e *Engine) planningNode(ctx context.Context, s *State) (Event, error) {
	response, err := e.deps.LLM.Complete(ctx, buildPlanningPrompt(s.Question, s.SchemaSummary), "")
	if err != nil {
		return "", fmt.Errorf("planning completion failed: %w", err)
	}

	plan, actions := ParsePlan(response)
	s.Plan = plan
	s.RequiredActions = actions
	s.NeedsColumnSearch = s.hasAction(ActionSearchColumn)
	s.NeedsValueSearch = s.hasAction(ActionSearchValue)
	s.NeedsPathFinding = s.hasAction(ActionFindShortestPath)
	s.CurrentStep = "planning_complete"
	s.appendStep("plan: %s (actions: %s)", plan, joinActions(actions))
	e.logger.Debug("plan parsed", zap.String("plan", plan), zap.Int("actions", len(actions)))

	if s.HumanInteraction {
		s.ConfirmationType = ConfirmationPlan
		s.ResumeNode = e.nodeForEvent(NodePlanning, nextRetrievalEvent(s))
		return EventConfirm, nil
	}
	return nextRetrievalEvent(s), nil
}

func (e *Engine) columnSearchNode(ctx context.Context, s *State) (Event, error) {
	retry := s.ExecutionError != ""

	response, err := e.deps.LLM.Complete(ctx, buildColumnSearchPrompt(s), "")
	if err != nil {
		return "", fmt.Errorf("column search completion failed: %w", err)
	}
	queries := ParseCommaList(response, maxSearchQueries)

	var hits []models.ColumnHit
	if len(queries) > 0 {
		results, err := e.deps.Columns.SearchColumns(ctx, queries, columnSearchK)
		if err != nil {
			e.logger.Warn("semantic column search failed", zap.Error(err))
		} else {
			hits = flattenColumnHits(queries, results)
		}
	}

	if len(hits) < minColumnHits {
		fallback := e.allColumnsFallback()
		s.appendStep("column search found %d columns, falling back to full enumeration (%d columns)", len(hits), len(fallback))
		hits = fallback
	}

	s.RelevantColumns = hits
	s.NeedsColumnSearch = false
	s.CurrentStep = "column_search_complete"
	s.appendStep("found %d relevant columns", len(hits))

	if retry {
		// Targeted re-search after a missing-column error goes straight
		// back to generation so the replacement column is tried at once.
		s.NeedsValueSearch = false
		s.NeedsPathFinding = false
		return EventGenerate, nil
	}
	if s.NeedsValueSearch {
		return EventValuesNeeded, nil
	}
	// Path finding always gets a look; the node itself decides whether
	// the query is genuinely single-table.
	return EventPathsNeeded, nil
}

func (e *Engine) valueSearchNode(ctx context.Context, s *State) (Event, error) {
	response, err := e.deps.LLM.Complete(ctx, buildValueSearchPrompt(s), "")
	if err != nil {
		return "", fmt.Errorf("value search completion failed: %w", err)
	}

	if IsNoneSentinel(response) {
		s.NeedsValueSearch = false
		s.CurrentStep = "value_search_skipped"
		s.appendStep("value search skipped (not needed)")
		return EventPathsNeeded, nil
	}

	for _, query := range ParseCommaList(response, maxSearchQueries) {
		values, err := e.deps.Values.Search(ctx, query, "", "", valueSearchLimit)
		if err != nil {
			s.ValueSearchErrors = append(s.ValueSearchErrors, fmt.Sprintf("%s: %v", query, err))
			e.logger.Warn("value search failed", zap.String("query", query), zap.Error(err))
			continue
		}
		s.RelevantValues = append(s.RelevantValues, values...)
	}

	s.NeedsValueSearch = false
	s.CurrentStep = "value_search_complete"
	s.appendStep("found %d relevant values", len(s.RelevantValues))
	return EventPathsNeeded, nil
}

func (e *Engine) pathFindingNode(ctx context.Context, s *State) (Event, error) {
	tables := tablesFromColumns(s.RelevantColumns)
	planned := s.hasAction(ActionFindShortestPath)

	if len(tables) < 2 {
		if !planned && !HasJoinIndicators(s.Question) {
			s.NeedsPathFinding = false
			s.CurrentStep = "path_finding_skipped"
			s.appendStep("path finding skipped (single table query)")
			return EventGenerate, nil
		}
		s.PathFindingDeferred = true
		s.SingleTableWithJoinIndicators = HasJoinIndicators(s.Question)
		s.NeedsPathFinding = false
		s.CurrentStep = "path_finding_deferred"
		s.appendStep("path finding deferred: single table so far but the question suggests a join")
		return EventGenerate, nil
	}

	paths, errs := e.discoverPaths(tables)
	s.JoinPaths = paths
	s.PathFindingErrors = append(s.PathFindingErrors, errs...)
	if planned && len(paths) == 0 {
		s.PathFindingFailed = true
	}
	s.NeedsPathFinding = false
	s.CurrentStep = "path_finding_complete"
	s.appendStep("found %d join paths across %d tables", len(paths), len(tables))
	return EventGenerate, nil
}

func (e *Engine) sqlGenerationNode(ctx context.Context, s *State) (Event, error) {
	e.maybeRecoverPaths(s)

	response, err := e.deps.LLM.Complete(ctx, buildSQLGenerationPrompt(s), "")
	if err != nil {
		return "", fmt.Errorf("sql generation completion failed: %w", err)
	}

	parsed := ParseSQLResponse(response)
	s.SelectedPathIndices = parsed.PathIndices
	s.PathSelectionReasoning = parsed.Reasoning

	sqlText := parsed.SQL
	if result := sqlutil.ValidateAndNormalize(sqlText); result.Error == nil {
		sqlText = result.NormalizedSQL
	} else {
		e.logger.Debug("generated SQL failed validation, passing through raw",
			zap.Error(result.Error),
			zap.String("sql", logging.TruncateSQL(sqlText)))
	}

	s.recordSQL(sqlText)
	s.Iteration++
	s.ReadyToExecute = true
	s.CurrentStep = "sql_generated"
	s.appendStep("generated SQL attempt %d: %s", s.Iteration, logging.TruncateSQL(sqlText))
	e.logger.Info("sql generated",
		zap.Int("iteration", s.Iteration),
		zap.String("sql", logging.TruncateSQL(sqlText)))

	if s.HumanInteraction {
		s.ConfirmationType = ConfirmationSQL
		s.ResumeNode = NodeSQLExecution
		return EventConfirm, nil
	}
	return EventExecute, nil
}

// maybeRecoverPaths runs the fallback path-discovery pass before
// generation when discovery was deferred, or when the last error looks
// join-related and no paths are known yet. Candidate tables come from
// the relevant columns plus capitalized words in the error text.
func (e *Engine) maybeRecoverPaths(s *State) {
	deferred := s.PathFindingDeferred
	joinError := s.ExecutionError != "" && IsJoinRelatedError(s.ExecutionError) && len(s.JoinPaths) == 0
	if !deferred && !joinError {
		return
	}

	tables := tablesFromColumns(s.RelevantColumns)
	for _, t := range TablesFromErrorText(s.ExecutionError, e.deps.Paths.Tables()) {
		if !containsString(tables, t) {
			tables = append(tables, t)
		}
	}
	sort.Strings(tables)
	if len(tables) < 2 {
		return
	}

	paths, errs := e.discoverPaths(tables)
	s.PathFindingErrors = append(s.PathFindingErrors, errs...)
	if len(paths) > 0 {
		s.JoinPaths = paths
		s.PathFindingDeferred = false
		s.PathFindingFailed = false
		s.appendStep("recovered %d join paths before generation", len(paths))
	}
}

// discoverPaths finds one shortest path per consecutive pair of the
// given (deterministically ordered) table list, using each table's
// first known column as its representative endpoint.
func (e *Engine) discoverPaths(tables []string) ([]JoinPath, []string) {
	var paths []JoinPath
	var errs []string
	for i := 0; i+1 < len(tables); i++ {
		start := e.representativeColumn(tables[i])
		end := e.representativeColumn(tables[i+1])
		path, err := e.deps.Paths.ShortestPath(start, end)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s -> %s: %v", tables[i], tables[i+1], err))
			continue
		}
		if len(path) == 0 {
			errs = append(errs, fmt.Sprintf("no join path between %s and %s", tables[i], tables[i+1]))
			continue
		}
		paths = append(paths, JoinPath{
			Tables:   schemagraph.TablesAlongPath(path),
			FullPath: strings.Join(path, " <-> "),
		})
	}
	return paths, errs
}

func (e *Engine) representativeColumn(table string) string {
	if cols := e.deps.Paths.TableColumns(table); len(cols) > 0 {
		return cols[0]
	}
	return table + ".id"
}

func (e *Engine) allColumnsFallback() []models.ColumnHit {
	nodes := e.deps.Paths.AllNodes()
	hits := make([]models.ColumnHit, 0, len(nodes))
	for _, n := range nodes {
		if len(hits) == maxFallbackColumns {
			break
		}
		hits = append(hits, models.ColumnHit{
			Table:       n.Table,
			Column:      n.Column,
			DataType:    n.DataType,
			Description: n.Description,
			Statistics:  n.Statistics,
		})
	}
	return hits
}

func (e *Engine) humanConfirmationNode(ctx context.Context, s *State) (Event, error) {
	s.AwaitingConfirmation = true
	s.NeedsHumanInput = true
	s.CurrentStep = "awaiting_" + string(s.ConfirmationType) + "_confirmation"
	s.appendStep("paused for %s confirmation", s.ConfirmationType)
	e.logger.Info("workflow paused for confirmation",
		zap.String("confirmation_type", string(s.ConfirmationType)))
	return EventPause, nil
}

func (e *Engine) sqlExecutionNode(ctx context.Context, s *State) (Event, error) {
	if s.SQLQuery == "" {
		s.setExecutionError("no SQL query to execute")
		s.CurrentStep = "execution_failed"
		return EventEvaluate, nil
	}

	if v := sqlutil.ValidateAndNormalize(s.SQLQuery); v.Error != nil {
		s.setExecutionError(fmt.Sprintf("query rejected before execution: %v", v.Error))
		s.CurrentStep = "execution_failed"
		s.appendStep("query rejected before execution: %v", v.Error)
		s.ReadyToExecute = false
		return EventEvaluate, nil
	}

	result, err := e.deps.Executor.Execute(ctx, s.SQLQuery)
	s.ReadyToExecute = false
	if err != nil {
		s.setExecutionError(err.Error())
		s.CurrentStep = "execution_failed"
		s.appendStep("execution failed: %s", err.Error())
		e.logger.Warn("sql execution failed",
			zap.String("sql", logging.TruncateSQL(s.SQLQuery)),
			zap.Error(err))
		return EventEvaluate, nil
	}

	rendered := datasource.RenderResult(result)
	if hasErrorMarker(rendered) {
		s.setExecutionError(rendered)
		s.CurrentStep = "execution_failed"
		s.appendStep("execution returned an error: %s", rendered)
		return EventEvaluate, nil
	}

	s.setExecutionResult(rendered)
	s.CurrentStep = "execution_complete"
	s.appendStep("execution succeeded (%d rows)", len(result.Rows))
	return EventEvaluate, nil
}

func (e *Engine) retryDecisionNode(ctx context.Context, s *State) (Event, error) {
	if s.ExecutionError != "" && s.Iteration < s.MaxIterations {
		if s.HumanInteraction && s.Iteration == s.MaxIterations-1 {
			s.ConfirmationType = ConfirmationError
			s.ResumeNode = NodeSQLGeneration
			s.appendStep("last retry remaining, asking for guidance")
			return EventConfirm, nil
		}
		if IsMissingColumnError(s.ExecutionError) {
			s.NeedsColumnSearch = true
			s.appendStep("retrying with targeted column re-search")
			return EventRetryColumns, nil
		}
		s.appendStep("retrying SQL generation")
		return EventRetryGenerate, nil
	}
	if s.ExecutionError == "" && s.ExecutionResult != "" {
		return EventAnswer, nil
	}
	if s.ExecutionError != "" {
		s.appendStep("iteration budget exhausted with a persistent error")
		return EventAnswer, nil
	}
	// No result and no error. Nothing left to do.
	return EventDone, nil
}

func (e *Engine) answerGenerationNode(ctx context.Context, s *State) (Event, error) {
	failed := s.ExecutionError != "" && s.ExecutionResult == ""

	var prompt string
	if failed {
		prompt = buildFailureAnswerPrompt(s)
	} else {
		prompt = buildAnswerPrompt(s)
	}

	response, err := e.deps.LLM.Complete(ctx, prompt, "")
	if err != nil || strings.TrimSpace(response) == "" {
		if err != nil {
			e.logger.Warn("answer generation failed", zap.Error(err))
		}
		if failed {
			s.FinalAnswer = ErrorAnswerPrefix + "the generated SQL could not be executed against the database. Please try rephrasing the question."
		} else {
			s.FinalAnswer = s.ExecutionResult
		}
	} else if failed {
		s.FinalAnswer = ErrorAnswerPrefix + strings.TrimSpace(response)
	} else {
		s.FinalAnswer = strings.TrimSpace(response)
	}

	s.CurrentStep = "complete"
	s.appendStep("final answer generated")
	return EventDone, nil
}

// flattenColumnHits merges per-query results in query order, dropping
// duplicate columns, so the outcome is deterministic.
func flattenColumnHits(queries []string, results map[string][]models.ColumnHit) []models.ColumnHit {
	seen := make(map[string]struct{})
	var out []models.ColumnHit
	for _, query := range queries {
		for _, hit := range results[query] {
			if _, dup := seen[hit.Key()]; dup {
				continue
			}
			seen[hit.Key()] = struct{}{}
			out = append(out, hit)
		}
	}
	return out
}

// tablesFromColumns returns the distinct tables of the hits, sorted.
func tablesFromColumns(columns []models.ColumnHit) []string {
	seen := make(map[string]struct{})
	var tables []string
	for _, col := range columns {
		if _, dup := seen[col.Table]; dup {
			continue
		}
		seen[col.Table] = struct{}{}
		tables = append(tables, col.Table)
	}
	sort.Strings(tables)
	return tables
}

// hasErrorMarker treats a result payload that reads like an error
// message the same as a failed execution.
func hasErrorMarker(rendered string) bool {
	trimmed := strings.TrimSpace(rendered)
	return strings.HasPrefix(strings.ToLower(trimmed), "error") ||
		strings.Contains(trimmed, "Error:")
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func joinActions(actions []Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
