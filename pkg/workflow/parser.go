package workflow

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
)

// Action is one step the planner can request.
type Action string

const (
	ActionSearchColumn     Action = "SearchColumn"
	ActionSearchValue      Action = "SearchValue"
	ActionFindShortestPath Action = "FindShortestPath"
	ActionGenerateSQL      Action = "GenerateSQL"
	ActionExecuteSQL       Action = "ExecuteSQL"
)

// NoneSentinel is the literal the model returns when a step has nothing
// to do.
const NoneSentinel = "NONE"

// ReasonParseFailed is recorded when the structured SQL response could
// not be parsed and the raw text was used as the SQL instead.
const ReasonParseFailed = "Failed to parse structured response"

var knownActions = map[string]Action{
	"searchcolumn":     ActionSearchColumn,
	"searchvalue":      ActionSearchValue,
	"findshortestpath": ActionFindShortestPath,
	"generatesql":      ActionGenerateSQL,
	"executesql":       ActionExecuteSQL,
}

// ParsePlan extracts the plan line and the action list from the
// planner's two-line "PLAN: ..." / "ACTIONS: ..." response. Malformed
// input degrades to an empty plan and empty action list; unrecognized
// action names are dropped.
func ParsePlan(response string) (string, []Action) {
	var plan string
	var actions []Action

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "PLAN:"):
			plan = strings.TrimSpace(strings.TrimPrefix(line, "PLAN:"))
		case strings.HasPrefix(line, "ACTIONS:"):
			for _, part := range strings.Split(strings.TrimPrefix(line, "ACTIONS:"), ",") {
				key := strings.ToLower(strings.TrimSpace(part))
				if action, ok := knownActions[key]; ok {
					actions = append(actions, action)
				}
			}
		}
	}
	return plan, actions
}

// ParseCommaList splits a comma-separated model response into trimmed,
// deduplicated entries, capped at max (0 means unbounded).
func ParseCommaList(response string, max int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(response, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		key := strings.ToLower(entry)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entry)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// IsNoneSentinel reports whether the response declines the step.
func IsNoneSentinel(response string) bool {
	trimmed := strings.TrimSpace(response)
	return trimmed == "" || strings.EqualFold(trimmed, NoneSentinel)
}

// SQLResponse is the structured payload the generation prompt asks for.
type SQLResponse struct {
	PathIndices []int  `json:"path_indices"`
	Reasoning   string `json:"reasoning"`
	SQL         string `json:"sql"`
}

// ParseSQLResponse parses the structured generation response, tolerating
// code fences and trailing commas. On any parse failure it falls back to
// treating the fence-stripped raw text as the SQL with an empty path
// selection and the ReasonParseFailed sentinel.
func ParseSQLResponse(raw string) SQLResponse {
	parsed, err := llm.ParseJSONResponse[SQLResponse](raw)
	if err == nil && strings.TrimSpace(parsed.SQL) != "" {
		parsed.SQL = strings.TrimSpace(parsed.SQL)
		return parsed
	}
	return SQLResponse{
		Reasoning: ReasonParseFailed,
		SQL:       strings.TrimSpace(llm.StripCodeFences(raw)),
	}
}

// joinErrorIndicators mark execution errors caused by missing or
// misjoined schema elements, where rediscovering join paths can help.
var joinErrorIndicators = []string{
	"no such column",
	"ambiguous column",
	"unknown column",
	"table not found",
	"no such table",
	"foreign key",
}

// IsJoinRelatedError reports whether an execution error looks like a
// join or schema-reference problem.
func IsJoinRelatedError(errText string) bool {
	lower := strings.ToLower(errText)
	for _, indicator := range joinErrorIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// IsMissingColumnError reports whether the error names a column the
// statement referenced but the schema lacks, which warrants a targeted
// column re-search rather than blind regeneration.
func IsMissingColumnError(errText string) bool {
	return strings.Contains(strings.ToLower(errText), "no such column")
}

// joinIndicatorPhrases suggest the question spans multiple tables even
// when retrieval only surfaced columns from one.
var joinIndicatorPhrases = []string{
	"who played",
	"matches with",
	"between",
	"and their",
	"and his",
	"and her",
	"with their",
	"for each",
	"join",
	"belong to",
	"played for",
	"scored by",
}

// HasJoinIndicators reports whether the question contains relational
// phrasing that usually implies a join.
func HasJoinIndicators(question string) bool {
	lower := strings.ToLower(question)
	for _, phrase := range joinIndicatorPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// TablesFromErrorText extracts candidate table names from an execution
// error by matching capitalized words (and their singular/plural forms)
// against the known table set. Results follow the order of first
// appearance in the error text.
func TablesFromErrorText(errText string, knownTables []string) []string {
	if errText == "" || len(knownTables) == 0 {
		return nil
	}
	known := make(map[string]string, len(knownTables))
	for _, table := range knownTables {
		known[strings.ToLower(table)] = table
	}

	seen := make(map[string]struct{})
	var out []string
	for _, word := range strings.FieldsFunc(errText, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		first, _ := utf8.DecodeRuneInString(word)
		if !unicode.IsUpper(first) {
			continue
		}
		for _, candidate := range []string{word, inflection.Singular(word), inflection.Plural(word)} {
			table, ok := known[strings.ToLower(candidate)]
			if !ok {
				continue
			}
			if _, dup := seen[table]; dup {
				break
			}
			seen[table] = struct{}{}
			out = append(out, table)
			break
		}
	}
	return out
}
