package workflow

import (
	"fmt"
	"strings"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/valuerank"
)

// Serialized context snippets are size-bounded so a wide schema or a
// large value haul cannot blow up the generation prompt.
const (
	maxColumnsSnippet = 1000
	maxValuesSnippet  = 500
)

func buildPlanningPrompt(question, schemaSummary string) string {
	var prompt strings.Builder
	prompt.WriteString("You are a SQL generation planner. Analyze the user's question and determine what steps are needed.\n\n")
	prompt.WriteString("Available actions:\n")
	prompt.WriteString("- SearchColumn: Find relevant columns by semantic meaning (use for wide tables or when column names are unclear)\n")
	prompt.WriteString("- SearchValue: Find specific values in the database (use when looking for specific entities)\n")
	prompt.WriteString("- FindShortestPath: Find join paths between tables (use when joining 2+ tables)\n")
	prompt.WriteString("- GenerateSQL: Generate the SQL query\n")
	prompt.WriteString("- ExecuteSQL: Execute the SQL and get results\n\n")
	prompt.WriteString("Database Schema:\n")
	prompt.WriteString(schemaSummary)
	prompt.WriteString("\n\nQuestion: ")
	prompt.WriteString(question)
	prompt.WriteString("\n\nAnalyze the question and provide:\n")
	prompt.WriteString("1. A brief plan (2-3 sentences)\n")
	prompt.WriteString("2. Required actions as a comma-separated list\n\n")
	prompt.WriteString("Format your response as:\n")
	prompt.WriteString("PLAN: <your plan>\n")
	prompt.WriteString("ACTIONS: <action1>, <action2>, <action3>")
	return prompt.String()
}

func buildColumnSearchPrompt(s *State) string {
	var prompt strings.Builder
	prompt.WriteString("Based on the question and plan, identify what columns you need to search for.\n")
	prompt.WriteString("Provide 2-3 semantic descriptions of columns.\n\n")
	fmt.Fprintf(&prompt, "Question: %s\n", s.Question)
	fmt.Fprintf(&prompt, "Plan: %s\n", s.Plan)
	if s.ExecutionError != "" {
		fmt.Fprintf(&prompt, "\nThe previous SQL attempt failed with this error:\n%s\n", s.ExecutionError)
		prompt.WriteString("Target a replacement for the missing or misnamed column.\n")
	}
	prompt.WriteString("\nProvide column search queries as a comma-separated list:")
	return prompt.String()
}

func buildValueSearchPrompt(s *State) string {
	var prompt strings.Builder
	prompt.WriteString("Based on the question, identify specific values to search for in the database.\n")
	prompt.WriteString("These could be names, IDs, or other specific entities.\n\n")
	fmt.Fprintf(&prompt, "Question: %s\n", s.Question)
	fmt.Fprintf(&prompt, "Plan: %s\n", s.Plan)
	fmt.Fprintf(&prompt, "Relevant columns: %s\n\n", serializeColumns(s.RelevantColumns, maxValuesSnippet))
	prompt.WriteString("If there are specific values to search for, provide them as a comma-separated list.\n")
	fmt.Fprintf(&prompt, "If no specific values are needed, respond with: %s\n\n", NoneSentinel)
	prompt.WriteString("Search values:")
	return prompt.String()
}

func buildSQLGenerationPrompt(s *State) string {
	var prompt strings.Builder
	prompt.WriteString("You are an expert SQL query generator. Generate a SQL query to answer the question.\n\n")
	fmt.Fprintf(&prompt, "Question: %s\n\n", s.Question)
	prompt.WriteString("Database Schema Summary:\n")
	prompt.WriteString(s.SchemaSummary)
	prompt.WriteString("\n\nRelevant Columns:\n")
	prompt.WriteString(serializeColumns(s.RelevantColumns, maxColumnsSnippet))
	prompt.WriteString("\n\nRelevant Values:\n")
	prompt.WriteString(serializeValues(s.RelevantValues, maxValuesSnippet))
	prompt.WriteString("\n\nJoin Paths (reference by index):\n")
	prompt.WriteString(serializeJoinPaths(s.JoinPaths))
	if len(s.SQLQueries) > 0 {
		prompt.WriteString("\n\nPrevious SQL attempts:\n")
		prompt.WriteString(strings.Join(s.SQLQueries, "\n"))
	}
	if s.ExecutionError != "" {
		fmt.Fprintf(&prompt, "\n\nThe last attempt failed with:\n%s", s.ExecutionError)
	}
	if s.HumanFeedback != "" {
		fmt.Fprintf(&prompt, "\n\nHuman feedback to incorporate:\n%s", s.HumanFeedback)
	}
	prompt.WriteString("\n\nRespond with a JSON object and nothing else:\n")
	prompt.WriteString(`{"path_indices": [<indices of join paths you used>], "reasoning": "<one sentence on why>", "sql": "<the SQL query>"}`)
	return prompt.String()
}

func buildAnswerPrompt(s *State) string {
	var prompt strings.Builder
	prompt.WriteString("Generate a natural language answer to the user's question based on the SQL execution result.\n\n")
	fmt.Fprintf(&prompt, "Question: %s\n", s.Question)
	fmt.Fprintf(&prompt, "SQL Query: %s\n", s.SQLQuery)
	fmt.Fprintf(&prompt, "Result: %s\n\n", s.ExecutionResult)
	prompt.WriteString("Provide a clear, concise answer:")
	return prompt.String()
}

func buildFailureAnswerPrompt(s *State) string {
	var prompt strings.Builder
	prompt.WriteString("The system could not answer the user's question: every SQL attempt failed.\n\n")
	fmt.Fprintf(&prompt, "Question: %s\n", s.Question)
	if len(s.SQLQueries) > 0 {
		prompt.WriteString("Attempted queries:\n")
		prompt.WriteString(strings.Join(s.SQLQueries, "\n"))
		prompt.WriteString("\n")
	}
	fmt.Fprintf(&prompt, "Last error: %s\n\n", s.ExecutionError)
	prompt.WriteString("Explain in plain language why the question could not be answered and suggest how the user might rephrase it. Do not include raw SQL or raw error text.")
	return prompt.String()
}

func serializeColumns(columns []models.ColumnHit, maxLen int) string {
	if len(columns) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, col := range columns {
		line := fmt.Sprintf("- %s (%s)", col.Key(), col.DataType)
		if col.Description != "" {
			line += ": " + col.Description
		}
		if col.Statistics != "" {
			line += ". " + col.Statistics
		}
		if b.Len()+len(line)+1 > maxLen {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func serializeValues(values []valuerank.RankedValue, maxLen int) string {
	if len(values) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, v := range values {
		line := fmt.Sprintf("- %q in %s.%s", v.Value, v.Table, v.Column)
		if b.Len()+len(line)+1 > maxLen {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func serializeJoinPaths(paths []JoinPath) string {
	if len(paths) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, p := range paths {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i, strings.Join(p.Tables, " -> "), p.FullPath)
	}
	return strings.TrimRight(b.String(), "\n")
}
