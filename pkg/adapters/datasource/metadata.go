package datasource

import (
	"context"
	"fmt"
	"strings"
)

// MaxResultRows is the hard cap on rows rendered from a query result.
// Larger results are truncated with a marker so prompts stay bounded.
const MaxResultRows = 100

// IsTextType reports whether a declared column type holds text.
// Covers SQLite affinity names and the common PostgreSQL type names.
func IsTextType(dataType string) bool {
	t := strings.ToUpper(dataType)
	return strings.Contains(t, "TEXT") ||
		strings.Contains(t, "CHAR") ||
		strings.Contains(t, "CLOB") ||
		strings.Contains(t, "NAME") ||
		strings.Contains(t, "UUID")
}

// IsNumericType reports whether a declared column type is numeric.
func IsNumericType(dataType string) bool {
	t := strings.ToUpper(dataType)
	return strings.Contains(t, "INT") ||
		strings.Contains(t, "REAL") ||
		strings.Contains(t, "NUMERIC") ||
		strings.Contains(t, "DECIMAL") ||
		strings.Contains(t, "DOUBLE") ||
		strings.Contains(t, "FLOAT") ||
		strings.Contains(t, "SERIAL")
}

// BuildSchemaSummary renders a short schema overview: the table list and
// all declared foreign keys. This text anchors the planning and SQL
// generation prompts.
func BuildSchemaSummary(ctx context.Context, ex SchemaExtractor) (string, error) {
	tables, err := ex.GetTables(ctx)
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}

	var b strings.Builder
	b.WriteString("Database Schema:\n")
	b.WriteString("Tables: ")
	b.WriteString(strings.Join(tables, ", "))
	b.WriteString("\n\nForeign Keys:\n")

	for _, table := range tables {
		fks, err := ex.GetForeignKeys(ctx, table)
		if err != nil {
			return "", fmt.Errorf("list foreign keys for %s: %w", table, err)
		}
		for _, fk := range fks {
			fmt.Fprintf(&b, "  %s.%s -> %s.%s\n", table, fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
		}
	}

	return b.String(), nil
}

// RenderResult formats a query result as text for prompts and answers.
// Output is capped at MaxResultRows rows with an explicit truncation marker.
func RenderResult(result *QueryResult) string {
	if result == nil || len(result.Rows) == 0 {
		return "(no rows)"
	}

	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")

	rows := result.Rows
	truncated := false
	if len(rows) > MaxResultRows {
		rows = rows[:MaxResultRows]
		truncated = true
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}

	if truncated {
		fmt.Fprintf(&b, "... (truncated, %d rows total)\n", len(result.Rows))
	}

	return b.String()
}
