// Package sqlite implements the datasource contracts for SQLite databases.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
)

// quoteIdentifier wraps an identifier in double quotes, escaping embedded
// quotes. Table and column names come from schema introspection but may
// still contain characters that need quoting.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Adapter provides schema extraction, statistics, and query execution for
// a SQLite database file.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens a SQLite database at the given path.
// If logger is nil, a no-op logger is used.
func New(path string, logger *zap.Logger) (*Adapter, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return &Adapter{
		db:     db,
		logger: logger.Named("sqlite"),
	}, nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// GetTables returns all user tables, excluding SQLite internals.
func (a *Adapter) GetTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetColumns returns columns for a specific table via PRAGMA table_info.
func (a *Adapter) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(table))

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("table_info for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var (
			cid        int
			name       string
			dataType   string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		columns = append(columns, datasource.Column{
			Name:       name,
			DataType:   dataType,
			IsNullable: notNull == 0,
			IsPrimary:  pk > 0,
		})
	}
	return columns, rows.Err()
}

// GetForeignKeys returns foreign keys declared on a table via PRAGMA
// foreign_key_list.
func (a *Adapter) GetForeignKeys(ctx context.Context, table string) ([]datasource.ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdentifier(table))

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKey
	for rows.Next() {
		var (
			id, seq            int
			refTable           string
			fromCol            string
			toCol              sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		// A NULL "to" column means the FK references the target's primary key.
		referenced := toCol.String
		if !toCol.Valid || referenced == "" {
			referenced = "id"
		}
		fks = append(fks, datasource.ForeignKey{
			Column:           fromCol,
			ReferencedTable:  refTable,
			ReferencedColumn: referenced,
		})
	}
	return fks, rows.Err()
}

// Execute runs a query and returns materialized results.
func (a *Adapter) Execute(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ColumnStatistics returns a short summary for a column: sample values for
// text columns, min/max/distinct count for numeric columns.
func (a *Adapter) ColumnStatistics(ctx context.Context, table, column string) (string, error) {
	columns, err := a.GetColumns(ctx, table)
	if err != nil {
		return "", err
	}

	var dataType string
	found := false
	for _, c := range columns {
		if c.Name == column {
			dataType = c.DataType
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("column %s.%s not found", table, column)
	}

	qt, qc := quoteIdentifier(table), quoteIdentifier(column)

	switch {
	case datasource.IsTextType(dataType):
		query := fmt.Sprintf(
			"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT 5", qc, qt, qc)
		rows, err := a.db.QueryContext(ctx, query)
		if err != nil {
			return "", fmt.Errorf("sample text values: %w", err)
		}
		defer rows.Close()

		var samples []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return "", fmt.Errorf("scan sample: %w", err)
			}
			if len(v) > 50 {
				v = v[:50]
			}
			samples = append(samples, v)
		}
		if len(samples) == 0 {
			return "text field (no data)", nil
		}
		return "text field. e.g. " + strings.Join(samples, ", "), nil

	case datasource.IsNumericType(dataType):
		query := fmt.Sprintf(
			"SELECT MIN(%s), MAX(%s), COUNT(DISTINCT %s) FROM %s WHERE %s IS NOT NULL",
			qc, qc, qc, qt, qc)
		var minVal, maxVal sql.NullString
		var distinct int64
		if err := a.db.QueryRowContext(ctx, query).Scan(&minVal, &maxVal, &distinct); err != nil {
			return "", fmt.Errorf("numeric stats: %w", err)
		}
		if !minVal.Valid {
			return "numeric field (no data)", nil
		}
		return fmt.Sprintf("numeric field. range: %s to %s, distinct count: %d",
			minVal.String, maxVal.String, distinct), nil

	default:
		query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", qc, qt)
		var distinct int64
		if err := a.db.QueryRowContext(ctx, query).Scan(&distinct); err != nil {
			return "", fmt.Errorf("distinct count: %w", err)
		}
		return fmt.Sprintf("distinct count: %d", distinct), nil
	}
}

// SampleDistinctValues returns up to limit distinct non-null values from a
// column as strings.
func (a *Adapter) SampleDistinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		quoteIdentifier(column), quoteIdentifier(table), quoteIdentifier(column), limit)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample values for %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}

// scanRows materializes sql.Rows into a QueryResult.
func scanRows(rows *sql.Rows) (*datasource.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("result columns: %w", err)
	}

	result := &datasource.QueryResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		// Driver []byte values are transient; copy to string.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

// Ensure Adapter implements the datasource contract at compile time.
var _ datasource.Adapter = (*Adapter)(nil)
