// Package postgres implements the datasource contracts for PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/logging"
)

// quotedName returns a properly quoted table or column reference.
func quotedName(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Adapter provides schema extraction, statistics, and query execution for
// a PostgreSQL database. Only the public schema is exposed.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to PostgreSQL using the given connection string.
// If logger is nil, a no-op logger is used.
func New(ctx context.Context, connString string, logger *zap.Logger) (*Adapter, error) {
	if connString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		// Driver errors can echo the connection string back.
		return nil, fmt.Errorf("connect to postgres: %s", logging.SanitizeError(err))
	}

	return &Adapter{
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// GetTables returns all base tables in the public schema.
func (a *Adapter) GetTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' AND table_schema = 'public'
		ORDER BY table_name
	`

	rows, err := a.pool.Query(ctx, query)
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

// GetColumns returns columns for a specific table, with primary-key flags.
func (a *Adapter) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			COALESCE(pk.is_pk, false)
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = 'public'
				AND tc.table_name = $1
		) pk ON pk.column_name = c.column_name
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var col datasource.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// GetForeignKeys returns foreign keys declared on a table.
func (a *Adapter) GetForeignKeys(ctx context.Context, table string) ([]datasource.ForeignKey, error) {
	const query = `
		SELECT
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = 'public'
			AND tc.table_name = $1
	`

	rows, err := a.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKey
	for rows.Next() {
		var fk datasource.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// Execute runs a query and returns materialized results.
func (a *Adapter) Execute(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := a.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	result := &datasource.QueryResult{Columns: cols}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

// ColumnStatistics returns a short summary for a column.
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

	qt, qc := quotedName(table), quotedName(column)

	switch {
	case datasource.IsTextType(dataType):
		query := fmt.Sprintf(
			"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT 5", qc, qt, qc)
		rows, err := a.pool.Query(ctx, query)
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
			"SELECT MIN(%s)::text, MAX(%s)::text, COUNT(DISTINCT %s) FROM %s WHERE %s IS NOT NULL",
			qc, qc, qc, qt, qc)
		var minVal, maxVal *string
		var distinct int64
		if err := a.pool.QueryRow(ctx, query).Scan(&minVal, &maxVal, &distinct); err != nil {
			return "", fmt.Errorf("numeric stats: %w", err)
		}
		if minVal == nil {
			return "numeric field (no data)", nil
		}
		return fmt.Sprintf("numeric field. range: %s to %s, distinct count: %d",
			*minVal, *maxVal, distinct), nil

	default:
		query := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", qc, qt)
		var distinct int64
		if err := a.pool.QueryRow(ctx, query).Scan(&distinct); err != nil {
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
		"SELECT DISTINCT %s::text FROM %s WHERE %s IS NOT NULL LIMIT %d",
		quotedName(column), quotedName(table), quotedName(column), limit)

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample values for %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Ensure Adapter implements the datasource contract at compile time.
var _ datasource.Adapter = (*Adapter)(nil)
