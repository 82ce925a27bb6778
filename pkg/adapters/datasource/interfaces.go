// Package datasource defines the database contracts consumed by the
// query-resolution engine, plus adapter implementations per driver.
package datasource

import "context"

// SchemaExtractor extracts database schema information.
// Used for schema-graph construction and column enumeration.
type SchemaExtractor interface {
	// GetTables returns all user table names in the database.
	GetTables(ctx context.Context) ([]string, error)

	// GetColumns returns columns for a specific table.
	GetColumns(ctx context.Context, table string) ([]Column, error)

	// GetForeignKeys returns foreign key relationships declared on a table.
	GetForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
}

// SQLExecutor executes SQL queries against the database.
// Ordinary SQL errors are returned as error values; the engine folds them
// into its retry classification rather than aborting.
type SQLExecutor interface {
	// Execute runs a query and returns results.
	Execute(ctx context.Context, sqlQuery string) (*QueryResult, error)
}

// StatisticsProvider gathers per-column value information.
type StatisticsProvider interface {
	// ColumnStatistics returns a short human-readable summary for a column:
	// sample values for text columns, min/max/distinct count for numeric.
	ColumnStatistics(ctx context.Context, table, column string) (string, error)

	// SampleDistinctValues returns up to limit distinct non-null values
	// from a column, as strings. Used by lexical value search; the bound
	// keeps cost manageable on large tables.
	SampleDistinctValues(ctx context.Context, table, column string, limit int) ([]string, error)
}

// Adapter is the full contract an engine session needs from a database.
// Each implementation owns its connection and must be closed when done.
type Adapter interface {
	SchemaExtractor
	SQLExecutor
	StatisticsProvider

	// Close releases the database connection.
	Close() error
}

// Column represents a database column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}
