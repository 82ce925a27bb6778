package datasource

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter is an in-memory Adapter for tests. Populate the schema maps
// and optionally set ExecuteFunc to control query behavior.
type MockAdapter struct {
	// Tables lists table names in a fixed order.
	Tables []string

	// Columns maps table name to its columns.
	Columns map[string][]Column

	// ForeignKeys maps table name to its declared foreign keys.
	ForeignKeys map[string][]ForeignKey

	// Values maps "table.column" to the distinct values sampling returns.
	Values map[string][]string

	// Statistics maps "table.column" to a canned statistics string.
	// Entries missing from the map get a generic fallback.
	Statistics map[string]string

	// ExecuteFunc is called when Execute is invoked. If nil, Execute
	// returns an empty result.
	ExecuteFunc func(ctx context.Context, sqlQuery string) (*QueryResult, error)

	// Call tracking
	ExecuteCalls []string
}

// NewMockAdapter creates an empty mock adapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Columns:     make(map[string][]Column),
		ForeignKeys: make(map[string][]ForeignKey),
		Values:      make(map[string][]string),
		Statistics:  make(map[string]string),
	}
}

// GetTables implements SchemaExtractor.
func (m *MockAdapter) GetTables(ctx context.Context) ([]string, error) {
	return m.Tables, nil
}

// GetColumns implements SchemaExtractor.
func (m *MockAdapter) GetColumns(ctx context.Context, table string) ([]Column, error) {
	cols, ok := m.Columns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, nil
}

// GetForeignKeys implements SchemaExtractor.
func (m *MockAdapter) GetForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	return m.ForeignKeys[table], nil
}

// Execute implements SQLExecutor.
func (m *MockAdapter) Execute(ctx context.Context, sqlQuery string) (*QueryResult, error) {
	m.ExecuteCalls = append(m.ExecuteCalls, sqlQuery)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, sqlQuery)
	}
	return &QueryResult{}, nil
}

// ColumnStatistics implements StatisticsProvider.
func (m *MockAdapter) ColumnStatistics(ctx context.Context, table, column string) (string, error) {
	key := table + "." + column
	if s, ok := m.Statistics[key]; ok {
		return s, nil
	}
	if vals, ok := m.Values[key]; ok && len(vals) > 0 {
		n := len(vals)
		if n > 5 {
			n = 5
		}
		return "text field. e.g. " + strings.Join(vals[:n], ", "), nil
	}
	return "no statistics", nil
}

// SampleDistinctValues implements StatisticsProvider.
func (m *MockAdapter) SampleDistinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	vals := m.Values[table+"."+column]
	if limit > 0 && len(vals) > limit {
		vals = vals[:limit]
	}
	return vals, nil
}

// Close implements Adapter.
func (m *MockAdapter) Close() error {
	return nil
}

// Ensure MockAdapter implements Adapter at compile time.
var _ Adapter = (*MockAdapter)(nil)
