package datasource

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTextType(t *testing.T) {
	assert.True(t, IsTextType("TEXT"))
	assert.True(t, IsTextType("varchar"))
	assert.True(t, IsTextType("character varying"))
	assert.True(t, IsTextType("NCHAR(10)"))
	assert.False(t, IsTextType("INTEGER"))
	assert.False(t, IsTextType("REAL"))
	assert.False(t, IsTextType("timestamp"))
}

func TestIsNumericType(t *testing.T) {
	assert.True(t, IsNumericType("INTEGER"))
	assert.True(t, IsNumericType("bigint"))
	assert.True(t, IsNumericType("double precision"))
	assert.True(t, IsNumericType("NUMERIC(10,2)"))
	assert.False(t, IsNumericType("TEXT"))
	assert.False(t, IsNumericType("date"))
}

func TestBuildSchemaSummary(t *testing.T) {
	mock := NewMockAdapter()
	mock.Tables = []string{"Player", "Team"}
	mock.Columns["Player"] = []Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
		{Name: "team_id", DataType: "INTEGER"},
	}
	mock.Columns["Team"] = []Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
	}
	mock.ForeignKeys["Player"] = []ForeignKey{
		{Column: "team_id", ReferencedTable: "Team", ReferencedColumn: "id"},
	}

	summary, err := BuildSchemaSummary(context.Background(), mock)
	require.NoError(t, err)

	assert.Contains(t, summary, "Tables: Player, Team")
	assert.Contains(t, summary, "Player.team_id -> Team.id")
}

func TestRenderResult(t *testing.T) {
	assert.Equal(t, "(no rows)", RenderResult(nil))
	assert.Equal(t, "(no rows)", RenderResult(&QueryResult{Columns: []string{"a"}}))

	result := &QueryResult{
		Columns: []string{"name", "goals"},
		Rows: [][]any{
			{"Messi", int64(30)},
			{"Ronaldo", nil},
		},
	}
	rendered := RenderResult(result)
	assert.Contains(t, rendered, "name | goals")
	assert.Contains(t, rendered, "Messi | 30")
	assert.Contains(t, rendered, "Ronaldo | NULL")
}

func TestRenderResult_Truncation(t *testing.T) {
	result := &QueryResult{Columns: []string{"n"}}
	for i := 0; i < MaxResultRows+20; i++ {
		result.Rows = append(result.Rows, []any{strconv.Itoa(i)})
	}

	rendered := RenderResult(result)
	assert.Contains(t, rendered, "... (truncated, 120 rows total)")
	// Header + MaxResultRows rows + truncation marker.
	assert.Equal(t, MaxResultRows+2, strings.Count(rendered, "\n"))
}
