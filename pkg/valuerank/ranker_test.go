package valuerank

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
)

func valueFixture() *datasource.MockAdapter {
	mock := datasource.NewMockAdapter()
	mock.Tables = []string{"Player", "Team"}
	mock.Columns["Player"] = []datasource.Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
		{Name: "name", DataType: "TEXT"},
		{Name: "goals", DataType: "INTEGER"},
	}
	mock.Columns["Team"] = []datasource.Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
		{Name: "name", DataType: "TEXT"},
		{Name: "city", DataType: "TEXT"},
	}
	mock.Values["Player.name"] = []string{
		"Lionel Messi", "Cristiano Ronaldo", "Xavi Hernandez", "Andres Iniesta",
	}
	mock.Values["Team.name"] = []string{
		"FC Barcelona", "Real Madrid", "Barcelona B",
	}
	mock.Values["Team.city"] = []string{
		"Barcelona", "Madrid",
	}
	// Numeric column gets values too; it must never be searched.
	mock.Values["Player.goals"] = []string{"30", "25"}
	return mock
}

func TestSearch_SubstringFilterAndRanking(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.Search(context.Background(), "Barcelona", "", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Every result contains the query substring, case-insensitive.
	for _, res := range results {
		assert.Contains(t, strings.ToLower(res.Value), "barcelona")
	}

	// The exact single-token match ranks first.
	assert.Equal(t, "Barcelona", results[0].Value)
	assert.Equal(t, "Team", results[0].Table)
	assert.Equal(t, "city", results[0].Column)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.Search(context.Background(), "messi", "", "", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Lionel Messi", results[0].Value)
	assert.Equal(t, "Player", results[0].Table)
	assert.Equal(t, "name", results[0].Column)
}

func TestSearch_NoMatchesReturnsEmpty(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.Search(context.Background(), "zlatan", "", "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ScopedToTableAndColumn(t *testing.T) {
	r := New(valueFixture(), 0, nil)
	ctx := context.Background()

	results, err := r.Search(ctx, "Barcelona", "Team", "", 10)
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, "Team", res.Table)
	}

	results, err = r.Search(ctx, "Barcelona", "Team", "city", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "city", results[0].Column)
}

func TestSearch_NumericColumnsIgnored(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.Search(context.Background(), "30", "", "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_LimitRespected(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.Search(context.Background(), "a", "", "", 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
}

func TestSearch_InjectionFragmentRejected(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.Search(context.Background(), "'; DROP TABLE users--", "", "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_Deterministic(t *testing.T) {
	r := New(valueFixture(), 0, nil)
	ctx := context.Background()

	first, err := r.Search(ctx, "a", "", "", 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := r.Search(ctx, "a", "", "", 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchBatch_ConcatenatesAndTruncates(t *testing.T) {
	r := New(valueFixture(), 0, nil)

	results, err := r.SearchBatch(context.Background(), []string{"Messi", "Madrid"}, "", "", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Lionel Messi", results[0].Value)
}

func TestBM25_ShorterExactMatchOutranksLonger(t *testing.T) {
	docs := [][]string{
		tokenize("FC Barcelona"),
		tokenize("Barcelona"),
		tokenize("Barcelona B reserve squad"),
	}
	scores := bm25Scores(tokenize("Barcelona"), docs)
	require.Len(t, scores, 3)
	assert.Greater(t, scores[1], scores[0])
	assert.Greater(t, scores[0], scores[2])
}

func TestBM25_EmptyInputs(t *testing.T) {
	assert.Empty(t, bm25Scores(tokenize("x"), nil))
	scores := bm25Scores(nil, [][]string{tokenize("a b")})
	require.Len(t, scores, 1)
	assert.Zero(t, scores[0])
}
