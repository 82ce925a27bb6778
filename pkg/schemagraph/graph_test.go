package schemagraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
)

// soccerSchema builds a three-table mock schema:
// Player(id, name, team_id) -> Team(id, name), Match(id, home_team_id -> Team.id, date)
func soccerSchema() *datasource.MockAdapter {
	mock := datasource.NewMockAdapter()
	mock.Tables = []string{"Match", "Player", "Team"}
	mock.Columns["Player"] = []datasource.Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
		{Name: "name", DataType: "TEXT"},
		{Name: "team_id", DataType: "INTEGER"},
	}
	mock.Columns["Team"] = []datasource.Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
		{Name: "name", DataType: "TEXT"},
	}
	mock.Columns["Match"] = []datasource.Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
		{Name: "home_team_id", DataType: "INTEGER"},
		{Name: "date", DataType: "TEXT"},
	}
	mock.ForeignKeys["Player"] = []datasource.ForeignKey{
		{Column: "team_id", ReferencedTable: "Team", ReferencedColumn: "id"},
	}
	mock.ForeignKeys["Match"] = []datasource.ForeignKey{
		{Column: "home_team_id", ReferencedTable: "Team", ReferencedColumn: "id"},
	}
	return mock
}

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Build(context.Background(), soccerSchema(), BuildOptions{})
	require.NoError(t, err)
	return g
}

func TestBuild(t *testing.T) {
	g := buildTestGraph(t)

	assert.Equal(t, 8, g.NodeCount())

	node, ok := g.Node("Player.name")
	require.True(t, ok)
	assert.Equal(t, "Player", node.Table)
	assert.Equal(t, "name", node.Column)
	assert.Equal(t, "TEXT", node.DataType)

	_, ok = g.Node("Player.missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"Player.id", "Player.name", "Player.team_id"}, g.TableColumns("Player"))
}

func TestShortestPath_SameTable(t *testing.T) {
	g := buildTestGraph(t)

	path, err := g.ShortestPath("Player.name", "Player.team_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"Player.name", "Player.team_id"}, path)
}

func TestShortestPath_AcrossForeignKey(t *testing.T) {
	g := buildTestGraph(t)

	path, err := g.ShortestPath("Player.name", "Team.name")
	require.NoError(t, err)

	require.NotEmpty(t, path)
	assert.Equal(t, "Player.name", path[0])
	assert.Equal(t, "Team.name", path[len(path)-1])
	// BFS distance: Player.name -> Player.team_id -> Team.id -> Team.name
	assert.Len(t, path, 4)
}

func TestShortestPath_TwoHopsThroughSharedTable(t *testing.T) {
	g := buildTestGraph(t)

	// Player and Match are only connected through Team.
	path, err := g.ShortestPath("Player.name", "Match.date")
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, "Player.name", path[0])
	assert.Equal(t, "Match.date", path[len(path)-1])
	assert.Contains(t, TablesAlongPath(path), "Team")
}

func TestShortestPath_SameNode(t *testing.T) {
	g := buildTestGraph(t)

	path, err := g.ShortestPath("Team.id", "Team.id")
	require.NoError(t, err)
	assert.Equal(t, []string{"Team.id"}, path)
}

func TestShortestPath_AbsentEndpoint(t *testing.T) {
	g := buildTestGraph(t)

	path, err := g.ShortestPath("Player.name", "Ghost.col")
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = g.ShortestPath("Ghost.col", "Player.name")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestShortestPath_Disconnected(t *testing.T) {
	mock := soccerSchema()
	mock.Tables = append(mock.Tables, "Island")
	mock.Columns["Island"] = []datasource.Column{
		{Name: "id", DataType: "INTEGER", IsPrimary: true},
	}

	g, err := Build(context.Background(), mock, BuildOptions{})
	require.NoError(t, err)

	path, err := g.ShortestPath("Player.name", "Island.id")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestShortestPath_MalformedIdentifier(t *testing.T) {
	g := buildTestGraph(t)

	_, err := g.ShortestPath("Player", "Team.name")
	require.Error(t, err)

	_, err = g.ShortestPath("Player.name", "Team.name.extra")
	require.Error(t, err)

	_, err = g.ShortestPath(".name", "Team.name")
	require.Error(t, err)
}

func TestShortestPath_Deterministic(t *testing.T) {
	g := buildTestGraph(t)

	first, err := g.ShortestPath("Player.id", "Match.id")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := g.ShortestPath("Player.id", "Match.id")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuild_DanglingForeignKeySkipped(t *testing.T) {
	mock := soccerSchema()
	mock.ForeignKeys["Player"] = append(mock.ForeignKeys["Player"], datasource.ForeignKey{
		Column: "team_id", ReferencedTable: "Missing", ReferencedColumn: "id",
	})

	g, err := Build(context.Background(), mock, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, g.NodeCount())
}

func TestTablesAlongPath(t *testing.T) {
	path := []string{"Player.name", "Player.team_id", "Team.id", "Team.name"}
	assert.Equal(t, []string{"Player", "Team"}, TablesAlongPath(path))

	assert.Empty(t, TablesAlongPath(nil))
}

func TestFormatPath(t *testing.T) {
	assert.Equal(t, "No path found", FormatPath(nil))
	assert.Equal(t, "A.x <-> B.y", FormatPath([]string{"A.x", "B.y"}))
}

func TestProvider_MemoizesAndRebuilds(t *testing.T) {
	mock := soccerSchema()
	p := NewProvider(mock, BuildOptions{}, nil)
	ctx := context.Background()

	g1, err := p.Graph(ctx)
	require.NoError(t, err)

	g2, err := p.Graph(ctx)
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	g3, err := p.Rebuild(ctx)
	require.NoError(t, err)
	assert.NotSame(t, g1, g3)

	// The delegating queries answer from the freshly built graph.
	assert.Equal(t, g3.Tables(), p.Tables())
	assert.Equal(t, g3.TableColumns("Player"), p.TableColumns("Player"))
}

func TestProviderQueriesBeforeBuild(t *testing.T) {
	p := NewProvider(soccerSchema(), BuildOptions{}, nil)

	_, err := p.ShortestPath("Player.id", "Team.id")
	assert.Error(t, err)
	assert.Nil(t, p.Tables())
	assert.Nil(t, p.AllNodes())
}

func TestBuild_WithDescriptionsAndStatistics(t *testing.T) {
	mock := soccerSchema()
	mock.Statistics["Player.name"] = "text field. e.g. Messi, Ronaldo"

	g, err := Build(context.Background(), mock, BuildOptions{
		Descriptions: map[string]string{"Player.name": "full player name"},
		Statistics:   mock,
	})
	require.NoError(t, err)

	node, ok := g.Node("Player.name")
	require.True(t, ok)
	assert.Equal(t, "full player name", node.Description)
	assert.Equal(t, "text field. e.g. Messi, Ronaldo", node.Statistics)
}
