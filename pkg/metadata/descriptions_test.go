package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadColumnDescriptions(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "Player.csv",
		"column_name,column_description,value_description\n"+
			"player_name,full name of the player,\n"+
			"overall_rating,skill rating,ranges from 1 to 99\n"+
			"birthday,,\n")
	writeCSV(t, dir, "Team.csv",
		"column_name,column_description\n"+
			"team_long_name,official team name\n")

	got, err := LoadColumnDescriptions(dir, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "full name of the player", got["Player.player_name"])
	assert.Equal(t, "skill rating. Values: ranges from 1 to 99", got["Player.overall_rating"])
	assert.Equal(t, "official team name", got["Team.team_long_name"])
	assert.NotContains(t, got, "Player.birthday")
}

func TestLoadColumnDescriptionsMissingDir(t *testing.T) {
	got, err := LoadColumnDescriptions(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadColumnDescriptionsEmptyDirSetting(t *testing.T) {
	got, err := LoadColumnDescriptions("", zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadColumnDescriptionsAlternateHeader(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "Match.csv",
		"original_column_name,column_description,value_description\n"+
			"home_team_goal,,goals scored by the home side\n")

	got, err := LoadColumnDescriptions(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "Values: goals scored by the home side", got["Match.home_team_goal"])
}

func TestLoadColumnDescriptionsBadHeader(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "Broken.csv", "something,else\nfoo,bar\n")

	_, err := LoadColumnDescriptions(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column_name")
}

func TestLoadColumnDescriptionsIgnoresNonCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "notes.txt", "not a csv")

	got, err := LoadColumnDescriptions(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, got)
}
