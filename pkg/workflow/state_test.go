package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState("how many teams?", "Tables: Team", 5, true)

	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, "how many teams?", s.Question)
	assert.Equal(t, "start", s.CurrentStep)
	assert.Equal(t, 0, s.Iteration)
	assert.Equal(t, 5, s.MaxIterations)
	assert.True(t, s.HumanInteraction)
	assert.Empty(t, s.SQLQueries)
	assert.Empty(t, s.Transcript)
}

func TestNewStateClampsMaxIterations(t *testing.T) {
	s := NewState("q", "", 0, false)
	assert.Equal(t, 3, s.MaxIterations)
}

func TestRecordSQLAppendsHistory(t *testing.T) {
	s := NewState("q", "", 3, false)
	s.recordSQL("SELECT 1")
	s.recordSQL("SELECT 2")

	assert.Equal(t, "SELECT 2", s.SQLQuery)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, s.SQLQueries)
}

func TestExecutionResultAndErrorAreMutuallyExclusive(t *testing.T) {
	s := NewState("q", "", 3, false)

	s.setExecutionError("no such column")
	assert.Equal(t, "no such column", s.ExecutionError)
	assert.Empty(t, s.ExecutionResult)

	s.setExecutionResult("id | name")
	assert.Equal(t, "id | name", s.ExecutionResult)
	assert.Empty(t, s.ExecutionError)

	s.setExecutionError("boom")
	assert.Empty(t, s.ExecutionResult)
}

func TestStateSerializationRoundTrip(t *testing.T) {
	s := NewState("players and their teams", "Tables: Player, Team", 3, true)
	s.Plan = "join player to team"
	s.RequiredActions = []Action{ActionSearchColumn, ActionGenerateSQL}
	s.recordSQL("SELECT p.player_name FROM Player p")
	s.Iteration = 1
	s.NeedsHumanInput = true
	s.AwaitingConfirmation = true
	s.ConfirmationType = ConfirmationSQL
	s.ResumeNode = NodeSQLExecution
	s.JoinPaths = []JoinPath{{Tables: []string{"Player", "Team"}, FullPath: "Player.team_id <-> Team.id"}}
	s.appendStep("generated SQL attempt 1")

	data, err := MarshalState(s)
	require.NoError(t, err)

	restored, err := UnmarshalState(data)
	require.NoError(t, err)
	assert.Equal(t, s, restored)
}

func TestUnmarshalStateRejectsGarbage(t *testing.T) {
	_, err := UnmarshalState([]byte("{not json"))
	require.Error(t, err)
}
