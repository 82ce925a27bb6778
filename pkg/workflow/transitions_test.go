package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsExhaustive(t *testing.T) {
	require.NoError(t, newTransitionTable().validate())
}

func TestTransitionTableValidateCatchesMissingEvent(t *testing.T) {
	table := newTransitionTable()
	delete(table[NodeRetryDecision], EventRetryColumns)

	err := table.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(NodeRetryDecision))
}

func TestTransitionTableValidateCatchesMissingNode(t *testing.T) {
	table := newTransitionTable()
	delete(table, NodePathFinding)

	err := table.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(NodePathFinding))
}

func TestTransitionTableValidateCatchesDeadEntry(t *testing.T) {
	table := newTransitionTable()
	table[NodePathFinding][EventDone] = nodeTerminated

	err := table.validate()
	require.Error(t, err)
}

func TestTransitionNextRejectsUnknownEvent(t *testing.T) {
	table := newTransitionTable()

	_, err := table.next(NodePathFinding, EventExecute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event")

	_, err = table.next(NodeName("bogus"), EventDone)
	require.Error(t, err)
}

func TestTransitionRouting(t *testing.T) {
	table := newTransitionTable()
	tests := []struct {
		node  NodeName
		event Event
		want  NodeName
	}{
		{NodePlanning, EventColumnsNeeded, NodeColumnSearch},
		{NodePlanning, EventGenerate, NodeSQLGeneration},
		{NodeColumnSearch, EventPathsNeeded, NodePathFinding},
		{NodePathFinding, EventGenerate, NodeSQLGeneration},
		{NodeSQLGeneration, EventExecute, NodeSQLExecution},
		{NodeSQLExecution, EventEvaluate, NodeRetryDecision},
		{NodeRetryDecision, EventRetryColumns, NodeColumnSearch},
		{NodeRetryDecision, EventAnswer, NodeAnswerGeneration},
		{NodeAnswerGeneration, EventDone, nodeTerminated},
		{NodeHumanConfirmation, EventPause, nodeSuspended},
	}
	for _, tt := range tests {
		next, err := table.next(tt.node, tt.event)
		require.NoError(t, err)
		assert.Equal(t, tt.want, next, "%s x %s", tt.node, tt.event)
	}
}
