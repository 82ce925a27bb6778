package workflow

import "fmt"

// Event is the outcome a node reports to the router.
type Event string

const (
	EventColumnsNeeded Event = "columns_needed"
	EventValuesNeeded  Event = "values_needed"
	EventPathsNeeded   Event = "paths_needed"
	EventGenerate      Event = "generate"
	EventConfirm       Event = "confirm"
	EventExecute       Event = "execute"
	EventPause         Event = "pause"
	EventEvaluate      Event = "evaluate"
	EventRetryColumns  Event = "retry_columns"
	EventRetryGenerate Event = "retry_generate"
	EventAnswer        Event = "answer"
	EventDone          Event = "done"
)

// transitionTable maps state x event to the successor node. Routing is
// fully enumerated here rather than scattered across node code.
type transitionTable map[NodeName]map[Event]NodeName

// emittableEvents declares, per node, every event its handler can
// return. The transition table must cover exactly this set.
var emittableEvents = map[NodeName][]Event{
	NodePlanning:          {EventConfirm, EventColumnsNeeded, EventValuesNeeded, EventPathsNeeded, EventGenerate},
	NodeColumnSearch:      {EventValuesNeeded, EventPathsNeeded, EventGenerate},
	NodeValueSearch:       {EventPathsNeeded},
	NodePathFinding:       {EventGenerate},
	NodeSQLGeneration:     {EventConfirm, EventExecute},
	NodeHumanConfirmation: {EventPause},
	NodeSQLExecution:      {EventEvaluate},
	NodeRetryDecision:     {EventConfirm, EventRetryColumns, EventRetryGenerate, EventAnswer, EventDone},
	NodeAnswerGeneration:  {EventDone},
}

func newTransitionTable() transitionTable {
	return transitionTable{
		NodePlanning: {
			EventConfirm:       NodeHumanConfirmation,
			EventColumnsNeeded: NodeColumnSearch,
			EventValuesNeeded:  NodeValueSearch,
			EventPathsNeeded:   NodePathFinding,
			EventGenerate:      NodeSQLGeneration,
		},
		NodeColumnSearch: {
			EventValuesNeeded: NodeValueSearch,
			EventPathsNeeded:  NodePathFinding,
			EventGenerate:     NodeSQLGeneration,
		},
		NodeValueSearch: {
			EventPathsNeeded: NodePathFinding,
		},
		NodePathFinding: {
			EventGenerate: NodeSQLGeneration,
		},
		NodeSQLGeneration: {
			EventConfirm: NodeHumanConfirmation,
			EventExecute: NodeSQLExecution,
		},
		NodeHumanConfirmation: {
			EventPause: nodeSuspended,
		},
		NodeSQLExecution: {
			EventEvaluate: NodeRetryDecision,
		},
		NodeRetryDecision: {
			EventConfirm:       NodeHumanConfirmation,
			EventRetryColumns:  NodeColumnSearch,
			EventRetryGenerate: NodeSQLGeneration,
			EventAnswer:        NodeAnswerGeneration,
			EventDone:          nodeTerminated,
		},
		NodeAnswerGeneration: {
			EventDone: nodeTerminated,
		},
	}
}

// validate checks the table for exhaustiveness against emittableEvents:
// every node covers every event it can emit, carries no dead entries,
// and every successor is either a real node or a routing sentinel.
func (t transitionTable) validate() error {
	for node, events := range emittableEvents {
		row, ok := t[node]
		if !ok {
			return fmt.Errorf("transition table missing node %q", node)
		}
		if len(row) != len(events) {
			return fmt.Errorf("transition table for %q has %d entries, expected %d", node, len(row), len(events))
		}
		for _, event := range events {
			next, ok := row[event]
			if !ok {
				return fmt.Errorf("transition table for %q missing event %q", node, event)
			}
			if next == nodeTerminated || next == nodeSuspended {
				continue
			}
			if _, ok := emittableEvents[next]; !ok {
				return fmt.Errorf("transition %q x %q targets unknown node %q", node, event, next)
			}
		}
	}
	for node := range t {
		if _, ok := emittableEvents[node]; !ok {
			return fmt.Errorf("transition table has row for unknown node %q", node)
		}
	}
	return nil
}

// next resolves the successor for a node and event.
func (t transitionTable) next(node NodeName, event Event) (NodeName, error) {
	row, ok := t[node]
	if !ok {
		return "", fmt.Errorf("no transitions defined for node %q", node)
	}
	next, ok := row[event]
	if !ok {
		return "", fmt.Errorf("node %q emitted unexpected event %q", node, event)
	}
	return next, nil
}
