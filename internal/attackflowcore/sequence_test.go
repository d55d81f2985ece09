package attackflowcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequenceIDs(graph *Graph) []string {
	var ids []string
	for _, node := range graph.ActionSequence() {
		ids = append(ids, node.ID)
	}
	return ids
}

func TestSequenceLinearChainFromDeclaredStart(t *testing.T) {
	doc := stixBundle(t,
		map[string]any{
			"type": "attack-flow", "id": "attack-flow--1", "name": "Chain",
			"start_refs": []string{"attack-action--a"},
		},
		stixAction("attack-action--a", "A", "T1190", map[string]any{
			"effect_refs": []string{"attack-action--b"},
			"kill_chain_phases": []map[string]any{
				{"kill_chain_name": "mitre-attack", "phase_name": "initial-access"},
			},
		}),
		stixAction("attack-action--b", "B", "T1059", map[string]any{
			"effect_refs": []string{"attack-action--c"},
			"kill_chain_phases": []map[string]any{
				{"kill_chain_name": "mitre-attack", "phase_name": "execution"},
			},
		}),
		stixAction("attack-action--c", "C", "T1486", map[string]any{
			"kill_chain_phases": []map[string]any{
				{"kill_chain_name": "mitre-attack", "phase_name": "impact"},
			},
		}),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	seq := graph.ActionSequence()
	require.Len(t, seq, 3)
	assert.Equal(t, []string{"attack-action--a", "attack-action--b", "attack-action--c"}, sequenceIDs(graph))
	assert.Equal(t, "Initial Access", seq[0].TacticName)
	assert.Equal(t, "Execution", seq[1].TacticName)
	assert.Equal(t, "Impact", seq[2].TacticName)
}

func TestSequenceInfersStartsFromInDegree(t *testing.T) {
	doc := builderExport(t,
		map[string]any{"id": "action", "instance": "a", "properties": []any{[]any{"name", "A"}}},
		map[string]any{"id": "action", "instance": "b", "properties": []any{[]any{"name", "B"}}},
		map[string]any{"id": "action", "instance": "c", "properties": []any{[]any{"name", "C"}}},
		map[string]any{"id": "line", "source": "a", "target": "b"},
		map[string]any{"id": "line", "source": "b", "target": "c"},
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sequenceIDs(graph))
}

func TestSequenceTerminatesOnCycle(t *testing.T) {
	doc := stixBundle(t,
		stixAction("attack-action--a", "A", "T1190", map[string]any{
			"effect_refs": []string{"attack-action--b"},
		}),
		stixAction("attack-action--b", "B", "T1059", map[string]any{
			"effect_refs": []string{"attack-action--a"},
		}),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	// A->B->A: no in-degree-zero node, yet every node appears exactly once.
	ids := sequenceIDs(graph)
	assert.ElementsMatch(t, []string{"attack-action--a", "attack-action--b"}, ids)
}

func TestSequenceIsDeterministic(t *testing.T) {
	doc := stixBundle(t,
		stixAction("attack-action--a", "A", "T1190", map[string]any{
			"effect_refs": []string{"attack-action--b", "attack-action--c"},
		}),
		stixAction("attack-action--b", "B", "T1059", map[string]any{
			"effect_refs": []string{"attack-action--a"}, // back-edge
		}),
		stixAction("attack-action--c", "C", "T1486", nil),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	first := sequenceIDs(graph)
	second := sequenceIDs(graph)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestSequenceIncludesUnreachableNodes(t *testing.T) {
	doc := stixBundle(t,
		map[string]any{
			"type": "attack-flow", "id": "attack-flow--1", "name": "Partial",
			"start_refs": []string{"attack-action--a"},
		},
		stixAction("attack-action--a", "A", "T1190", nil),
		// Disconnected island, not reachable from the declared start.
		stixAction("attack-action--x", "X", "T1059", map[string]any{
			"effect_refs": []string{"attack-action--y"},
		}),
		stixAction("attack-action--y", "Y", "T1486", nil),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	ids := sequenceIDs(graph)
	require.Len(t, ids, 3)
	assert.Equal(t, "attack-action--a", ids[0])
	assert.Equal(t, []string{"attack-action--x", "attack-action--y"}, ids[1:])
}

func TestSequenceBranchRootFirst(t *testing.T) {
	doc := builderExport(t,
		map[string]any{"id": "action", "instance": "root", "properties": []any{[]any{"name", "Root"}}},
		map[string]any{"id": "action", "instance": "left", "properties": []any{[]any{"name", "Left"}}},
		map[string]any{"id": "action", "instance": "right", "properties": []any{[]any{"name", "Right"}}},
		map[string]any{"id": "line", "source": "root", "target": "left"},
		map[string]any{"id": "line", "source": "root", "target": "right"},
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	ids := sequenceIDs(graph)
	require.Len(t, ids, 3)
	assert.Equal(t, "root", ids[0])
}
