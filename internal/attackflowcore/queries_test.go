package attackflowcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTacticsGrouping(t *testing.T) {
	doc := stixBundle(t,
		stixAction("attack-action--1", "One", "T1190", map[string]any{"tactic_id": "TA0001"}),
		stixAction("attack-action--2", "Two", "T1059", map[string]any{"tactic_id": "TA0002"}),
		stixAction("attack-action--3", "Three", "T1133", map[string]any{"tactic_id": "TA0001"}),
		stixAction("attack-action--4", "Four", "", nil),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	groups := graph.Tactics()
	require.Len(t, groups["Initial Access"], 2)
	assert.Equal(t, "attack-action--1", groups["Initial Access"][0].ID)
	assert.Equal(t, "attack-action--3", groups["Initial Access"][1].ID)
	require.Len(t, groups["Execution"], 1)
	require.Len(t, groups[TacticUnknown], 1)

	// No node may appear twice under one tactic.
	for tactic, nodes := range groups {
		seen := make(map[string]bool)
		for _, node := range nodes {
			assert.False(t, seen[node.ID], "node %s duplicated under %s", node.ID, tactic)
			seen[node.ID] = true
		}
	}

	assert.Equal(t, []string{"Initial Access", "Execution", TacticUnknown}, graph.TacticNames())
}

func TestTechniqueCountsSkipMissing(t *testing.T) {
	doc := stixBundle(t,
		stixAction("attack-action--1", "One", "T1059", nil),
		stixAction("attack-action--2", "Two", "T1059", nil),
		stixAction("attack-action--3", "Three", "", nil),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	counts := graph.TechniqueCounts()
	assert.Equal(t, map[string]int{"T1059": 2}, counts)
}

func TestStats(t *testing.T) {
	doc := stixBundle(t,
		stixAction("attack-action--1", "One", "T1190", map[string]any{
			"tactic_id":       "TA0001",
			"confidence":      "probable",
			"execution_start": "2024-03-01T10:00:00Z",
		}),
		stixAction("attack-action--2", "Two", "T1059", map[string]any{"tactic_id": "TA0002"}),
		stixAction("attack-action--3", "Three", "T1059", nil),
		// Two actions with no technique id: only distinct non-missing
		// values count as unique techniques.
		stixAction("attack-action--4", "Four", "", nil),
		stixAction("attack-action--5", "Five", "", nil),
	)

	graph, err := ParseDocument(doc)
	require.NoError(t, err)

	stats := graph.DetailedStats()
	assert.Equal(t, 5, stats.TotalActions)
	assert.Equal(t, 2, stats.UniqueTechniques)
	assert.Equal(t, 2, stats.UniqueTactics)
	assert.True(t, stats.HasTimestamps)
	assert.Equal(t, map[string]int{
		ConfidenceProbable: 1,
		ConfidenceCertain:  4,
	}, stats.Confidence)
}

func TestStatsNoTimestamps(t *testing.T) {
	doc := stixBundle(t, stixAction("attack-action--1", "One", "T1190", nil))

	graph, err := ParseDocument(doc)
	require.NoError(t, err)
	assert.False(t, graph.DetailedStats().HasTimestamps)
}

func TestInferTacticFromTechnique(t *testing.T) {
	for technique, want := range map[string]string{
		"T1190":  "Initial Access",
		"T0886":  "Reconnaissance",
		"T2100":  "Execution",
		"T":      TacticUnknown,
		"":       TacticUnknown,
		"TX9999": TacticUnknown,
	} {
		assert.Equal(t, want, InferTacticFromTechnique(technique), "technique %q", technique)
	}
}

func TestTacticTableLookups(t *testing.T) {
	name, ok := tacticNameForCode("TA0001")
	require.True(t, ok)
	assert.Equal(t, "Initial Access", name)

	name, ok = tacticNameForCode("ta0040")
	require.True(t, ok)
	assert.Equal(t, "Impact", name)

	_, ok = tacticNameForCode("TA9999")
	assert.False(t, ok)

	// Enterprise code wins for names that Mobile and ICS reuse.
	code, ok := tacticCodeForName("initial access")
	require.True(t, ok)
	assert.Equal(t, "TA0001", code)
}

func TestTitleCasePhase(t *testing.T) {
	assert.Equal(t, "Initial Access", titleCasePhase("initial-access"))
	assert.Equal(t, "Command And Control", titleCasePhase("command-and-control"))
	assert.Equal(t, "Impact", titleCasePhase("impact"))
}
