package attackflowcore

// Tactics groups the graph's nodes by resolved tactic name. Per-tactic
// slices preserve the order nodes were first encountered; a node appears at
// most once under its tactic.
func (g *Graph) Tactics() map[string][]*ActionNode {
	groups := make(map[string][]*ActionNode)
	for _, node := range g.nodes {
		groups[node.TacticName] = append(groups[node.TacticName], node)
	}
	return groups
}

// TacticNames returns the tactic names present in the graph, in the order
// they were first encountered.
func (g *Graph) TacticNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, node := range g.nodes {
		if !seen[node.TacticName] {
			seen[node.TacticName] = true
			names = append(names, node.TacticName)
		}
	}
	return names
}

// TechniqueCounts counts occurrences of each technique id across nodes.
// Actions without a technique id are not counted.
func (g *Graph) TechniqueCounts() map[string]int {
	counts := make(map[string]int)
	for _, node := range g.nodes {
		if node.TechniqueID != "" {
			counts[node.TechniqueID]++
		}
	}
	return counts
}

// DetailedStats computes aggregate statistics over the graph.
func (g *Graph) DetailedStats() DetailedStats {
	stats := DetailedStats{
		TotalActions: len(g.nodes),
		Confidence:   make(map[string]int),
	}

	techniques := make(map[string]bool)
	tactics := make(map[string]bool)
	for _, node := range g.nodes {
		if node.TechniqueID != "" {
			techniques[node.TechniqueID] = true
		}
		if node.TacticName != "" && node.TacticName != TacticUnknown {
			tactics[node.TacticName] = true
		}

		confidence := node.Confidence
		if confidence == "" {
			confidence = ConfidenceUnknown
		}
		stats.Confidence[confidence]++

		if node.ExecutionStart != "" || node.ExecutionEnd != "" {
			stats.HasTimestamps = true
		}
	}

	stats.UniqueTechniques = len(techniques)
	stats.UniqueTactics = len(tactics)
	return stats
}
