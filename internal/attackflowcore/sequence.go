package attackflowcore

// ActionSequence returns a best-effort linear reading order of the graph's
// actions: a depth-first traversal from each start point, with every node
// of a branch prepended after its children have been visited so the branch
// root comes first. Start points are the declared start references when
// present, otherwise every node with no incoming edge. Nodes unreachable
// from any start point are appended afterwards via the same traversal, so
// every node appears exactly once and the call terminates even on cyclic
// input. On a cycle the back-edge's ordering is not topological; this is a
// display ordering, not a proof-backed sort.
func (g *Graph) ActionSequence() []*ActionNode {
	visited := make(map[string]bool)
	var sequence []*ActionNode

	var visit func(id string, branch *[]*ActionNode)
	visit = func(id string, branch *[]*ActionNode) {
		node, ok := g.nodeByID[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		for _, child := range node.Children {
			visit(child, branch)
		}
		*branch = append([]*ActionNode{node}, *branch...)
	}

	for _, id := range g.startPoints() {
		var branch []*ActionNode
		visit(id, &branch)
		sequence = append(sequence, branch...)
	}

	for _, node := range g.nodes {
		if visited[node.ID] {
			continue
		}
		var branch []*ActionNode
		visit(node.ID, &branch)
		sequence = append(sequence, branch...)
	}

	return sequence
}

// startPoints returns the declared start references, or, absent those,
// every node without an incoming edge, in insertion order.
func (g *Graph) startPoints() []string {
	if len(g.starts) > 0 {
		return g.starts
	}

	hasIncoming := make(map[string]bool, len(g.edges))
	for _, e := range g.edges {
		hasIncoming[e.Target] = true
	}

	var starts []string
	for _, node := range g.nodes {
		if !hasIncoming[node.ID] {
			starts = append(starts, node.ID)
		}
	}
	return starts
}
