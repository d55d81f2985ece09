package attackflowcore

import (
	"fmt"
	"log"
	"os"
)

// ParseDocument runs the full detect -> extract -> resolve pipeline on one
// raw JSON document and returns the canonical Graph. The only fatal error
// is a format error; dangling references and missing optional fields
// degrade to warnings and defaults so that partially well-formed documents
// still produce a usable graph.
func ParseDocument(data []byte) (*Graph, error) {
	ex, err := detectAndExtract(data)
	if err != nil {
		return nil, err
	}
	return resolveGraph(ex), nil
}

// LoadFlowFromFile reads and parses an attack flow document from disk.
func LoadFlowFromFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow document %s: %w", path, err)
	}
	graph, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return graph, nil
}

// graphResolver converts the extracted collections into the canonical
// graph: one node per action, direct edges only, tactic names on every
// node.
type graphResolver struct {
	ex        *extraction
	g         *Graph
	childSeen map[string]map[string]bool
}

func resolveGraph(ex *extraction) *Graph {
	r := &graphResolver{
		ex: ex,
		g: &Graph{
			nodeByID: make(map[string]*ActionNode),
			meta:     ex.meta,
		},
		childSeen: make(map[string]map[string]bool),
	}

	r.buildNodes()
	r.resolveStarts()

	switch ex.format {
	case FormatSTIX:
		r.resolveSTIXEdges()
	case FormatBuilder:
		r.resolveBuilderEdges()
	}

	return r.g
}

func (r *graphResolver) buildNodes() {
	for i, rec := range r.ex.actions {
		if rec.ID == "" {
			r.warn("skipping action %d: missing identifier", i)
			continue
		}
		if _, exists := r.g.nodeByID[rec.ID]; exists {
			r.warn("skipping duplicate action id %s", rec.ID)
			continue
		}

		node := &ActionNode{
			ID:             rec.ID,
			Name:           rec.Name,
			Description:    rec.Description,
			TechniqueID:    rec.TechniqueID,
			Confidence:     rec.Confidence,
			ExecutionStart: rec.ExecutionStart,
			ExecutionEnd:   rec.ExecutionEnd,
			Children:       []string{},
			Sequence:       len(r.g.nodes),
		}
		node.TacticID, node.TacticName = resolveTactic(rec)
		if node.Confidence == "" {
			node.Confidence = ConfidenceCertain
		}

		r.g.nodes = append(r.g.nodes, node)
		r.g.nodeByID[rec.ID] = node
	}
}

// resolveTactic picks a tactic for an action record, in priority order:
// explicit tactic id, first kill chain phase, else Unknown.
func resolveTactic(rec actionRecord) (tacticID, tacticName string) {
	if rec.TacticID != "" {
		if name, ok := tacticNameForCode(rec.TacticID); ok {
			return rec.TacticID, name
		}
	}
	if len(rec.KillChainPhases) > 0 && rec.KillChainPhases[0] != "" {
		name := titleCasePhase(rec.KillChainPhases[0])
		if code, ok := tacticCodeForName(name); ok {
			return code, name
		}
		return "", name
	}
	return "", TacticUnknown
}

// resolveStarts keeps only the declared start references that resolve to an
// action node.
func (r *graphResolver) resolveStarts() {
	for _, ref := range r.ex.starts {
		if _, ok := r.g.nodeByID[ref]; !ok {
			r.warn("dropping start reference %s: no such action", ref)
			continue
		}
		r.g.starts = append(r.g.starts, ref)
	}
}

// resolveSTIXEdges follows each action's effect references through
// condition and operator routing nodes until an action is reached, then
// emits a direct edge. Explicit action-to-action relationships also become
// direct edges.
func (r *graphResolver) resolveSTIXEdges() {
	for _, rec := range r.ex.actions {
		// One visited set per origin bounds recursion on cyclic or
		// self-referential condition/operator chains.
		visited := make(map[string]bool)
		for _, ref := range rec.EffectRefs {
			r.followEffect(rec.ID, ref, visited)
		}
	}

	for _, rel := range r.ex.relationships {
		if r.ex.actionIDs[rel.Source] && r.ex.actionIDs[rel.Target] {
			r.addEdge(rel.Source, rel.Target)
			continue
		}
		// Relationships touching non-action objects (assets, say) are not
		// edges; a relationship naming an id absent from the document is a
		// dropped reference worth recording.
		if _, ok := r.ex.objectTypes[rel.Source]; !ok {
			r.warn("dropping relationship %s -> %s: source not found in document", rel.Source, rel.Target)
			continue
		}
		if _, ok := r.ex.objectTypes[rel.Target]; !ok {
			r.warn("dropping relationship %s -> %s: target not found in document", rel.Source, rel.Target)
		}
	}
}

func (r *graphResolver) followEffect(origin, ref string, visited map[string]bool) {
	if r.ex.actionIDs[ref] {
		r.addEdge(origin, ref)
		return
	}
	if visited[ref] {
		return
	}
	visited[ref] = true

	if cond, ok := r.ex.conditions[ref]; ok {
		// Both branches are treated as reachable; the boolean condition
		// itself is not represented in the final graph.
		for _, next := range cond.OnTrue {
			r.followEffect(origin, next, visited)
		}
		for _, next := range cond.OnFalse {
			r.followEffect(origin, next, visited)
		}
		return
	}
	if op, ok := r.ex.operators[ref]; ok {
		for _, next := range op.EffectRefs {
			r.followEffect(origin, next, visited)
		}
		return
	}

	r.warn("dropping effect reference %s from %s: target not found in document", ref, origin)
}

// resolveBuilderEdges turns connector records into direct edges when both
// endpoints resolve to known actions.
func (r *graphResolver) resolveBuilderEdges() {
	for _, rel := range r.ex.relationships {
		if !r.ex.actionIDs[rel.Source] || !r.ex.actionIDs[rel.Target] {
			r.warn("dropping connector %s -> %s: unresolved endpoint", rel.Source, rel.Target)
			continue
		}
		r.addEdge(rel.Source, rel.Target)
	}
}

// addEdge appends a direct edge unless it is already present in the source
// node's child list. Both endpoints must resolve to nodes in the graph;
// extraction may register action ids (duplicates, say) that never became
// nodes.
func (r *graphResolver) addEdge(source, target string) {
	node, ok := r.g.nodeByID[source]
	if !ok {
		r.warn("dropping edge %s -> %s: source has no node", source, target)
		return
	}
	if _, ok := r.g.nodeByID[target]; !ok {
		r.warn("dropping edge %s -> %s: target has no node", source, target)
		return
	}
	seen := r.childSeen[source]
	if seen == nil {
		seen = make(map[string]bool)
		r.childSeen[source] = seen
	}
	if seen[target] {
		return
	}
	seen[target] = true

	node.Children = append(node.Children, target)
	r.g.edges = append(r.g.edges, Edge{Source: source, Target: target})
}

func (r *graphResolver) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.g.warnings = append(r.g.warnings, msg)
	log.Printf("Warning: %s", msg)
}
