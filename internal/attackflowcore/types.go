package attackflowcore

// FlowFormat identifies which of the two supported serializations a
// document was parsed from.
type FlowFormat string

const (
	FormatSTIX    FlowFormat = "stix"
	FormatBuilder FlowFormat = "builder"
)

// Confidence levels an action may carry. Absent values default to
// ConfidenceCertain at parse time.
const (
	ConfidenceCertain  = "certain"
	ConfidenceProbable = "probable"
	ConfidencePossible = "possible"
	ConfidenceUnknown  = "unknown"
)

// ActionNode is a single adversary action in the canonical graph.
type ActionNode struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	TechniqueID    string   `json:"technique_id,omitempty"` // e.g. "T1190"
	TacticID       string   `json:"tactic_id,omitempty"`    // e.g. "TA0001"
	TacticName     string   `json:"tactic_name"`            // resolved name or "Unknown"
	Confidence     string   `json:"confidence"`
	ExecutionStart string   `json:"execution_start,omitempty"`
	ExecutionEnd   string   `json:"execution_end,omitempty"`
	Children       []string `json:"children"` // resolved direct-successor ids, insertion-ordered set
	Sequence       int      `json:"sequence"` // insertion-order index, tie-break only
}

// Edge is a resolved direct action-to-action successor relationship.
// Edges are directed; malformed input may legally produce cycles.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ExternalReference mirrors the STIX external_references entry shape.
type ExternalReference struct {
	SourceName  string `json:"source_name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
}

// FlowMetadata holds document-level descriptive fields plus derived counts.
type FlowMetadata struct {
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	Scope              string              `json:"scope,omitempty"`
	Created            string              `json:"created,omitempty"`
	Modified           string              `json:"modified,omitempty"`
	Author             string              `json:"author,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
	ActionCount        int                 `json:"action_count"`
	RelationshipCount  int                 `json:"relationship_count"`
	Format             FlowFormat          `json:"format"`
}

// Graph is the canonical attack flow graph: one node per action, direct
// edges only, with all condition/operator routing already resolved away.
// A Graph is immutable once ParseDocument returns it.
type Graph struct {
	nodes    []*ActionNode
	nodeByID map[string]*ActionNode
	edges    []Edge
	meta     FlowMetadata
	starts   []string // declared start action ids (STIX start_refs)
	warnings []string
}

// Nodes returns the action nodes in input (insertion) order.
func (g *Graph) Nodes() []*ActionNode {
	return g.nodes
}

// Node looks up an action by id.
func (g *Graph) Node(id string) (*ActionNode, bool) {
	n, ok := g.nodeByID[id]
	return n, ok
}

// Edges returns the resolved direct edges.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Metadata returns the document-level metadata.
func (g *Graph) Metadata() FlowMetadata {
	return g.meta
}

// Warnings returns non-fatal problems recorded during resolution, such as
// dropped edges whose endpoints were missing from the document.
func (g *Graph) Warnings() []string {
	return g.warnings
}

// DetailedStats aggregates per-graph statistics for the stats views.
type DetailedStats struct {
	TotalActions     int            `json:"total_actions"`
	UniqueTechniques int            `json:"unique_techniques"`
	UniqueTactics    int            `json:"unique_tactics"`
	Confidence       map[string]int `json:"confidence"`
	HasTimestamps    bool           `json:"has_timestamps"`
}
