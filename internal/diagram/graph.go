package diagram

// Position is a canvas coordinate. The core never interprets it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Meta carries optional user-entered details about a component.
type Meta struct {
	Description string   `json:"description,omitempty"`
	TechStack   []string `json:"techStack,omitempty"`
}

// Node is a typed component in the architecture graph. Identity is ID;
// Label is user-facing and not unique.
type Node struct {
	ID       string        `json:"id"`
	Type     ComponentType `json:"type"`
	Label    string        `json:"label"`
	Position Position      `json:"position"`
	Meta     Meta          `json:"meta"`
}

// EdgeData holds the human-readable relationship label of an edge.
type EdgeData struct {
	Label string `json:"label"`
}

// Edge is a directed integration from Source to Target. Several edges may
// connect the same ordered pair.
type Edge struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	SourceHandle *string   `json:"sourceHandle"`
	TargetHandle *string   `json:"targetHandle"`
	Data         *EdgeData `json:"data,omitempty"`
}

// Label returns the edge label, or "" when the edge carries no data.
func (e Edge) Label() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.Label
}

// Key identifies the ordered pair an edge connects.
func (e Edge) Key() string {
	return PairKey(e.Source, e.Target)
}

// PairKey builds the "source->target" key used to dedupe ordered pairs.
func PairKey(source, target string) string {
	return source + "->" + target
}

// NodeIndex maps node ids to nodes. Later duplicates win.
func NodeIndex(nodes []Node) map[string]Node {
	idx := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		idx[n.ID] = n
	}
	return idx
}

// CountByType tallies nodes per component type.
func CountByType(nodes []Node) map[ComponentType]int {
	counts := make(map[ComponentType]int)
	for _, n := range nodes {
		counts[n.Type]++
	}
	return counts
}
