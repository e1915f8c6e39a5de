package diagram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FormatVersion is the only Serialized Diagram version this package writes.
const FormatVersion = "1.0"

// Diagram is the serialized, re-importable form of a graph (diagram.json).
type Diagram struct {
	Version   string           `json:"version"`
	CreatedAt string           `json:"createdAt"`
	Nodes     []SerializedNode `json:"nodes"`
	Edges     []Edge           `json:"edges"`
}

// SerializedNode is a node as it appears in diagram.json.
type SerializedNode struct {
	ID       string        `json:"id"`
	Type     ComponentType `json:"type"`
	Position Position      `json:"position"`
	Data     NodeData      `json:"data"`
}

// NodeData duplicates the node type alongside the display fields.
type NodeData struct {
	Label       string        `json:"label"`
	Type        ComponentType `json:"type"`
	Description string        `json:"description,omitempty"`
	TechStack   []string      `json:"techStack,omitempty"`
}

// Serialize builds the diagram.json representation of a graph.
// It copies its inputs; nodes and edges are never modified.
func Serialize(nodes []Node, edges []Edge, createdAt time.Time) *Diagram {
	d := &Diagram{
		Version:   FormatVersion,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		Nodes:     make([]SerializedNode, 0, len(nodes)),
		Edges:     make([]Edge, 0, len(edges)),
	}

	for _, n := range nodes {
		var stack []string
		if len(n.Meta.TechStack) > 0 {
			stack = append([]string(nil), n.Meta.TechStack...)
		}
		d.Nodes = append(d.Nodes, SerializedNode{
			ID:       n.ID,
			Type:     n.Type,
			Position: n.Position,
			Data: NodeData{
				Label:       n.Label,
				Type:        n.Type,
				Description: n.Meta.Description,
				TechStack:   stack,
			},
		})
	}

	for _, e := range edges {
		d.Edges = append(d.Edges, cloneEdge(e))
	}

	return d
}

// Marshal renders diagram.json with two-space indentation.
func Marshal(nodes []Node, edges []Edge, createdAt time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(Serialize(nodes, edges, createdAt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diagram: %w", err)
	}
	return append(data, '\n'), nil
}

// Graph converts a serialized diagram back into nodes and edges.
// It does not validate; call ValidateDiagram first.
func (d *Diagram) Graph() ([]Node, []Edge) {
	nodes := make([]Node, 0, len(d.Nodes))
	for _, sn := range d.Nodes {
		var stack []string
		if len(sn.Data.TechStack) > 0 {
			stack = append([]string(nil), sn.Data.TechStack...)
		}
		nodes = append(nodes, Node{
			ID:       sn.ID,
			Type:     sn.Type,
			Label:    sn.Data.Label,
			Position: sn.Position,
			Meta: Meta{
				Description: sn.Data.Description,
				TechStack:   stack,
			},
		})
	}

	edges := make([]Edge, 0, len(d.Edges))
	for _, e := range d.Edges {
		edges = append(edges, cloneEdge(e))
	}
	return nodes, edges
}

// rawDiagram distinguishes missing top-level fields from empty ones.
type rawDiagram struct {
	Version   *string           `json:"version"`
	CreatedAt *string           `json:"createdAt"`
	Nodes     *[]SerializedNode `json:"nodes"`
	Edges     *[]Edge           `json:"edges"`
}

// Parse decodes and validates a diagram.json document. Any problem rejects
// the whole document with a *ValidationError; nothing is partially imported.
func Parse(data []byte) ([]Node, []Edge, error) {
	var raw rawDiagram
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, &ValidationError{Issues: []Issue{{Code: codeInvalid, Message: "malformed JSON: " + err.Error()}}}
	}

	var issues []Issue
	missing := func(field string) {
		issues = append(issues, Issue{Code: codeInvalid, Message: field + " is required"})
	}
	if raw.Version == nil {
		missing("version")
	}
	if raw.CreatedAt == nil {
		missing("createdAt")
	}
	if raw.Nodes == nil {
		missing("nodes")
	}
	if raw.Edges == nil {
		missing("edges")
	}
	if len(issues) > 0 {
		return nil, nil, &ValidationError{Issues: issues}
	}

	d := &Diagram{
		Version:   *raw.Version,
		CreatedAt: *raw.CreatedAt,
		Nodes:     *raw.Nodes,
		Edges:     *raw.Edges,
	}
	if err := ValidateDiagram(d); err != nil {
		return nil, nil, err
	}

	nodes, edges := d.Graph()
	return nodes, edges, nil
}

func cloneEdge(e Edge) Edge {
	out := Edge{ID: e.ID, Source: e.Source, Target: e.Target}
	if e.SourceHandle != nil {
		h := *e.SourceHandle
		out.SourceHandle = &h
	}
	if e.TargetHandle != nil {
		h := *e.TargetHandle
		out.TargetHandle = &h
	}
	if e.Data != nil {
		out.Data = &EdgeData{Label: e.Data.Label}
	}
	return out
}
