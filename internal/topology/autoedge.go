package topology

import (
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
)

// Rule produces an edge labelled Label from every From node to every To node.
// When ToLabelContains is set, the target label must contain it (case-insensitive).
type Rule struct {
	From            diagram.ComponentType
	To              diagram.ComponentType
	ToLabelContains string
	Label           string
}

func (r Rule) matchesTarget(target diagram.Node) bool {
	if r.ToLabelContains == "" {
		return true
	}
	return strings.Contains(strings.ToLower(target.Label), strings.ToLower(r.ToLabelContains))
}

// DefaultRules is evaluated top to bottom. Label-specific rules precede the
// generic rule for the same type pair so that the first match wins.
var DefaultRules = []Rule{
	{From: diagram.Frontend, To: diagram.Backend, Label: "API calls"},
	{From: diagram.Frontend, To: diagram.Auth, Label: "authenticates"},
	{From: diagram.Backend, To: diagram.Auth, Label: "verifies tokens"},
	{From: diagram.Backend, To: diagram.Storage, ToLabelContains: "vector", Label: "embeddings"},
	{From: diagram.Backend, To: diagram.Storage, ToLabelContains: "cache", Label: "caches"},
	{From: diagram.Backend, To: diagram.Storage, Label: "queries"},
	{From: diagram.Backend, To: diagram.External, ToLabelContains: "llm", Label: "inference"},
	{From: diagram.Backend, To: diagram.External, ToLabelContains: "openai", Label: "inference"},
	{From: diagram.Backend, To: diagram.External, ToLabelContains: "anthropic", Label: "inference"},
	{From: diagram.Backend, To: diagram.External, Label: "integrates"},
	{From: diagram.Backend, To: diagram.Background, Label: "enqueues jobs"},
	{From: diagram.Background, To: diagram.Storage, Label: "writes"},
	{From: diagram.Background, To: diagram.External, Label: "calls"},
	{From: diagram.Auth, To: diagram.Storage, Label: "stores sessions"},
}

// NewEdgeID returns a fresh edge identifier.
func NewEdgeID() string {
	return "edge-" + uuid.NewString()
}

// AutoGenerateEdges applies DefaultRules. It returns only new edges; the caller merges.
func AutoGenerateEdges(nodes []diagram.Node, existing []diagram.Edge) []diagram.Edge {
	return AutoGenerateEdgesWith(DefaultRules, nodes, existing, NewEdgeID)
}

// AutoGenerateEdgesWith scans rules in order and emits at most one edge per
// ordered node pair, skipping pairs already connected in existing.
func AutoGenerateEdgesWith(rules []Rule, nodes []diagram.Node, existing []diagram.Edge, newID func() string) []diagram.Edge {
	connected := make(map[string]bool, len(existing))
	for _, e := range existing {
		connected[e.Key()] = true
	}

	var generated []diagram.Edge
	for _, rule := range rules {
		for _, source := range nodes {
			if source.Type != rule.From {
				continue
			}
			for _, target := range nodes {
				if target.Type != rule.To || target.ID == source.ID {
					continue
				}
				key := diagram.PairKey(source.ID, target.ID)
				if connected[key] || !rule.matchesTarget(target) {
					continue
				}
				connected[key] = true
				generated = append(generated, diagram.Edge{
					ID:     newID(),
					Source: source.ID,
					Target: target.ID,
					Data:   &diagram.EdgeData{Label: rule.Label},
				})
			}
		}
	}
	return generated
}

// Merge appends generated edges to existing without modifying either slice.
func Merge(existing, generated []diagram.Edge) []diagram.Edge {
	out := make([]diagram.Edge, 0, len(existing)+len(generated))
	out = append(out, existing...)
	return append(out, generated...)
}
