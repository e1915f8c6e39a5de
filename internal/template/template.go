// Package template renders the deterministic blueprint documents from a graph.
// Every function here is pure: identical inputs yield byte-identical output.
package template

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
)

// Input is everything the document generators read.
type Input struct {
	Nodes       []diagram.Node
	Edges       []diagram.Edge
	ProjectName string
	OutOfScope  []string
}

// Result is the generated document set. ComponentSpecs is keyed by node id.
type Result struct {
	ProjectRules   string
	AgentProtocol  string
	ComponentSpecs map[string]string
}

// Generate renders the template versions of the three replaceable documents.
func Generate(in Input) *Result {
	specs := make(map[string]string, len(in.Nodes))
	for _, n := range in.Nodes {
		specs[n.ID] = ComponentSpec(n, in)
	}
	return &Result{
		ProjectRules:   ProjectRules(in),
		AgentProtocol:  AgentProtocol(in),
		ComponentSpecs: specs,
	}
}

const untitledProject = "Untitled Project"

// ProjectTitle returns the display name of a project.
func ProjectTitle(name string) string {
	if strings.TrimSpace(name) == "" {
		return untitledProject
	}
	return strings.TrimSpace(name)
}

// TypeBreakdown renders counts per type in declaration order, e.g. "1 frontend, 2 backend".
func TypeBreakdown(nodes []diagram.Node) string {
	counts := diagram.CountByType(nodes)
	var parts []string
	for _, t := range diagram.AllComponentTypes() {
		if counts[t] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// TechUnion returns every tech-stack entry across nodes, first occurrence
// wins, compared case-insensitively.
func TechUnion(nodes []diagram.Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range nodes {
		for _, tech := range n.Meta.TechStack {
			tech = strings.TrimSpace(tech)
			key := strings.ToLower(tech)
			if tech == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tech)
		}
	}
	return out
}

func techStackText(n diagram.Node) string {
	var parts []string
	for _, tech := range n.Meta.TechStack {
		if t := strings.TrimSpace(tech); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "TBD"
	}
	return strings.Join(parts, ", ")
}

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func nodeLabel(n diagram.Node) string {
	if strings.TrimSpace(n.Label) == "" {
		return n.ID
	}
	return n.Label
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}
