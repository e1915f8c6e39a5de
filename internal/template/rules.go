package template

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/topology"
)

const inferredNote = "Inferred from types"

// IntegrationRow is one line of the Integration Rules table.
type IntegrationRow struct {
	Source   diagram.Node
	Target   diagram.Node
	Label    string
	Pattern  string
	Inferred bool
}

// IntegrationRows lists explicit edges first, then inferred pairs that no
// explicit edge covers in the same direction. Edges naming unknown nodes are skipped.
func IntegrationRows(nodes []diagram.Node, edges []diagram.Edge) []IntegrationRow {
	index := diagram.NodeIndex(nodes)
	covered := make(map[string]bool, len(edges))

	var rows []IntegrationRow
	for _, e := range edges {
		source, okS := index[e.Source]
		target, okT := index[e.Target]
		if !okS || !okT {
			continue
		}
		covered[e.Key()] = true
		pattern := topology.InferCommunicationPattern(source.Type, target.Type)
		if pattern == "" {
			pattern = "TBD"
		}
		rows = append(rows, IntegrationRow{Source: source, Target: target, Label: e.Label(), Pattern: pattern})
	}

	for _, pair := range topology.DeriveIntegrationPairs(nodes) {
		if covered[diagram.PairKey(pair.Source.ID, pair.Target.ID)] {
			continue
		}
		rows = append(rows, IntegrationRow{Source: pair.Source, Target: pair.Target, Pattern: pair.Pattern, Inferred: true})
	}
	return rows
}

// architectureConstraints returns constraints for the component types present.
func architectureConstraints(nodes []diagram.Node) []string {
	counts := diagram.CountByType(nodes)
	constraints := []string{
		"Components communicate only through the integrations listed below.",
		"Each component lives in its own top-level directory named after its spec file.",
		"Configuration comes from environment variables; no secrets in source control.",
	}
	if counts[diagram.Storage] > 0 {
		constraints = append(constraints, "Only backend, auth, and background components access storage directly.")
	}
	if counts[diagram.Frontend] > 0 && counts[diagram.Backend] > 0 {
		constraints = append(constraints, "The frontend talks to the backend only through its public API.")
	}
	if counts[diagram.Auth] > 0 {
		constraints = append(constraints, "Every protected operation verifies identity through the auth component.")
	}
	if counts[diagram.External] > 0 {
		constraints = append(constraints, "External services are wrapped in adapters; vendor types never leak into core code.")
	}
	if counts[diagram.Background] > 0 {
		constraints = append(constraints, "Long-running work is enqueued for background processing, never done inline.")
	}
	return constraints
}

// ProjectRules renders PROJECT_RULES.md.
func ProjectRules(in Input) string {
	var b strings.Builder
	title := ProjectTitle(in.ProjectName)
	specNames := SpecFileNames(in.Nodes)

	b.WriteString(fmt.Sprintf("# Project Rules: %s\n\n", title))
	b.WriteString("> This document is the source of truth for architecture decisions. Change the diagram, not this file.\n\n")

	b.WriteString("## System Overview\n\n")
	b.WriteString(fmt.Sprintf("%s consists of %d component(s): %s.\n\n", title, len(in.Nodes), TypeBreakdown(in.Nodes)))

	b.WriteString("## Component Registry\n\n")
	b.WriteString("| Component | Type | Tech Stack | Spec |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, n := range in.Nodes {
		path := SpecPath(specNames[n.ID])
		b.WriteString(fmt.Sprintf("| %s | %s | %s | [%s](%s) |\n",
			cell(nodeLabel(n)), n.Type.Title(), cell(techStackText(n)), path, path))
	}
	b.WriteString("\n")

	b.WriteString("## Architecture Constraints\n\n")
	writeBullets(&b, architectureConstraints(in.Nodes))

	b.WriteString("## Code Standards\n\n")
	b.WriteString("| Area | Standard |\n")
	b.WriteString("|---|---|\n")
	seenRows := make(map[string]bool)
	writeRow := func(row string) {
		if !seenRows[row] {
			seenRows[row] = true
			b.WriteString(row)
		}
	}
	for _, tech := range TechUnion(in.Nodes) {
		if standard, ok := StandardFor(tech); ok {
			writeRow(fmt.Sprintf("| %s | %s |\n", cell(tech), standard))
		} else {
			writeRow(fmt.Sprintf("| General | %s |\n", generalStandard))
		}
	}
	if len(seenRows) == 0 {
		writeRow(fmt.Sprintf("| General | %s |\n", generalStandard))
	}
	b.WriteString("\n")

	b.WriteString("## Build Order\n\n")
	for i, n := range BuildOrder(in.Nodes) {
		b.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, nodeLabel(n), n.Type.Title()))
	}
	b.WriteString("\n")

	b.WriteString("## Integration Rules\n\n")
	rows := IntegrationRows(in.Nodes, in.Edges)
	if len(rows) == 0 {
		b.WriteString("_No integrations defined._\n")
		return b.String()
	}
	b.WriteString("| From | To | Relationship | Pattern | Source |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, row := range rows {
		source := "Diagram edge"
		if row.Inferred {
			source = inferredNote
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			cell(nodeLabel(row.Source)), cell(nodeLabel(row.Target)), cell(row.Label), row.Pattern, source))
	}
	return b.String()
}
