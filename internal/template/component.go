package template

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/topology"
)

type integration struct {
	peer    diagram.Node
	pattern string
	labels  []string
}

// integrations checks the inferred pattern in both directions against every
// other node, attaching labels of explicit edges in the same direction.
func integrations(n diagram.Node, in Input) (outbound, inbound []integration) {
	edgeLabels := make(map[string][]string)
	for _, e := range in.Edges {
		if l := strings.TrimSpace(e.Label()); l != "" {
			edgeLabels[e.Key()] = append(edgeLabels[e.Key()], l)
		}
	}

	for _, other := range in.Nodes {
		if other.ID == n.ID {
			continue
		}
		if p := topology.InferCommunicationPattern(n.Type, other.Type); p != "" {
			outbound = append(outbound, integration{other, p, edgeLabels[diagram.PairKey(n.ID, other.ID)]})
		}
		if p := topology.InferCommunicationPattern(other.Type, n.Type); p != "" {
			inbound = append(inbound, integration{other, p, edgeLabels[diagram.PairKey(other.ID, n.ID)]})
		}
	}
	return outbound, inbound
}

func writeIntegrations(b *strings.Builder, heading string, list []integration) {
	b.WriteString("### " + heading + "\n\n")
	if len(list) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	for _, it := range list {
		line := fmt.Sprintf("- **%s** (%s): %s", nodeLabel(it.peer), it.peer.Type.Title(), it.pattern)
		if len(it.labels) > 0 {
			line += " - " + strings.Join(it.labels, ", ")
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

// ComponentSpec renders specs/<slug>.md for node n.
func ComponentSpec(n diagram.Node, in Input) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s (%s)\n\n", nodeLabel(n), n.Type.Title()))
	b.WriteString(fmt.Sprintf("**Project:** %s  \n", ProjectTitle(in.ProjectName)))
	b.WriteString(fmt.Sprintf("**Tech stack:** %s\n\n", techStackText(n)))
	if desc := strings.TrimSpace(n.Meta.Description); desc != "" {
		b.WriteString(desc + "\n\n")
	}

	b.WriteString("## Responsibilities\n\n")
	writeBullets(&b, Responsibilities(n.Type))

	b.WriteString("## Must Not\n\n")
	writeBullets(&b, AntiResponsibilities(n.Type))

	b.WriteString("## Integrations\n\n")
	outbound, inbound := integrations(n, in)
	writeIntegrations(&b, "Outbound", outbound)
	writeIntegrations(&b, "Inbound", inbound)

	b.WriteString("## Dependencies\n\n")
	language := DetectLanguage(n.Meta.TechStack)
	if language == "" {
		language = "Unspecified"
	}
	b.WriteString(fmt.Sprintf("Language: %s\n\n", language))
	if deps := Dependencies(n.Meta.TechStack); len(deps) > 0 {
		b.WriteString("| Package | Purpose |\n")
		b.WriteString("|---|---|\n")
		for _, dep := range deps {
			b.WriteString(fmt.Sprintf("| `%s` | %s |\n", dep.Name, dep.Purpose))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("_No known packages for this stack. Record every dependency you add here._\n\n")
	}

	b.WriteString("## Guidance\n\n")
	for _, g := range TypeGuidance(n.Type) {
		b.WriteString(fmt.Sprintf("- **%s:** %s\n", g.Label, g.Text))
	}
	b.WriteString("\n")

	b.WriteString("## Validation Checklist\n\n")
	for _, item := range Checklist(n.Type) {
		b.WriteString("- [ ] " + item + "\n")
	}
	b.WriteString("- [ ] " + StatusTrackerItem + "\n")
	return b.String()
}
