package generate

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

const systemPrompt = "You are a senior software architect writing blueprint documents that AI coding agents follow. " +
	"You are given a markdown skeleton. Keep every heading and table of the skeleton in the same order, " +
	"replace generic or placeholder text with guidance specific to this project, and do not invent components " +
	"or integrations that are not listed. Reply with the finished markdown document only, without code fences."

// ProjectRulesPrompt asks for the project rules document.
func ProjectRulesPrompt(in template.Input) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Write PROJECT_RULES.md for the project %q.\n\n", template.ProjectTitle(in.ProjectName)))
	writeContext(&b, in)
	writeSkeleton(&b, template.ProjectRules(in))
	return b.String()
}

// AgentProtocolPrompt asks for the agent protocol document.
func AgentProtocolPrompt(in template.Input) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Write AGENT_PROTOCOL.md for the project %q. ", template.ProjectTitle(in.ProjectName)))
	b.WriteString("It tells coding agents how to work: workflow, status tracking, scope discipline, and code standards.\n\n")
	writeContext(&b, in)
	writeSkeleton(&b, template.AgentProtocol(in))
	return b.String()
}

// ComponentSpecPrompt asks for the spec of a single component.
func ComponentSpecPrompt(n diagram.Node, in template.Input) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Write the component specification for %q (%s) in the project %q.\n\n",
		n.Label, n.Type.Title(), template.ProjectTitle(in.ProjectName)))
	if n.Meta.Description != "" {
		b.WriteString(fmt.Sprintf("Component description: %s\n", n.Meta.Description))
	}
	if len(n.Meta.TechStack) > 0 {
		b.WriteString(fmt.Sprintf("Component tech stack: %s\n", strings.Join(n.Meta.TechStack, ", ")))
	}
	b.WriteString("\n")
	writeContext(&b, in)
	writeSkeleton(&b, template.ComponentSpec(n, in))
	return b.String()
}

// PromptFor returns the prompt for artifact a.
func PromptFor(a Artifact, in template.Input) string {
	switch a.Kind {
	case KindProjectRules:
		return ProjectRulesPrompt(in)
	case KindAgentProtocol:
		return AgentProtocolPrompt(in)
	default:
		for _, n := range in.Nodes {
			if n.ID == a.NodeID {
				return ComponentSpecPrompt(n, in)
			}
		}
		return ""
	}
}

func writeContext(b *strings.Builder, in template.Input) {
	b.WriteString("Components:\n")
	for _, n := range in.Nodes {
		b.WriteString(fmt.Sprintf("- %s [%s]", n.Label, n.Type))
		if len(n.Meta.TechStack) > 0 {
			b.WriteString(fmt.Sprintf(" tech: %s", strings.Join(n.Meta.TechStack, ", ")))
		}
		if n.Meta.Description != "" {
			b.WriteString(fmt.Sprintf(" - %s", n.Meta.Description))
		}
		b.WriteString("\n")
	}

	rows := template.IntegrationRows(in.Nodes, in.Edges)
	if len(rows) > 0 {
		b.WriteString("\nIntegrations:\n")
		for _, r := range rows {
			b.WriteString(fmt.Sprintf("- %s -> %s (%s)", r.Source.Label, r.Target.Label, r.Pattern))
			if r.Label != "" {
				b.WriteString(fmt.Sprintf(": %s", r.Label))
			}
			b.WriteString("\n")
		}
	}

	if len(in.OutOfScope) > 0 {
		b.WriteString("\nOut of scope (never add these):\n")
		for _, id := range in.OutOfScope {
			item := template.LookupOutOfScope(id)
			b.WriteString(fmt.Sprintf("- %s\n", item.Title))
		}
	}
	b.WriteString("\n")
}

func writeSkeleton(b *strings.Builder, skeleton string) {
	b.WriteString("Skeleton:\n")
	b.WriteString("<<<SKELETON\n")
	b.WriteString(skeleton)
	if !strings.HasSuffix(skeleton, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("SKELETON\n")
}
