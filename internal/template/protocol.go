package template

import (
	"fmt"
	"strings"
)

var workflowSteps = []string{
	"Read START.md, PROJECT_RULES.md, and this file before touching code.",
	"Pick the next unfinished component in build order and read its spec.",
	"Record the task in STATUS.md as in progress.",
	"Implement only what the spec asks for, then run its validation checklist.",
	"Mark the task done in STATUS.md with a one-line summary of what changed.",
}

var statusContract = []string{
	"STATUS.md lives at the repository root and is the only progress log.",
	"Each component has exactly one entry: `not started`, `in progress`, `blocked`, or `done`.",
	"Update the entry before starting work and immediately after finishing it.",
	"A `blocked` entry names the blocker and the component that must change to unblock it.",
}

var scopeRules = []string{
	"Work on one component at a time.",
	"Do not add components, integrations, or technologies that are not in the blueprint.",
	"If the spec is ambiguous, stop and ask instead of guessing.",
	"Changes to another component's contract require updating that component's spec first.",
}

var minimalismRules = []string{
	"Write the least code that satisfies the spec and its checklist.",
	"No speculative abstractions, plugin systems, or configuration for hypothetical needs.",
	"Prefer the standard library and the packages listed in the spec.",
	"Delete dead code instead of commenting it out.",
}

// AgentProtocol renders AGENT_PROTOCOL.md.
func AgentProtocol(in Input) string {
	var b strings.Builder
	title := ProjectTitle(in.ProjectName)

	b.WriteString(fmt.Sprintf("# Agent Protocol: %s\n\n", title))
	b.WriteString("Follow this protocol for every change. It overrides general habits.\n\n")

	b.WriteString("## Workflow\n\n")
	for i, step := range workflowSteps {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	b.WriteString("\n")

	b.WriteString("## Status Tracking\n\n")
	writeBullets(&b, statusContract)

	b.WriteString("## Scope Discipline\n\n")
	writeBullets(&b, scopeRules)

	b.WriteString("## Minimalism\n\n")
	writeBullets(&b, minimalismRules)

	b.WriteString("## Code Standards\n\n")
	b.WriteString("| Technology | Standard |\n")
	b.WriteString("|---|---|\n")
	techs := TechUnion(in.Nodes)
	if len(techs) == 0 {
		b.WriteString(fmt.Sprintf("| General | %s |\n", generalStandard))
	}
	for _, tech := range techs {
		standard, _ := StandardFor(tech)
		b.WriteString(fmt.Sprintf("| %s | %s |\n", cell(tech), standard))
	}
	b.WriteString("\n")

	b.WriteString("## Explicitly Out of Scope\n\n")
	if len(in.OutOfScope) == 0 {
		b.WriteString("_No items excluded._\n")
		return b.String()
	}
	seen := make(map[string]bool, len(in.OutOfScope))
	for _, id := range in.OutOfScope {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		item := LookupOutOfScope(id)
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", item.Title, item.Rationale))
	}
	return b.String()
}
