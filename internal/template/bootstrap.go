package template

import (
	"fmt"
	"strings"
)

// Bootstrap renders START.md, the initialization script handed to a coding agent.
func Bootstrap(in Input) string {
	var b strings.Builder
	title := ProjectTitle(in.ProjectName)
	specNames := SpecFileNames(in.Nodes)

	b.WriteString("# START HERE\n\n")
	b.WriteString(fmt.Sprintf("You are initializing work on **%s**. Complete every step below before writing code.\n\n", title))

	b.WriteString("## Project Summary\n\n")
	b.WriteString(fmt.Sprintf("- Components: %d\n", len(in.Nodes)))
	b.WriteString(fmt.Sprintf("- Breakdown: %s\n", TypeBreakdown(in.Nodes)))
	techs := TechUnion(in.Nodes)
	if len(techs) == 0 {
		b.WriteString("- Tech stack: not specified\n\n")
	} else {
		b.WriteString(fmt.Sprintf("- Tech stack: %s\n\n", strings.Join(techs, ", ")))
	}

	b.WriteString("## Initialization Protocol\n\n")
	b.WriteString("1. Read `README.md` for an overview of this bundle.\n")
	b.WriteString("2. Read `PROJECT_RULES.md` completely.\n")
	b.WriteString("3. Read `AGENT_PROTOCOL.md` and follow it for every change.\n")
	b.WriteString("4. Read the component specs in build order:\n")
	for _, n := range BuildOrder(in.Nodes) {
		b.WriteString(fmt.Sprintf("   - `%s` (%s)\n", SpecPath(specNames[n.ID]), nodeLabel(n)))
	}
	b.WriteString("5. Create `STATUS.md` with one `not started` entry per component.\n\n")

	b.WriteString("## Confirmation Gate\n\n")
	b.WriteString("Before writing any code, reply with exactly:\n\n")
	b.WriteString(fmt.Sprintf("> I have read the %s blueprint and will follow AGENT_PROTOCOL.md.\n\n", title))
	b.WriteString("Then wait for the user to confirm. Do not start implementation until they do.\n")
	return b.String()
}

// Readme renders README.md. It depends only on the project name.
func Readme(projectName string) string {
	var b strings.Builder
	title := ProjectTitle(projectName)

	b.WriteString(fmt.Sprintf("# %s Blueprint\n\n", title))
	b.WriteString("This bundle describes the architecture of the project and how a coding agent should build it.\n\n")

	b.WriteString("## Contents\n\n")
	b.WriteString("| File | Purpose |\n")
	b.WriteString("|---|---|\n")
	b.WriteString("| `START.md` | Initialization protocol. Give this to your agent first. |\n")
	b.WriteString("| `PROJECT_RULES.md` | Components, constraints, standards, build order, integrations. |\n")
	b.WriteString("| `AGENT_PROTOCOL.md` | Workflow, status tracking, and scope rules. |\n")
	b.WriteString("| `specs/` | One specification per component. |\n")
	b.WriteString("| `diagram.json` | The source diagram. Import it to keep editing. |\n\n")

	b.WriteString("## Quick Start\n\n")
	b.WriteString("1. Unzip this bundle at the root of an empty repository.\n")
	b.WriteString("2. Open your coding agent in that repository.\n")
	b.WriteString("3. Ask it to read `START.md` and follow it.\n\n")

	b.WriteString("## Editing\n\n")
	b.WriteString("Do not edit the generated files by hand. Change the diagram, then export again.\n")
	return b.String()
}
