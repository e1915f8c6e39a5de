package generate

import (
	"github.com/felixgeelhaar/blueprint/internal/progress"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

// Kind identifies which replaceable document an artifact is.
type Kind string

const (
	KindProjectRules  Kind = "project-rules"
	KindAgentProtocol Kind = "agent-protocol"
	KindComponentSpec Kind = "component-spec"
)

// Archive paths of the fixed documents.
const (
	ProjectRulesPath  = "PROJECT_RULES.md"
	AgentProtocolPath = "AGENT_PROTOCOL.md"
)

// Artifact is one document the orchestrator asks the provider for.
type Artifact struct {
	Kind Kind `json:"kind"`
	// Name labels the artifact in errors and progress output.
	Name string `json:"name"`
	// NodeID is set for component specs.
	NodeID string `json:"nodeId,omitempty"`
	// Path is the archive path the document is written to.
	Path string `json:"path"`
}

// Phase is the progress phase during which a is generated.
func (a Artifact) Phase() progress.Phase {
	switch a.Kind {
	case KindProjectRules:
		return progress.PhaseProjectRules
	case KindAgentProtocol:
		return progress.PhaseAgentProtocol
	default:
		return progress.PhaseComponentSpecs
	}
}

// Artifacts lists the documents to generate for in, in generation order:
// project rules, agent protocol, then one spec per node in node order.
func Artifacts(in template.Input) []Artifact {
	names := template.SpecFileNames(in.Nodes)
	out := make([]Artifact, 0, len(in.Nodes)+2)
	out = append(out,
		Artifact{Kind: KindProjectRules, Name: ProjectRulesPath, Path: ProjectRulesPath},
		Artifact{Kind: KindAgentProtocol, Name: AgentProtocolPath, Path: AgentProtocolPath},
	)
	for _, n := range in.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		out = append(out, Artifact{
			Kind:   KindComponentSpec,
			Name:   label,
			NodeID: n.ID,
			Path:   template.SpecPath(names[n.ID]),
		})
	}
	return out
}

type resultBuilder struct {
	res *template.Result
}

func newResultBuilder(nodes int) *resultBuilder {
	return &resultBuilder{res: &template.Result{ComponentSpecs: make(map[string]string, nodes)}}
}

func (r *resultBuilder) set(a Artifact, content string) {
	switch a.Kind {
	case KindProjectRules:
		r.res.ProjectRules = content
	case KindAgentProtocol:
		r.res.AgentProtocol = content
	case KindComponentSpec:
		r.res.ComponentSpecs[a.NodeID] = content
	}
}
