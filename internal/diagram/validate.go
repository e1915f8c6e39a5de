package diagram

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/blueprint/internal/errors"
)

const (
	codeInvalid     = errors.ErrCodeDiagramInvalid
	codeUnknownType = errors.ErrCodeDiagramUnknownType
	codeDangling    = errors.ErrCodeDiagramDanglingEdge
	codeSelfLoop    = errors.ErrCodeDiagramSelfLoop
)

// Issue is a single schema violation.
type Issue struct {
	Code    errors.ErrorCode
	Message string
}

// ValidationError lists every problem found in a diagram.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return "invalid diagram: " + strings.Join(msgs, "; ")
}

// Unwrap exposes a coded error carrying the first issue's code.
func (e *ValidationError) Unwrap() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return errors.New(e.Issues[0].Code, e.Issues[0].Message)
}

// Messages returns the issue messages in detection order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		out[i] = issue.Message
	}
	return out
}

type issueList []Issue

func (l *issueList) add(code errors.ErrorCode, format string, args ...any) {
	*l = append(*l, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (l issueList) err() error {
	if len(l) == 0 {
		return nil
	}
	return &ValidationError{Issues: l}
}

// ValidateDiagram checks a serialized diagram: required top-level fields,
// known node types, matching data.type, and edge references.
func ValidateDiagram(d *Diagram) error {
	if d == nil {
		return &ValidationError{Issues: []Issue{{Code: codeInvalid, Message: "diagram is required"}}}
	}

	var issues issueList
	if strings.TrimSpace(d.Version) == "" {
		issues.add(codeInvalid, "version is required")
	}
	if strings.TrimSpace(d.CreatedAt) == "" {
		issues.add(codeInvalid, "createdAt is required")
	} else if _, err := time.Parse(time.RFC3339, d.CreatedAt); err != nil {
		issues.add(codeInvalid, "createdAt %q is not an ISO-8601 timestamp", d.CreatedAt)
	}

	ids := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		checkNodeIdentity(&issues, i, n.ID, ids)
		checkNodeType(&issues, n.ID, n.Type)
		if n.Data.Type != n.Type {
			issues.add(codeInvalid, "node %q: data.type %q does not match type %q", n.ID, n.Data.Type, n.Type)
		}
	}

	checkEdges(&issues, d.Edges, ids)
	return issues.err()
}

// ValidateGraph applies the diagram invariants to in-memory nodes and edges.
func ValidateGraph(nodes []Node, edges []Edge) error {
	var issues issueList
	ids := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		checkNodeIdentity(&issues, i, n.ID, ids)
		checkNodeType(&issues, n.ID, n.Type)
	}
	checkEdges(&issues, edges, ids)
	return issues.err()
}

func checkNodeIdentity(issues *issueList, index int, id string, seen map[string]bool) {
	switch {
	case id == "":
		issues.add(codeInvalid, "node at index %d has no id", index)
	case seen[id]:
		issues.add(codeInvalid, "duplicate node id %q", id)
	default:
		seen[id] = true
	}
}

func checkNodeType(issues *issueList, id string, t ComponentType) {
	if !t.Valid() {
		issues.add(codeUnknownType, "node %q: unknown component type %q", id, t)
	}
}

func checkEdges(issues *issueList, edges []Edge, nodeIDs map[string]bool) {
	edgeIDs := make(map[string]bool, len(edges))
	for i, e := range edges {
		switch {
		case e.ID == "":
			issues.add(codeInvalid, "edge at index %d has no id", i)
		case edgeIDs[e.ID]:
			issues.add(codeInvalid, "duplicate edge id %q", e.ID)
		default:
			edgeIDs[e.ID] = true
		}

		if e.Source == "" || e.Target == "" {
			issues.add(codeInvalid, "edge %q must have both source and target", e.ID)
			continue
		}
		if e.Source == e.Target {
			issues.add(codeSelfLoop, "edge %q connects node %q to itself", e.ID, e.Source)
		}
		if !nodeIDs[e.Source] {
			issues.add(codeDangling, "edge %q references unknown source node %q", e.ID, e.Source)
		}
		if !nodeIDs[e.Target] {
			issues.add(codeDangling, "edge %q references unknown target node %q", e.ID, e.Target)
		}
	}
}
