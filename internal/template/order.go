package template

import (
	"sort"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
)

// BuildRank orders component types for implementation: data and auth
// layers come before the logic and UI that depend on them.
func BuildRank(t diagram.ComponentType) int {
	switch t {
	case diagram.Storage:
		return 1
	case diagram.Auth:
		return 2
	case diagram.Backend:
		return 3
	case diagram.Frontend:
		return 4
	case diagram.External:
		return 5
	case diagram.Background:
		return 6
	}
	return 7
}

// BuildOrder returns a copy of nodes sorted by BuildRank. Ties keep input order.
func BuildOrder(nodes []diagram.Node) []diagram.Node {
	ordered := make([]diagram.Node, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return BuildRank(ordered[i].Type) < BuildRank(ordered[j].Type)
	})
	return ordered
}
