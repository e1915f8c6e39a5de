// Package topology derives integration patterns between component types and
// materializes missing edges from an ordered rule list.
package topology

import "github.com/felixgeelhaar/blueprint/internal/diagram"

// Communication patterns reported for known type pairs.
const (
	PatternHTTP       = "HTTP REST/GraphQL"
	PatternORM        = "ORM/Query builder"
	PatternMiddleware = "Middleware/SDK"
	PatternJobQueue   = "Job queue"
	PatternDirectDB   = "Direct DB access"
)

type typePair struct {
	source, target diagram.ComponentType
}

var patterns = map[typePair]string{
	{diagram.Frontend, diagram.Backend}:    PatternHTTP,
	{diagram.Frontend, diagram.Auth}:       PatternMiddleware,
	{diagram.Backend, diagram.Storage}:     PatternORM,
	{diagram.Backend, diagram.Auth}:        PatternMiddleware,
	{diagram.Backend, diagram.External}:    PatternHTTP,
	{diagram.Backend, diagram.Background}:  PatternJobQueue,
	{diagram.Background, diagram.Storage}:  PatternDirectDB,
	{diagram.Background, diagram.External}: PatternHTTP,
	{diagram.Auth, diagram.Storage}:        PatternDirectDB,
}

// InferCommunicationPattern returns how source typically talks to target,
// or "" when the ordered pair has no known pattern. It is order-sensitive.
func InferCommunicationPattern(source, target diagram.ComponentType) string {
	return patterns[typePair{source, target}]
}

// IntegrationPair is an inferred directed integration between two nodes.
type IntegrationPair struct {
	Source  diagram.Node
	Target  diagram.Node
	Pattern string
}

// DeriveIntegrationPairs returns every ordered pair of distinct nodes with a
// non-empty inferred pattern, in source order then target order.
func DeriveIntegrationPairs(nodes []diagram.Node) []IntegrationPair {
	var pairs []IntegrationPair
	for i, source := range nodes {
		for j, target := range nodes {
			if i == j || source.ID == target.ID {
				continue
			}
			if p := InferCommunicationPattern(source.Type, target.Type); p != "" {
				pairs = append(pairs, IntegrationPair{Source: source, Target: target, Pattern: p})
			}
		}
	}
	return pairs
}
