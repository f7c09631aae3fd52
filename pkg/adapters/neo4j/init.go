// Package neo4j provides a graph store adapter for Neo4j and other stores
// speaking the Bolt protocol.
//
// This file registers the adapter with the adapter registry under the
// names "neo4j" and "memgraph". Import this package with a blank identifier
// to register it:
//
//	import _ "github.com/leapstack-labs/graphask/pkg/adapters/neo4j"
package neo4j

import (
	"log/slog"

	"github.com/leapstack-labs/graphask/pkg/adapter"
	"github.com/leapstack-labs/graphask/pkg/core"
)

// Store flavors.
const (
	FlavorNeo4j    = "neo4j"
	FlavorMemgraph = "memgraph"
)

func init() {
	adapter.Register(FlavorNeo4j, func(l *slog.Logger) core.Adapter { return New(FlavorNeo4j, l) })
	adapter.Register(FlavorMemgraph, func(l *slog.Logger) core.Adapter { return New(FlavorMemgraph, l) })
}
