package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_NilNodes(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"untyped nil", nil},
		{"nil query", (*Query)(nil)},
		{"nil single query", (*SingleQuery)(nil)},
		{"nil map literal", (*MapLiteral)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			Walk(tt.node, func(Node) bool { calls++; return true })
			assert.Zero(t, calls)
		})
	}
}

func TestWalk_Counts(t *testing.T) {
	tests := []struct {
		name                string
		query               string
		nodes, rels, values int
	}{
		{"chain without properties", `MATCH (a)-[r]->(b) RETURN a`, 2, 1, 1},
		{"named path", `MATCH p = (a)-[:ACTED_IN]->(m {name: 'x'}) RETURN p`, 2, 1, 1},
		{"where", `MATCH (n) WHERE n.name = $name RETURN n`, 1, 0, 2},
		{"pattern comprehension", `MATCH (a) RETURN [(a)-[:ACTED_IN]->(m) | m.name] AS names`, 3, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.query)
			require.NoError(t, err)

			var nodes, rels, values int
			Walk(stmt, func(n Node) bool {
				switch n.(type) {
				case *NodePattern:
					nodes++
				case *RelPattern:
					rels++
				case *Variable:
					values++
				}
				return true
			})
			assert.Equal(t, tt.nodes, nodes, "node patterns")
			assert.Equal(t, tt.rels, rels, "relationship patterns")
			assert.Equal(t, tt.values, values, "variables")
		})
	}
}
