package graphschema

import (
	"strings"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// Format renders the snapshot as the schema text block embedded in prompts:
//
//	Node properties:
//	Movie {name: STRING, runtime: INTEGER}
//	Relationship properties:
//	ACTED_IN {roles: LIST}
//	The relationships:
//	(:Actor)-[:ACTED_IN]->(:Movie)
//
// Ordering is deterministic, so equal snapshots render identically.
func Format(s *Snapshot) string {
	var b strings.Builder

	b.WriteString("Node properties:\n")
	for _, label := range s.Labels {
		writeEntry(&b, label, s.NodeProps[label])
	}

	b.WriteString("Relationship properties:\n")
	for _, relType := range s.RelTypes {
		if len(s.RelProps[relType]) == 0 {
			continue
		}
		writeEntry(&b, relType, s.RelProps[relType])
	}

	b.WriteString("The relationships:\n")
	for _, p := range s.Patterns {
		b.WriteString("(:")
		b.WriteString(p.From)
		b.WriteString(")-[:")
		b.WriteString(p.Type)
		b.WriteString("]->(:")
		b.WriteString(p.To)
		b.WriteString(")\n")
	}
	// Types with no known endpoints still have to be visible to the oracle.
	covered := make(map[string]bool, len(s.Patterns))
	for _, p := range s.Patterns {
		covered[p.Type] = true
	}
	for _, relType := range s.RelTypes {
		if !covered[relType] {
			b.WriteString("()-[:")
			b.WriteString(relType)
			b.WriteString("]->()\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeEntry(b *strings.Builder, name string, props []core.PropertyInfo) {
	b.WriteString(name)
	b.WriteString(" {")
	for i, p := range props {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if len(p.Types) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(p.Types, "|"))
		}
	}
	b.WriteString("}\n")
}
