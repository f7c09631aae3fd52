package testutil

import (
	"context"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// MoviesSchema returns the introspection result of the small movie graph
// used across tests: actors and directors linked to movies.
func MoviesSchema() *core.SchemaInfo {
	return &core.SchemaInfo{
		Nodes: []core.LabelInfo{
			{Label: "Movie", Properties: []core.PropertyInfo{
				{Name: "name", Types: []string{"STRING"}},
				{Name: "runtime", Types: []string{"INTEGER"}},
				{Name: "released", Types: []string{"INTEGER"}},
			}},
			{Label: "Actor", Properties: []core.PropertyInfo{
				{Name: "name", Types: []string{"STRING"}},
				{Name: "born", Types: []string{"INTEGER"}},
			}},
			{Label: "Director", Properties: []core.PropertyInfo{
				{Name: "name", Types: []string{"STRING"}},
			}},
		},
		Relationships: []core.RelTypeInfo{
			{Type: "ACTED_IN", Properties: []core.PropertyInfo{
				{Name: "roles", Types: []string{"LIST"}},
			}},
			{Type: "DIRECTED"},
		},
		Patterns: []core.RelPattern{
			{From: "Actor", Type: "ACTED_IN", To: "Movie"},
			{From: "Director", Type: "DIRECTED", To: "Movie"},
		},
	}
}

// StaticIntrospector returns a fixed schema.
type StaticIntrospector struct {
	Info *core.SchemaInfo
	Err  error
}

// Introspect implements graphschema.Introspector.
func (s StaticIntrospector) Introspect(_ context.Context) (*core.SchemaInfo, error) {
	return s.Info, s.Err
}
