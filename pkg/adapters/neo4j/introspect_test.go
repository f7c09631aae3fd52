package neo4j

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/graphask/pkg/core"
)

func TestSchemaBuilder_Procedures(t *testing.T) {
	b := newSchemaBuilder()
	b.addNodeTypeRow(map[string]any{"nodeLabels": []any{"Movie"}, "propertyName": "name", "propertyTypes": []any{"String"}})
	b.addNodeTypeRow(map[string]any{"nodeLabels": []any{"Movie"}, "propertyName": "released", "propertyTypes": []any{"Long"}})
	b.addNodeTypeRow(map[string]any{"nodeLabels": []any{"Actor"}, "propertyName": "name", "propertyTypes": []any{"String"}})
	b.addNodeTypeRow(map[string]any{"nodeLabels": []any{"Actor"}, "propertyName": "born", "propertyTypes": []any{"Long", "String"}})
	b.addNodeTypeRow(map[string]any{"nodeLabels": []any{"Genre"}, "propertyName": nil, "propertyTypes": nil})
	b.addRelTypeRow(map[string]any{"relType": ":`ACTED_IN`", "propertyName": "roles", "propertyTypes": []any{"StringArray"}})
	b.addRelTypeRow(map[string]any{"relType": ":`DIRECTED`", "propertyName": nil, "propertyTypes": nil})
	b.addRelTypeRow(map[string]any{"relType": "", "propertyName": "x"})
	b.addSampledRel(map[string]any{"from": []any{"Actor"}, "type": "ACTED_IN", "to": []any{"Movie"}, "props": map[string]any{"roles": []any{"Maverick"}}}, false)

	info := b.info()

	assert.Equal(t, []core.LabelInfo{
		{Label: "Actor", Properties: []core.PropertyInfo{
			{Name: "born", Types: []string{"INTEGER", "STRING"}},
			{Name: "name", Types: []string{"STRING"}},
		}},
		{Label: "Genre", Properties: []core.PropertyInfo{}},
		{Label: "Movie", Properties: []core.PropertyInfo{
			{Name: "name", Types: []string{"STRING"}},
			{Name: "released", Types: []string{"INTEGER"}},
		}},
	}, info.Nodes)
	assert.Equal(t, []core.RelTypeInfo{
		{Type: "ACTED_IN", Properties: []core.PropertyInfo{{Name: "roles", Types: []string{"LIST"}}}},
		{Type: "DIRECTED", Properties: []core.PropertyInfo{}},
	}, info.Relationships)
	assert.Equal(t, []core.RelPattern{{From: "Actor", Type: "ACTED_IN", To: "Movie"}}, info.Patterns)
}

func TestSchemaBuilder_Sampled(t *testing.T) {
	b := newSchemaBuilder()
	b.addSampledNode(map[string]any{"labels": []any{"Movie"}, "props": map[string]any{"name": "Top Gun", "runtime": int64(110)}})
	b.addSampledNode(map[string]any{"labels": []any{"Movie"}, "props": map[string]any{"name": "Heat", "rating": 8.3}})
	b.addSampledNode(map[string]any{"labels": []any{"Actor", "Director"}, "props": map[string]any{"name": "Clint Eastwood"}})
	b.addSampledRel(map[string]any{"from": []any{"Actor", "Director"}, "type": "DIRECTED", "to": []any{"Movie"}, "props": map[string]any{}}, true)
	b.addSampledRel(map[string]any{"from": []any{"Actor"}, "type": "ACTED_IN", "to": []any{"Movie"}, "props": map[string]any{"roles": []any{"Will"}}}, true)

	info := b.info()

	require.Len(t, info.Nodes, 3)
	assert.Equal(t, "Actor", info.Nodes[0].Label)
	assert.Equal(t, "Director", info.Nodes[1].Label)
	assert.Equal(t, []core.PropertyInfo{{Name: "name", Types: []string{"STRING"}}}, info.Nodes[1].Properties)
	assert.Equal(t, []core.PropertyInfo{
		{Name: "name", Types: []string{"STRING"}},
		{Name: "rating", Types: []string{"FLOAT"}},
		{Name: "runtime", Types: []string{"INTEGER"}},
	}, info.Nodes[2].Properties)

	assert.Equal(t, []core.RelTypeInfo{
		{Type: "ACTED_IN", Properties: []core.PropertyInfo{{Name: "roles", Types: []string{"LIST"}}}},
		{Type: "DIRECTED", Properties: []core.PropertyInfo{}},
	}, info.Relationships)
	assert.Equal(t, []core.RelPattern{
		{From: "Actor", Type: "ACTED_IN", To: "Movie"},
		{From: "Actor", Type: "DIRECTED", To: "Movie"},
		{From: "Director", Type: "DIRECTED", To: "Movie"},
	}, info.Patterns)
}

func TestParseRelType(t *testing.T) {
	assert.Equal(t, "ACTED_IN", parseRelType(":`ACTED_IN`"))
	assert.Equal(t, "ACTED_IN", parseRelType("ACTED_IN"))
	assert.Equal(t, "", parseRelType(""))
}

func TestPropertyTypes(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{[]any{"String"}, []string{"STRING"}},
		{[]any{"Long", "Double"}, []string{"INTEGER", "FLOAT"}},
		{[]any{"DateTime"}, []string{"DATETIME"}},
		{[]any{"LongArray"}, []string{"LIST"}},
		{nil, []string{""}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, propertyTypes(tt.in), "%v", tt.in)
	}
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "STRING", typeName("x"))
	assert.Equal(t, "INTEGER", typeName(int64(1)))
	assert.Equal(t, "FLOAT", typeName(1.5))
	assert.Equal(t, "BOOLEAN", typeName(true))
	assert.Equal(t, "LIST", typeName([]any{1}))
	assert.Equal(t, "MAP", typeName(map[string]any{}))
	assert.Equal(t, "", typeName(nil))
}

func TestIntrospect_NotConnected(t *testing.T) {
	a := New(FlavorNeo4j, nil)
	_, err := a.Introspect(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}
