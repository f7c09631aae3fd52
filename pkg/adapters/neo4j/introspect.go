package neo4j

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/core"
)

const (
	nodePropsQuery = `CALL db.schema.nodeTypeProperties()
YIELD nodeLabels, propertyName, propertyTypes
RETURN nodeLabels, propertyName, propertyTypes`

	relPropsQuery = `CALL db.schema.relTypeProperties()
YIELD relType, propertyName, propertyTypes
RETURN relType, propertyName, propertyTypes`

	sampleNodesQuery = `MATCH (n) WITH n LIMIT $limit
RETURN labels(n) AS labels, properties(n) AS props`

	sampleRelsQuery = `MATCH (a)-[r]->(b) WITH a, r, b LIMIT $limit
RETURN labels(a) AS from, type(r) AS type, labels(b) AS to, properties(r) AS props`
)

// Introspect reads the store's labels, relationship types and property
// keys. Relationship patterns are always sampled.
func (a *Adapter) Introspect(ctx context.Context) (*core.SchemaInfo, error) {
	if a.driver == nil {
		return nil, errNotConnected
	}
	b := newSchemaBuilder()
	limit := map[string]any{"limit": a.params.SampleSize}

	if a.params.Introspection == IntrospectProcedures {
		nodes, err := a.collect(ctx, nodePropsQuery, core.RunOptions{})
		if err != nil {
			return nil, fmt.Errorf("read node properties: %w", err)
		}
		for _, row := range nodes.Rows {
			b.addNodeTypeRow(row)
		}
		rels, err := a.collect(ctx, relPropsQuery, core.RunOptions{})
		if err != nil {
			return nil, fmt.Errorf("read relationship properties: %w", err)
		}
		for _, row := range rels.Rows {
			b.addRelTypeRow(row)
		}
	} else {
		nodes, err := a.collect(ctx, sampleNodesQuery, core.RunOptions{Params: limit})
		if err != nil {
			return nil, fmt.Errorf("sample nodes: %w", err)
		}
		for _, row := range nodes.Rows {
			b.addSampledNode(row)
		}
	}

	rels, err := a.collect(ctx, sampleRelsQuery, core.RunOptions{Params: limit})
	if err != nil {
		return nil, fmt.Errorf("sample relationships: %w", err)
	}
	sampleProps := a.params.Introspection == IntrospectSample
	for _, row := range rels.Rows {
		b.addSampledRel(row, sampleProps)
	}

	info := b.info()
	a.Logger.Debug("introspected graph store",
		"labels", len(info.Nodes),
		"relationship_types", len(info.Relationships),
		"patterns", len(info.Patterns))
	return info, nil
}

// schemaBuilder accumulates introspection rows into a core.SchemaInfo.
type schemaBuilder struct {
	nodes    map[string]map[string][]string
	rels     map[string]map[string][]string
	patterns map[core.RelPattern]bool
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{
		nodes:    make(map[string]map[string][]string),
		rels:     make(map[string]map[string][]string),
		patterns: make(map[core.RelPattern]bool),
	}
}

func addProp(set map[string]map[string][]string, owner, key, typ string) {
	props, ok := set[owner]
	if !ok {
		props = make(map[string][]string)
		set[owner] = props
	}
	if key == "" {
		return
	}
	if typ != "" && !slices.Contains(props[key], typ) {
		props[key] = append(props[key], typ)
	} else if _, ok := props[key]; !ok {
		props[key] = nil
	}
}

// addNodeTypeRow handles a row of db.schema.nodeTypeProperties. A label
// without properties has a null propertyName.
func (b *schemaBuilder) addNodeTypeRow(row map[string]any) {
	key, _ := row["propertyName"].(string)
	for _, label := range stringList(row["nodeLabels"]) {
		if key == "" {
			addProp(b.nodes, label, "", "")
			continue
		}
		for _, t := range propertyTypes(row["propertyTypes"]) {
			addProp(b.nodes, label, key, t)
		}
	}
}

// addRelTypeRow handles a row of db.schema.relTypeProperties, whose relType
// is written as :`TYPE`.
func (b *schemaBuilder) addRelTypeRow(row map[string]any) {
	raw, _ := row["relType"].(string)
	relType := parseRelType(raw)
	if relType == "" {
		return
	}
	key, _ := row["propertyName"].(string)
	if key == "" {
		addProp(b.rels, relType, "", "")
		return
	}
	for _, t := range propertyTypes(row["propertyTypes"]) {
		addProp(b.rels, relType, key, t)
	}
}

func (b *schemaBuilder) addSampledNode(row map[string]any) {
	props, _ := row["props"].(map[string]any)
	for _, label := range stringList(row["labels"]) {
		addProp(b.nodes, label, "", "")
		for k, v := range props {
			addProp(b.nodes, label, k, typeName(v))
		}
	}
}

func (b *schemaBuilder) addSampledRel(row map[string]any, withProps bool) {
	relType, _ := row["type"].(string)
	if relType == "" {
		return
	}
	if withProps {
		addProp(b.rels, relType, "", "")
		props, _ := row["props"].(map[string]any)
		for k, v := range props {
			addProp(b.rels, relType, k, typeName(v))
		}
	}
	for _, from := range stringList(row["from"]) {
		for _, to := range stringList(row["to"]) {
			b.patterns[core.RelPattern{From: from, Type: relType, To: to}] = true
		}
	}
}

func (b *schemaBuilder) info() *core.SchemaInfo {
	info := &core.SchemaInfo{}
	for _, label := range sortedKeys(b.nodes) {
		info.Nodes = append(info.Nodes, core.LabelInfo{Label: label, Properties: propInfos(b.nodes[label])})
	}
	for _, t := range sortedKeys(b.rels) {
		info.Relationships = append(info.Relationships, core.RelTypeInfo{Type: t, Properties: propInfos(b.rels[t])})
	}
	for p := range b.patterns {
		info.Patterns = append(info.Patterns, p)
	}
	slices.SortFunc(info.Patterns, func(x, y core.RelPattern) int {
		return strings.Compare(x.From+"\x00"+x.Type+"\x00"+x.To, y.From+"\x00"+y.Type+"\x00"+y.To)
	})
	return info
}

func propInfos(props map[string][]string) []core.PropertyInfo {
	out := make([]core.PropertyInfo, 0, len(props))
	for _, k := range sortedKeys(props) {
		types := slices.Clone(props[k])
		slices.Sort(types)
		out = append(out, core.PropertyInfo{Name: k, Types: types})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func parseRelType(s string) string {
	s = strings.TrimPrefix(s, ":")
	s = strings.TrimPrefix(s, "`")
	return strings.TrimSuffix(s, "`")
}

// stringList returns the string elements of a list value.
func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// procedureTypes maps db.schema type names onto the names used in prompts.
var procedureTypes = map[string]string{
	"String":  "STRING",
	"Long":    "INTEGER",
	"Integer": "INTEGER",
	"Double":  "FLOAT",
	"Float":   "FLOAT",
	"Boolean": "BOOLEAN",
	"Point":   "POINT",
}

// propertyTypes converts a propertyTypes list. An empty list yields one
// empty name so the key is still recorded.
func propertyTypes(v any) []string {
	var out []string
	for _, t := range stringList(v) {
		switch {
		case procedureTypes[t] != "":
			out = append(out, procedureTypes[t])
		case strings.HasSuffix(t, "Array"):
			out = append(out, "LIST")
		default:
			out = append(out, strings.ToUpper(t))
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// typeName names the type of a sampled property value.
func typeName(v any) string {
	switch v.(type) {
	case string:
		return "STRING"
	case int64, int:
		return "INTEGER"
	case float64:
		return "FLOAT"
	case bool:
		return "BOOLEAN"
	case []any:
		return "LIST"
	case map[string]any:
		return "MAP"
	case nil:
		return ""
	}
	return "STRING"
}
