package validator

import (
	"testing"

	"github.com/leapstack-labs/graphask/internal/testutil"
	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func movies() *graphschema.Snapshot {
	return graphschema.FromInfo(testutil.MoviesSchema(), nil)
}

type verdictCase struct {
	name     string
	query    string
	accepted bool
	reason   core.Reason
	fragment string
}

func runCases(t *testing.T, snap *graphschema.Snapshot, policy Policy, tests []verdictCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(core.CandidateQuery{Text: tt.query}, snap, policy)
			if tt.accepted {
				assert.True(t, v.Accepted, "unexpected rejection: %s", v)
				return
			}
			require.False(t, v.Accepted, "expected rejection of %q", tt.query)
			assert.Equal(t, tt.reason, v.Reason)
			if tt.fragment != "" {
				assert.Equal(t, tt.fragment, v.Fragment)
			}
			assert.NotEmpty(t, v.Detail)
		})
	}
}

func TestValidate_Syntax(t *testing.T) {
	runCases(t, movies(), Policy{}, []verdictCase{
		{name: "unbalanced paren", query: `MATCH (n RETURN n`, reason: core.ReasonMalformedSyntax},
		{name: "sql", query: `SELECT * FROM movies`, reason: core.ReasonMalformedSyntax},
		{name: "empty", query: ``, reason: core.ReasonMalformedSyntax},
		{name: "two statements", query: `MATCH (n) RETURN n; MATCH (m) RETURN m`, reason: core.ReasonMalformedSyntax},
		{name: "no return", query: `MATCH (m:Movie)`, reason: core.ReasonMalformedSyntax},
	})
}

func TestValidate_SyntaxPosition(t *testing.T) {
	v := Validate(core.CandidateQuery{Text: "MATCH (m:Movie)\nRETURN m.name m"}, movies(), Policy{})
	require.False(t, v.Accepted)
	assert.Equal(t, core.ReasonMalformedSyntax, v.Reason)
	assert.Equal(t, 2, v.Pos.Line)
}

func TestValidate_Conformance(t *testing.T) {
	runCases(t, movies(), Policy{}, []verdictCase{
		{name: "top gun actors", query: `MATCH (m:Movie {name:"Top Gun"})<-[:ACTED_IN]-(a:Actor) RETURN count(a) AS numberOfActors`, accepted: true},
		{name: "top gun runtime", query: `MATCH (m:Movie {name:"Top Gun"}) RETURN m.runtime`, accepted: true},
		{name: "unknown label", query: `MATCH (f:Film {name:"Top Gun"}) RETURN f.runtime`, reason: core.ReasonUnknownSchema, fragment: "Film"},
		{name: "unknown rel type", query: `MATCH (a:Actor)-[:PRODUCED]->(m:Movie) RETURN a.name`, reason: core.ReasonUnknownSchema, fragment: "PRODUCED"},
		{name: "unknown property in return", query: `MATCH (m:Movie) RETURN m.title`, reason: core.ReasonUnknownSchema, fragment: "title"},
		{name: "unknown property in map", query: `MATCH (m:Movie {title: 'x'}) RETURN m`, reason: core.ReasonUnknownSchema, fragment: "title"},
		{name: "property of other label", query: `MATCH (a:Actor) RETURN a.runtime`, reason: core.ReasonUnknownSchema, fragment: "runtime"},
		{name: "rel property", query: `MATCH (:Actor)-[r:ACTED_IN]->(:Movie) RETURN r.roles`, accepted: true},
		{name: "unknown rel property", query: `MATCH (:Actor)-[r:ACTED_IN]->(:Movie) RETURN r.name`, reason: core.ReasonUnknownSchema, fragment: "name"},
		{name: "unlabeled node known key", query: `MATCH (n) RETURN n.born`, accepted: true},
		{name: "unlabeled node unknown key", query: `MATCH (n) RETURN n.title`, reason: core.ReasonUnknownSchema, fragment: "title"},
		{name: "label predicate", query: `MATCH (n) WHERE n:Film RETURN n`, reason: core.ReasonUnknownSchema, fragment: "Film"},
		{name: "map projection", query: `MATCH (m:Movie) RETURN m {.name, .title} AS movie`, reason: core.ReasonUnknownSchema, fragment: "title"},
		{name: "binding survives WITH", query: `MATCH (m:Movie) WITH m RETURN m.title`, reason: core.ReasonUnknownSchema, fragment: "title"},
		{name: "aliased value", query: `MATCH (m:Movie) WITH m.name AS name RETURN name`, accepted: true},
		{name: "map value keys unchecked", query: `WITH {title: 'x'} AS m RETURN m.title`, accepted: true},
		{name: "unwound value keys unchecked", query: `UNWIND [{title: 'x'}] AS row RETURN row.title`, accepted: true},
		{name: "comprehension shadows node", query: `MATCH (m:Movie) RETURN [m IN [{title: 'x'}] | m.title] AS t`, accepted: true},
		{name: "pattern predicate", query: `MATCH (a:Actor) WHERE (a)-[:DIRECTED]->(:Film) RETURN a`, reason: core.ReasonUnknownSchema, fragment: "Film"},
		{name: "create unknown label", query: `CREATE (f:Film {name: 'x'}) RETURN f`, reason: core.ReasonUnknownSchema, fragment: "Film"},
		{name: "set unknown label", query: `MATCH (m:Movie {name: 'x'}) SET m:Film`, reason: core.ReasonUnknownSchema, fragment: "Film"},
		{name: "set unknown property", query: `MATCH (m:Movie {name: 'x'}) SET m.title = 'y'`, reason: core.ReasonUnknownSchema, fragment: "title"},
		{name: "order by projected alias", query: `MATCH (m:Movie) RETURN m.name AS title ORDER BY title`, accepted: true},
		{name: "unwound collected nodes", query: `MATCH (a:Actor) WITH collect(a) AS xs UNWIND xs AS x RETURN x.bogus`, reason: core.ReasonUnknownSchema, fragment: "bogus"},
		{name: "unwound collected nodes keep labels", query: `MATCH (a:Actor) WITH collect(a) AS xs UNWIND xs AS x RETURN x.runtime`, reason: core.ReasonUnknownSchema, fragment: "runtime"},
		{name: "unwound collected nodes known key", query: `MATCH (a:Actor) WITH collect(a) AS xs UNWIND xs AS x RETURN x.name`, accepted: true},
		{name: "comprehension over path nodes", query: `MATCH p=(a:Actor)-[:ACTED_IN]->() RETURN [n IN nodes(p) | n.bogus]`, reason: core.ReasonUnknownSchema, fragment: "bogus"},
		{name: "comprehension over path nodes known key", query: `MATCH p=(a:Actor)-[:ACTED_IN]->() RETURN [n IN nodes(p) | n.name] AS names`, accepted: true},
		{name: "quantifier over nodes", query: `MATCH (a:Actor) RETURN any(x IN [a] WHERE x.bogus) AS b`, reason: core.ReasonUnknownSchema, fragment: "bogus"},
		{name: "relationships of path", query: `MATCH p=(:Actor)-[:ACTED_IN]->(:Movie) UNWIND relationships(p) AS r RETURN r.name`, reason: core.ReasonUnknownSchema, fragment: "name"},
		{name: "variable length rel", query: `MATCH (:Actor)-[rs:ACTED_IN*1..2]->(:Movie) RETURN [r IN rs | r.roles] AS roles`, accepted: true},
		{name: "mixed list", query: `MATCH (a:Actor)-[r:ACTED_IN]->(m:Movie) UNWIND [a, r] AS x RETURN x.bogus`, reason: core.ReasonUnknownSchema, fragment: "bogus"},
		{name: "mixed list known key", query: `MATCH (a:Actor)-[r:ACTED_IN]->(m:Movie) UNWIND [a, r] AS x RETURN x.roles`, accepted: true},
		{name: "parameter rows unchecked", query: `UNWIND $rows AS row RETURN row.title`, accepted: true},
		{name: "foreach over nodes", query: `MATCH (a:Actor {name: 'x'}) FOREACH (n IN [a] | SET n.bogus = 1)`, reason: core.ReasonUnknownSchema, fragment: "bogus"},
		{name: "exists subquery", query: `MATCH (a:Actor) WHERE EXISTS { MATCH (a)-[:ACTED_IN]->(m:Movie) WHERE m.title = 'x' } RETURN a`, reason: core.ReasonUnknownSchema, fragment: "title"},
	})
}

func TestValidate_NilSnapshotSkipsConformance(t *testing.T) {
	v := Validate(core.CandidateQuery{Text: `MATCH (f:Film) RETURN f.title`}, nil, Policy{})
	assert.True(t, v.Accepted)
}

func TestValidate_UnknownLabelPosition(t *testing.T) {
	v := Validate(core.CandidateQuery{Text: `MATCH (f:Film) RETURN f`}, movies(), Policy{})
	require.False(t, v.Accepted)
	assert.Equal(t, 1, v.Pos.Line)
	assert.Contains(t, v.Detail, "Film")
}

func TestValidate_Safety(t *testing.T) {
	runCases(t, movies(), Policy{}, []verdictCase{
		{name: "delete everything", query: `MATCH (n) DETACH DELETE n`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE n"},
		{name: "delete by property map", query: `MATCH (m:Movie {name: 'Top Gun'}) DETACH DELETE m`, accepted: true},
		{name: "set by where", query: `MATCH (m:Movie) WHERE m.name = 'Top Gun' SET m.runtime = 110`, accepted: true},
		{name: "set all rows", query: `MATCH (m:Movie) SET m.runtime = 0`, reason: core.ReasonDisallowed, fragment: "SET m"},
		{name: "is null does not scope", query: `MATCH (m:Movie) WHERE m.name IS NULL DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
		{name: "limit scopes", query: `MATCH (m:Movie) WITH m LIMIT 1 DELETE m`, accepted: true},
		{name: "with where scopes", query: `MATCH (m:Movie) WITH m WHERE m.runtime > 200 DELETE m`, accepted: true},
		{name: "scoped through chain", query: `MATCH (a:Actor {name: 'Tom Cruise'})-[r:ACTED_IN]->(m:Movie) DELETE r`, accepted: true},
		{name: "unscoped cartesian", query: `MATCH (a:Actor {name: 'Tom Cruise'}), (m:Movie) CREATE (a)-[:ACTED_IN]->(m)`, reason: core.ReasonDisallowed, fragment: "CREATE m"},
		{name: "standalone create", query: `CREATE (m:Movie {name: 'New'}) RETURN m`, accepted: true},
		{name: "merge", query: `MERGE (m:Movie {name: 'New'}) ON CREATE SET m.runtime = 100 RETURN m`, accepted: true},
		{name: "remove all rows", query: `MATCH (m:Movie) REMOVE m.runtime`, reason: core.ReasonDisallowed, fragment: "REMOVE m"},
		{name: "foreach over literal", query: `FOREACH (x IN ['a', 'b'] | CREATE (:Movie {name: x}))`, accepted: true},
		{name: "foreach over unscoped rows", query: `MATCH (m:Movie) FOREACH (x IN [1] | SET m.runtime = x)`, reason: core.ReasonDisallowed, fragment: "FOREACH m"},
		{name: "subquery leaves outer rows unscoped", query: `MATCH (m:Movie) CALL { MATCH (a:Actor {name: 'x'}) RETURN a } DELETE a`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
		{name: "read query", query: `MATCH (n) RETURN n`, accepted: true},
		{name: "create index", query: `CREATE INDEX movie_name FOR (m:Movie) ON (m.name)`, reason: core.ReasonDisallowed, fragment: "CREATE INDEX"},
		{name: "drop constraint", query: `DROP CONSTRAINT foo`, reason: core.ReasonDisallowed},
		{name: "show", query: `SHOW INDEXES`, accepted: true},
		{name: "allowlisted procedure", query: `CALL db.labels() YIELD label RETURN label`, accepted: true},
		{name: "namespace procedure", query: `CALL db.schema.visualization()`, accepted: true},
		{name: "other procedure", query: `CALL dbms.killQuery('q-1')`, reason: core.ReasonDisallowed, fragment: "CALL dbms.killQuery"},
		{name: "load csv", query: `LOAD CSV FROM 'file:///x.csv' AS row RETURN row`, reason: core.ReasonDisallowed, fragment: "LOAD CSV"},

		// Predicates that keep every row do not scope.
		{name: "self comparison", query: `MATCH (n) WHERE n = n DETACH DELETE n`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE n"},
		{name: "property compared with itself", query: `MATCH (m:Movie) WHERE m.name = m.name DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
		{name: "disjunction", query: `MATCH (n) WHERE true OR n.name = 'x' DETACH DELETE n`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE n"},
		{name: "negation", query: `MATCH (m:Movie) WHERE NOT m.name = 'Top Gun' DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
		{name: "label predicate", query: `MATCH (n) WHERE n:Movie DETACH DELETE n`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE n"},
		{name: "not equal", query: `MATCH (m:Movie) WHERE m.name <> 'x' DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
		{name: "membership in property", query: `MATCH (a:Actor) WHERE 'x' IN a.name DELETE a`, reason: core.ReasonDisallowed, fragment: "DELETE a"},
		{name: "huge limit", query: `MATCH (n) WITH n LIMIT 1000000000 DETACH DELETE n`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE n"},
		{name: "parameter limit", query: `MATCH (n) WITH n LIMIT $n DETACH DELETE n`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE n"},
		{name: "empty property map", query: `MATCH (m:Movie {}) DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},

		// Comparisons reached through AND do.
		{name: "conjunction", query: `MATCH (m:Movie) WHERE m.released > 1980 AND m.name = 'Top Gun' DELETE m`, accepted: true},
		{name: "value on the left", query: `MATCH (m:Movie) WHERE 'Top Gun' = m.name DELETE m`, accepted: true},
		{name: "in list", query: `MATCH (m:Movie) WHERE m.name IN ['Top Gun', 'Heat'] DELETE m`, accepted: true},
		{name: "element id", query: `MATCH (n) WHERE elementId(n) = $id DETACH DELETE n`, accepted: true},
		{name: "id", query: `MATCH (n) WHERE id(n) = 42 DETACH DELETE n`, accepted: true},
	})
}

func TestValidate_WriteLimit(t *testing.T) {
	runCases(t, movies(), Policy{}, []verdictCase{
		{name: "default cap", query: `MATCH (m:Movie) WITH m LIMIT 100 DELETE m`, accepted: true},
		{name: "over default cap", query: `MATCH (m:Movie) WITH m LIMIT 101 DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
	})
	runCases(t, movies(), Policy{WriteLimit: 5}, []verdictCase{
		{name: "within cap", query: `MATCH (m:Movie) WITH m LIMIT 5 DELETE m`, accepted: true},
		{name: "over cap", query: `MATCH (m:Movie) WITH m LIMIT 6 DELETE m`, reason: core.ReasonDisallowed, fragment: "DELETE m"},
	})
}

func TestValidate_AllowDangerous(t *testing.T) {
	runCases(t, movies(), Policy{AllowDangerous: true}, []verdictCase{
		{name: "delete everything", query: `MATCH (n) DETACH DELETE n`, accepted: true},
		{name: "set all rows", query: `MATCH (m:Movie) SET m.runtime = 0`, accepted: true},
		{name: "drop constraint", query: `DROP CONSTRAINT foo`, accepted: true},
		{name: "other procedure", query: `CALL dbms.killQuery('q-1')`, accepted: true},
		{name: "load csv", query: `LOAD CSV FROM 'file:///x.csv' AS row RETURN row`, accepted: true},
		// Conformance still applies.
		{name: "unknown label", query: `MATCH (n:Film) DETACH DELETE n`, reason: core.ReasonUnknownSchema, fragment: "Film"},
	})
}

func TestValidate_ReadOnly(t *testing.T) {
	for _, policy := range []Policy{{ReadOnly: true}, {ReadOnly: true, AllowDangerous: true}} {
		runCases(t, movies(), policy, []verdictCase{
			{name: "read", query: `MATCH (m:Movie {name:"Top Gun"}) RETURN m.runtime`, accepted: true},
			{name: "scoped delete", query: `MATCH (m:Movie {name: 'Top Gun'}) DETACH DELETE m`, reason: core.ReasonDisallowed, fragment: "DETACH DELETE"},
			{name: "create", query: `CREATE (m:Movie {name: 'New'}) RETURN m`, reason: core.ReasonDisallowed, fragment: "CREATE"},
			{name: "merge", query: `MERGE (m:Movie {name: 'New'}) RETURN m`, reason: core.ReasonDisallowed, fragment: "MERGE"},
			{name: "admin", query: `DROP CONSTRAINT foo`, reason: core.ReasonDisallowed},
			{name: "allowlisted procedure", query: `CALL db.labels() YIELD label RETURN label`, accepted: true},
			{name: "other procedure", query: `CALL dbms.killQuery('q-1')`, reason: core.ReasonDisallowed},
		})
	}
}

func TestValidate_Deterministic(t *testing.T) {
	snap := movies()
	for _, q := range []string{
		`MATCH (n) DETACH DELETE n`,
		`MATCH (f:Film) RETURN f`,
		`MATCH (m:Movie {name:"Top Gun"}) RETURN m.runtime`,
	} {
		first := Validate(core.CandidateQuery{Text: q}, snap, Policy{})
		second := Validate(core.CandidateQuery{Text: q}, snap, Policy{})
		assert.Equal(t, first, second, q)
	}
}

func TestPolicy_AllowsProcedure(t *testing.T) {
	p := Policy{Procedures: []string{"apoc.path.*", "custom.read"}}

	tests := []struct {
		name string
		want bool
	}{
		{"db.labels", true},
		{"DB.LABELS", true},
		{"db.relationshipTypes", true},
		{"db.schema.nodeTypeProperties", true},
		{"apoc.meta.data", true},
		{"apoc.path.expand", true},
		{"custom.read", true},
		{"custom.readWrite", false},
		{"apoc.create.node", false},
		{"dbms.killQuery", false},
		{"db", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.AllowsProcedure(tt.name))
		})
	}

	assert.False(t, Policy{}.AllowsProcedure("apoc.path.expand"))
}
