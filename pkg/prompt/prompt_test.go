package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/graphask/internal/testutil"
	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

func movies() *graphschema.Snapshot {
	return graphschema.FromInfo(testutil.MoviesSchema(), nil)
}

func TestCompose(t *testing.T) {
	msgs, err := Compose(context.Background(), movies(), "List all actors in Top Gun", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	sys := msgs[0].Content
	// The schema is embedded in full with its braces intact.
	assert.Contains(t, sys, graphschema.Format(movies()))
	assert.Contains(t, sys, "Movie {name: STRING, released: INTEGER, runtime: INTEGER}")
	assert.Contains(t, sys, "(:Actor)-[:ACTED_IN]->(:Movie)")
	assert.Contains(t, sys, `MATCH (m:Movie {name:"Top Gun"})<-[:ACTED_IN]-(a:Actor)`)
	assert.Contains(t, sys, "RETURN count(a) AS numberOfActors")

	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Question to convert to Cypher: List all actors in Top Gun")
	assert.NotContains(t, msgs[1].Content, "previous attempt")
}

func TestCompose_Deterministic(t *testing.T) {
	ctx := context.Background()
	prior := &core.PriorAttempt{Candidate: core.CandidateQuery{Text: "MATCH (f:Film) RETURN f"}, Reason: core.ReasonUnknownSchema, Fragment: "Film"}

	first, err := Compose(ctx, movies(), "q", prior)
	require.NoError(t, err)
	second, err := Compose(ctx, movies(), "q", prior)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompose_QuestionIsNotInterpreted(t *testing.T) {
	question := "What is {schema} and {{x}}?"
	msgs, err := Compose(context.Background(), movies(), question, nil)
	require.NoError(t, err)
	assert.Contains(t, msgs[1].Content, question)
}

func TestCompose_EscapesSchemaIdentifiers(t *testing.T) {
	snap := graphschema.FromInfo(&core.SchemaInfo{
		Nodes: []core.LabelInfo{{Label: "{question}", Properties: []core.PropertyInfo{{Name: "a}b", Types: []string{"STRING"}}}}},
	}, nil)

	msgs, err := Compose(context.Background(), snap, "real question", nil)
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "{question} {a}b: STRING}")
	assert.NotContains(t, msgs[0].Content, "real question")
}

func TestCompose_Correction(t *testing.T) {
	prior := &core.PriorAttempt{
		Candidate: core.CandidateQuery{Text: "MATCH (f:Film {name: 'Top Gun'}) RETURN f", Attempt: 1},
		Reason:    core.ReasonUnknownSchema,
		Fragment:  "Film",
		Detail:    "label Film does not exist in the schema",
	}
	msgs, err := Compose(context.Background(), movies(), "List all actors in Top Gun", prior)
	require.NoError(t, err)

	user := msgs[1].Content
	assert.Contains(t, user, "MATCH (f:Film {name: 'Top Gun'}) RETURN f")
	assert.Contains(t, user, "unknown-schema-element: Film")
	assert.Contains(t, user, "label Film does not exist in the schema")
	assert.Contains(t, user, "Do not repeat this error")
}

func TestCompose_CustomExamples(t *testing.T) {
	c := &Composer{Examples: []Example{{Question: "Count movies", Cypher: "MATCH (m:Movie) RETURN count(m)"}}}
	msgs, err := c.Compose(context.Background(), movies(), "q", nil)
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, "1. Question: Count movies")
	assert.NotContains(t, msgs[0].Content, "Top Gun")

	none := &Composer{Examples: []Example{}}
	msgs, err = none.Compose(context.Background(), movies(), "q", nil)
	require.NoError(t, err)
	assert.NotContains(t, msgs[0].Content, "Examples:")
}

func TestCompose_NoSchema(t *testing.T) {
	_, err := Compose(context.Background(), nil, "q", nil)
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestAnswer(t *testing.T) {
	msgs, err := Answer(context.Background(), "Who acted in Top Gun?", `[{"actor":"Tom Cruise"}]`)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, `[{"actor":"Tom Cruise"}]`)
	assert.Contains(t, msgs[0].Content, "Question: Who acted in Top Gun?")
}
