// Package prompt renders translation requests into chat messages for the
// oracle.
//
// Templates use eino's FString format. Schema text and worked examples are
// part of the template and are escaped against its delimiters; the question
// and any prior candidate are bound as variables and never interpreted.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

// Example is a worked question to query mapping shown to the oracle.
type Example struct {
	Question string
	Cypher   string
}

// DefaultExamples are shown when a Composer has none of its own.
var DefaultExamples = []Example{
	{
		Question: "How many actors played in Top Gun?",
		Cypher:   "MATCH (m:Movie {name:\"Top Gun\"})<-[:ACTED_IN]-(a:Actor)\nRETURN count(a) AS numberOfActors",
	},
	{
		Question: "List all actors in Top Gun",
		Cypher:   "MATCH (m:Movie {name:\"Top Gun\"})<-[:ACTED_IN]-(a:Actor)\nRETURN a.name AS ActorNames",
	},
}

const systemText = `Task: Generate a precise Cypher statement for querying a graph database.

Constraints:
- Use ONLY the node labels, relationship types and properties defined in the schema
- Avoid using any relationships or properties not explicitly provided
- Generate exactly one valid and efficient Cypher statement
- Do not modify the graph unless the question explicitly asks for it
- Return meaningful results based on the question
- Respond with the Cypher statement only, without explanations

Schema:
`

const questionText = "Question to convert to Cypher: {question}"

const correctionText = `

A previous attempt produced this query:
{prior_query}

It was rejected ({prior_reason}): {prior_detail}
Do not repeat this error. Write a corrected query.`

const answerText = `You are an assistant that turns query results into short, human readable answers.
The information below was retrieved from the graph database and is authoritative: use it
as the answer and do not add to it or correct it. If the information is empty, say that you
do not know the answer.

Information:
{context}

Question: {question}
Helpful answer:`

// ErrNoSchema is returned when composing without a schema snapshot.
var ErrNoSchema = errors.New("prompt: no schema snapshot")

var delimiters = strings.NewReplacer("{", "{{", "}", "}}")

// escape makes s safe to embed in an FString template.
func escape(s string) string {
	return delimiters.Replace(s)
}

// Composer renders prompts. The zero value uses DefaultExamples.
type Composer struct {
	Examples []Example
}

// Compose renders the messages for one generation attempt. It is
// deterministic: the same snapshot, question and prior always produce the
// same messages.
func (c *Composer) Compose(ctx context.Context, snap *graphschema.Snapshot, question string, prior *core.PriorAttempt) ([]*schema.Message, error) {
	if snap == nil {
		return nil, ErrNoSchema
	}

	var sys strings.Builder
	sys.WriteString(systemText)
	sys.WriteString(escape(graphschema.Format(snap)))
	if examples := c.examples(); len(examples) > 0 {
		sys.WriteString("\n\nExamples:")
		for i, ex := range examples {
			fmt.Fprintf(&sys, "\n%d. Question: %s\n   Cypher: %s", i+1, escape(ex.Question), escape(indent(ex.Cypher, "           ")))
		}
	}

	user := questionText
	vars := map[string]any{"question": question}
	if prior != nil {
		user += correctionText
		vars["prior_query"] = prior.Candidate.Text
		vars["prior_reason"] = priorReason(prior)
		vars["prior_detail"] = prior.Detail
	}
	user += "\n\nCypher Query:"

	tpl := einoprompt.FromMessages(schema.FString,
		schema.SystemMessage(sys.String()),
		schema.UserMessage(user),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return msgs, nil
}

func (c *Composer) examples() []Example {
	if c == nil || c.Examples == nil {
		return DefaultExamples
	}
	return c.Examples
}

// Compose renders messages with the default examples.
func Compose(ctx context.Context, snap *graphschema.Snapshot, question string, prior *core.PriorAttempt) ([]*schema.Message, error) {
	return (&Composer{}).Compose(ctx, snap, question, prior)
}

// Answer renders the messages that ask the oracle to phrase an answer from
// result rows, passed already serialized.
func Answer(ctx context.Context, question, rows string) ([]*schema.Message, error) {
	tpl := einoprompt.FromMessages(schema.FString, schema.UserMessage(answerText))
	msgs, err := tpl.Format(ctx, map[string]any{"question": question, "context": rows})
	if err != nil {
		return nil, fmt.Errorf("render answer prompt: %w", err)
	}
	return msgs, nil
}

func priorReason(p *core.PriorAttempt) string {
	if p.Fragment == "" {
		return string(p.Reason)
	}
	return fmt.Sprintf("%s: %s", p.Reason, p.Fragment)
}

// indent prefixes every line after the first.
func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
