package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/graphask/internal/cli/output"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the graph schema used to ground queries",
		Long: `Print the labels, relationship types, properties and relationship
patterns the model is shown when translating a question.`,
		Example: `  graphask schema
  graphask schema -o json`,
		Args: cobra.NoArgs,
		RunE: runSchema,
	}
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := cmdCtx.Engine.Cache().Load(cmd.Context())
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(snap)
	case output.ModeMarkdown:
		r.Header(1, "Graph Schema")
		r.Println()
		r.Println("```")
		r.Println(graphschema.Format(snap))
		r.Println("```")
	default:
		r.Println(graphschema.Format(snap))
	}
	return nil
}
