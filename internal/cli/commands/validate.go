package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/graphask/internal/cli/output"
	"github.com/leapstack-labs/graphask/pkg/core"
)

// errRejected is returned when validate rejects a query, so the process
// exits non-zero after the verdict has been printed.
var errRejected = errors.New("query rejected")

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Schema string
}

// ValidateOutput is the JSON output for the validate command.
type ValidateOutput struct {
	Query    string `json:"query"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Fragment string `json:"fragment,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [query]",
		Short: "Check a Cypher query against the schema and policy",
		Long: `Validate a Cypher query without running it.

The query is checked for syntax, for labels, relationship types and
properties that do not exist in the graph schema, and against the
operation policy (dangerous writes, read-only mode, allowed procedures).

The schema comes from the store, from schema.file, or from --schema.`,
		Example: `  # Validate against the live store
  graphask validate 'MATCH (m:Movie) RETURN m.title'

  # Validate against a schema file, no store needed
  graphask validate --schema schema.yaml 'MATCH (n) DETACH DELETE n'

  # Read the query from stdin
  cat query.cypher | graphask validate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Schema file to validate against")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	var query string
	if len(args) > 0 {
		query = args[0]
	} else if !output.IsTerminal(cmd.InOrStdin()) {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		query = string(content)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("no query provided")
	}

	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}

	cfg := cmdCtx.Cfg
	if opts.Schema != "" {
		if _, err := os.Stat(opts.Schema); err != nil {
			return fmt.Errorf("schema file: %w", err)
		}
		override := *cfg
		override.Schema.File = opts.Schema
		override.Schema.Watch = false
		cfg = &override
	}

	cleanup, err := cmdCtx.attachEngine(cmd, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	verdict, err := cmdCtx.Engine.Validate(cmd.Context(), query)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(validateOutput(query, verdict)); err != nil {
			return err
		}
	} else {
		renderVerdict(r, verdict)
	}

	if !verdict.Accepted {
		return errRejected
	}
	return nil
}

func validateOutput(query string, v core.Verdict) ValidateOutput {
	return ValidateOutput{
		Query:    query,
		Valid:    v.Accepted,
		Reason:   string(v.Reason),
		Fragment: v.Fragment,
		Detail:   v.Detail,
		Line:     v.Pos.Line,
		Column:   v.Pos.Column,
	}
}

func renderVerdict(r *output.Renderer, v core.Verdict) {
	if v.Accepted {
		r.Success("query is valid")
		return
	}

	detail := v.Detail
	if v.Fragment != "" {
		detail = fmt.Sprintf("%q %s", v.Fragment, detail)
	}
	if v.Pos.IsValid() {
		detail = fmt.Sprintf("%s (line %d, column %d)", detail, v.Pos.Line, v.Pos.Column)
	}
	r.StatusLine(string(v.Reason), "error", strings.TrimSpace(detail))
}
