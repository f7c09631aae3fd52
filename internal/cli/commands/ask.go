package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/graphask/internal/cli/output"
	"github.com/leapstack-labs/graphask/pkg/translate"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	Format    string
	Input     string
	ShowQuery bool
}

// Result formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

var resultFormats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question of the graph in plain language",
		Long: `Translate a natural-language question into Cypher, validate it against
the live graph schema, run it and print the rows.

Rejected candidates are fed back to the model and retried up to
translate.max_attempts times.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Ask a single question
  graphask ask "List all actors in Top Gun"

  # Output as JSON
  graphask ask "How many movies were released in 1986?" --format json

  # Read the question from stdin
  echo "Who directed Top Gun?" | graphask ask

  # Interactive mode
  graphask ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatTable, "Result format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the question from a file")
	cmd.Flags().BoolVar(&opts.ShowQuery, "show-query", true, "Print the generated query")
	cmd.Flags().Bool("answer", false, "Also phrase an answer from the rows")
	cmd.Flags().Int("max-attempts", 0, "Generation attempts before giving up")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return resultFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts *AskOptions) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}

	var question string
	switch {
	case len(args) > 0:
		question = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		question = string(content)
	case !output.IsTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		question = string(content)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if question == "" && output.IsTerminal(cmd.InOrStdin()) {
		return runAskREPL(cmd, cmdCtx, opts)
	}

	out, err := cmdCtx.Engine.Translate(cmd.Context(), question)
	if err != nil {
		return err
	}
	renderOutcome(cmdCtx.Renderer, out, opts)
	return nil
}

func checkFormat(format string) error {
	for _, f := range resultFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (expected one of %s)", format, strings.Join(resultFormats, ", "))
}

// renderOutcome prints a translation: rows on stdout, status lines on
// stderr so piped output stays clean.
func renderOutcome(r *output.Renderer, out *translate.Outcome, opts *AskOptions) {
	status := output.NewRenderer(r.ErrWriter(), r.ErrWriter(), r.Mode())
	for i, rej := range out.Rejected {
		detail := string(rej.Reason)
		if rej.Fragment != "" {
			detail += ": " + rej.Fragment
		}
		status.StatusLine(fmt.Sprintf("attempt %d rejected", i+1), "warning", detail)
	}
	if opts.ShowQuery && opts.Format != FormatJSON {
		status.Println(status.Styles().Query.Render(out.Query))
	}

	if opts.Format == FormatJSON {
		_ = r.JSON(out)
	} else if err := renderResult(r.Writer(), out.Result, opts.Format); err != nil {
		r.Error(err.Error())
	}

	if out.Answer != "" && opts.Format != FormatJSON {
		r.Println()
		r.Println(out.Answer)
	}
	status.Muted(fmt.Sprintf("%d row(s), %d attempt(s), %s", out.Result.RowCount, out.Attempts, out.Elapsed.Round(time.Millisecond)))
}
