package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/graphask/internal/cli/output"
	"github.com/leapstack-labs/graphask/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recent questions and how they ended",
		Long: `List recorded translations, newest first, or show one run in full.

History is kept only when history.path is set in the configuration.`,
		Example: `  graphask history
  graphask history --limit 5 -o json
  graphask history 3f2a9c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Number of runs to list")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	path := cmdCtx.Cfg.History.Path
	if path == "" {
		r.Warning("history is disabled; set history.path to record runs")
		return nil
	}

	store := state.NewSQLiteStore(cmdCtx.Logger)
	if err := store.Open(path); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 1 {
		run, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderRun(r, run)
	}

	if opts.Limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", opts.Limit)
	}
	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*state.Run{}
	}

	mode := r.EffectiveMode()
	if mode == output.ModeJSON {
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Muted("No runs recorded yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Started", "Status", "Attempts", "Rows", "Question"})
	for _, run := range runs {
		status := string(run.Status)
		if run.Kind != "" {
			status += " (" + string(run.Kind) + ")"
		}
		t.AppendRow(table.Row{
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			status,
			run.Attempts,
			run.RowCount,
			truncate(run.Question, 60),
		})
	}
	if mode == output.ModeMarkdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	return nil
}

func renderRun(r *output.Renderer, run *state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}

	r.Header(1, "Run "+run.ID)
	r.Println()
	r.Println(output.FormatKeyValue("Question", run.Question))
	r.Println(output.FormatKeyValue("Status", string(run.Status)))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.RFC3339)))
	r.Println(output.FormatKeyValue("Elapsed", run.Elapsed.Round(time.Millisecond).String()))
	r.Println(output.FormatKeyValue("Attempts", fmt.Sprint(run.Attempts)))
	if run.Status == state.RunStatusSuccess {
		r.Println(output.FormatKeyValue("Rows", fmt.Sprint(run.RowCount)))
	} else {
		r.Println(output.FormatKeyValue("Kind", string(run.Kind)))
		if run.Stage != "" {
			r.Println(output.FormatKeyValue("Stage", string(run.Stage)))
		}
		if run.Reason != "" {
			r.Println(output.FormatKeyValue("Reason", string(run.Reason)))
		}
		r.Println(output.FormatKeyValue("Error", run.Error))
	}
	if run.Query != "" {
		r.Println()
		r.Println("```cypher")
		r.Println(run.Query)
		r.Println("```")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
