package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

const replPrompt = "graphask> "

func runAskREPL(cmd *cobra.Command, cmdCtx *CommandContext, opts *AskOptions) error {
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	// Load the schema up front so completion knows the labels; a failure
	// here is reported but does not stop the REPL.
	snap, err := cmdCtx.Engine.Cache().Load(ctx)
	if err != nil {
		r.Warning(fmt.Sprintf("schema not loaded: %v", err))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    newSchemaCompleter(snap),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Println(r.Styles().Bold.Render("graphask") + " " + r.Styles().Muted.Render(fmt.Sprintf("(store: %s)", cmdCtx.Cfg.Store.URI)))
	r.Println("Type a question, .help for commands, .quit to exit")
	r.Println()

	repl := &replState{cmd: cmd, cmdCtx: cmdCtx, opts: opts, rl: rl}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := repl.dotCommand(line); quit {
				break
			}
			continue
		}

		out, err := cmdCtx.Engine.Translate(ctx, line)
		if err != nil {
			r.Error(err.Error())
		} else {
			renderOutcome(r, out, opts)
		}
		r.Println()
	}
	return nil
}

type replState struct {
	cmd    *cobra.Command
	cmdCtx *CommandContext
	opts   *AskOptions
	rl     *readline.Instance
}

// dotCommand runs a REPL command and reports whether the REPL should exit.
func (s *replState) dotCommand(line string) bool {
	r := s.cmdCtx.Renderer
	ctx := s.cmd.Context()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.Writer())

	case ".schema":
		snap, err := s.cmdCtx.Engine.Cache().Load(ctx)
		if err != nil {
			r.Error(err.Error())
			break
		}
		r.Println(graphschema.Format(snap))

	case ".labels":
		snap, err := s.cmdCtx.Engine.Cache().Load(ctx)
		if err != nil {
			r.Error(err.Error())
			break
		}
		r.Println(strings.Join(snap.Labels, "  "))
		r.Muted(strings.Join(snap.RelTypes, "  "))

	case ".refresh":
		snap, err := s.cmdCtx.Engine.Cache().Refresh(ctx)
		if err != nil {
			r.Error(err.Error())
			break
		}
		s.rl.Config.AutoComplete = newSchemaCompleter(snap)
		r.Success(fmt.Sprintf("schema refreshed (version %d, %d labels)", snap.Version, len(snap.Labels)))

	case ".cypher":
		if len(parts) < 2 {
			r.Printf("query display is %s\n", onOff(s.opts.ShowQuery))
			break
		}
		switch strings.ToLower(parts[1]) {
		case "on":
			s.opts.ShowQuery = true
		case "off":
			s.opts.ShowQuery = false
		default:
			r.Error("Usage: .cypher on|off")
		}

	case ".format":
		if len(parts) < 2 {
			r.Printf("format is %s\n", s.opts.Format)
			break
		}
		if err := checkFormat(parts[1]); err != nil {
			r.Error(err.Error())
			break
		}
		s.opts.Format = parts[1]

	case ".clear":
		r.Printf("\033[H\033[2J")

	default:
		r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help               Show this help message
  .schema             Show the graph schema
  .labels             List node labels and relationship types
  .refresh            Re-read the schema from the store
  .cypher on|off      Show or hide the generated query
  .format <format>    Set the result format (table, json, csv, md)
  .clear              Clear the screen
  .quit / .exit       Exit the REPL

Tips:
  - Type a question in plain language and press enter
  - Use arrow keys to navigate history
  - Tab completion works for commands and labels
`
	_, _ = fmt.Fprintln(w, help)
}

// newSchemaCompleter completes dot-commands and schema names.
func newSchemaCompleter(snap *graphschema.Snapshot) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	if snap != nil {
		for _, l := range snap.Labels {
			items = append(items, readline.PcItem(l))
		}
		for _, t := range snap.RelTypes {
			items = append(items, readline.PcItem(t))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".schema"),
		readline.PcItem(".labels"),
		readline.PcItem(".refresh"),
		readline.PcItem(".cypher", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".format",
			readline.PcItem(FormatTable),
			readline.PcItem(FormatJSON),
			readline.PcItem(FormatCSV),
			readline.PcItem(FormatMarkdown)),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

// historyFile lives in the user's cache directory; history is disabled
// when there is none.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "graphask")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
