// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/graphask/internal/cli/output"
)

// SchemaFileName is the schema file SetupWorkspace writes.
const SchemaFileName = "schema.yaml"

// MoviesSchemaYAML describes the movie graph in the schema file layout.
const MoviesSchemaYAML = `nodes:
  Movie:
    name: STRING
    released: INTEGER
  Actor:
    name: STRING
relationships:
  ACTED_IN:
    roles: LIST
patterns:
  - {from: Actor, type: ACTED_IN, to: Movie}
`

// SetupWorkspace creates a temporary working directory holding a schema
// file and, when config is non-empty, a graphask.yaml, then changes into
// it. OPENAI_API_KEY is cleared so the host environment does not leak in.
func SetupWorkspace(t *testing.T, config string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SchemaFileName), []byte(MoviesSchemaYAML), 0o600); err != nil {
		t.Fatalf("failed to create %s: %v", SchemaFileName, err)
	}
	if config != "" {
		if err := os.WriteFile(filepath.Join(dir, "graphask.yaml"), []byte(config), 0o600); err != nil {
			t.Fatalf("failed to create graphask.yaml: %v", err)
		}
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(dir)
	return dir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode.
// Output is captured in buffers for inspection and is never a terminal.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
