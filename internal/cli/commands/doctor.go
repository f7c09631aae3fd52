package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/graphask/internal/cli/config"
	"github.com/leapstack-labs/graphask/internal/cli/output"
	"github.com/leapstack-labs/graphask/internal/engine"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, markdown, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, store and schema health",
		Long: `Check that graphask is ready to answer questions.

The doctor command reports:
- Configuration (config file, store, oracle)
- Store connectivity
- Schema introspection (labels, relationship types, patterns)
- Query policy (dangerous operations, read-only mode, procedures)
- A health score (0-100) with recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  graphask doctor

  # Output as JSON
  graphask doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         Summary       `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// Summary describes the configured deployment.
type Summary struct {
	ConfigFile    string `json:"config_file,omitempty"`
	Store         string `json:"store"`
	URI           string `json:"uri"`
	Model         string `json:"model"`
	SchemaVersion uint64 `json:"schema_version"`
	Labels        int    `json:"labels"`
	RelTypes      int    `json:"relationship_types"`
	Patterns      int    `json:"patterns"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"` // "pass", "warn", "error"
	Details []string `json:"details,omitempty"`
}

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

const doctorPingTimeout = 5 * time.Second

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := buildDoctorOutput(cmd.Context(), cmdCtx.Engine)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	return nil
}

func buildDoctorOutput(ctx context.Context, eng *engine.Engine) *DoctorOutput {
	cfg := eng.Config()
	summary := Summary{
		ConfigFile: config.GetConfigFileUsed(),
		Store:      cfg.Store.Type,
		URI:        cfg.Store.URI,
		Model:      cfg.Oracle.Model,
	}

	checks := []HealthCheck{configCheck(summary.ConfigFile)}
	checks = append(checks, storeCheck(ctx, eng))
	schema := schemaCheck(ctx, eng, &summary)
	checks = append(checks, schema)
	checks = append(checks, oracleCheck(eng))
	checks = append(checks, policyChecks(eng)...)

	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].Group < checks[j].Group
	})

	issues := 0
	for _, c := range checks {
		if c.Status != statusPass {
			issues++
		}
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func configCheck(file string) HealthCheck {
	c := HealthCheck{ID: "config-file", Name: "Configuration file", Group: "configuration", Status: statusPass}
	if file == "" {
		c.Status = statusWarn
		c.Details = []string{"no graphask.yaml found, using defaults and environment"}
		return c
	}
	c.Details = []string{file}
	return c
}

func storeCheck(ctx context.Context, eng *engine.Engine) HealthCheck {
	c := HealthCheck{ID: "store-ping", Name: "Store reachable", Group: "store", Status: statusPass}
	ctx, cancel := context.WithTimeout(ctx, doctorPingTimeout)
	defer cancel()
	if err := eng.Ping(ctx); err != nil {
		c.Status = statusError
		c.Details = []string{err.Error()}
	}
	return c
}

func schemaCheck(ctx context.Context, eng *engine.Engine, summary *Summary) HealthCheck {
	c := HealthCheck{ID: "schema-load", Name: "Schema loaded", Group: "store", Status: statusPass}
	snap, err := eng.Cache().Load(ctx)
	if err != nil {
		c.Status = statusError
		c.Details = []string{err.Error()}
		return c
	}
	summary.SchemaVersion = snap.Version
	summary.Labels = len(snap.Labels)
	summary.RelTypes = len(snap.RelTypes)
	summary.Patterns = len(snap.Patterns)

	if len(snap.Labels) == 0 {
		c.Status = statusWarn
		c.Details = []string{"the graph has no labels; every query will be rejected"}
	}
	if src := eng.Config().Schema.File; src != "" {
		c.Details = append(c.Details, "read from "+src)
	}
	return c
}

func oracleCheck(eng *engine.Engine) HealthCheck {
	oc := eng.Config().Oracle
	c := HealthCheck{ID: "oracle-credentials", Name: "Oracle credentials", Group: "oracle", Status: statusPass}
	if oc.APIKey == "" && oc.BaseURL == "" {
		c.Status = statusError
		c.Details = []string{"oracle.api_key is empty and no oracle.base_url is set"}
	}
	if oc.BreakerFailures == 0 {
		c.Details = append(c.Details, "circuit breaker disabled")
	}
	return c
}

func policyChecks(eng *engine.Engine) []HealthCheck {
	tc := eng.Config().Translate
	danger := HealthCheck{ID: "policy-dangerous", Name: "Dangerous operations blocked", Group: "policy", Status: statusPass}
	if tc.AllowDangerous {
		danger.Status = statusWarn
		danger.Details = []string{"translate.allow_dangerous is on; unscoped deletes and schema changes can run"}
	}
	if tc.ReadOnly {
		danger.Details = append(danger.Details, "read-only mode")
	}

	procs := HealthCheck{ID: "policy-procedures", Name: "Procedure allow-list", Group: "policy", Status: statusPass}
	for _, p := range tc.Procedures {
		if p == "*" {
			procs.Status = statusWarn
			procs.Details = []string{"every procedure is allowed"}
			break
		}
	}
	if procs.Status == statusPass {
		procs.Details = []string{strings.Join(tc.Procedures, ", ")}
	}
	return []HealthCheck{danger, procs}
}

// calculateHealthScore computes a health score from 0-100. Errors cost
// twice as much as warnings.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= 30
		case statusWarn:
			score -= 10
		}
	}
	return max(score, 0)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.Status == statusPass {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "config-file":
		return "Create graphask.yaml to pin the store and oracle settings"
	case "store-ping":
		return "Check store.uri and the NEO4J_PASSWORD credentials, and that the store is running"
	case "schema-load":
		return "Load data into the graph or point schema.file at a schema description"
	case "oracle-credentials":
		return "Set OPENAI_API_KEY or oracle.base_url for a local model server"
	case "policy-dangerous":
		return "Turn off translate.allow_dangerous unless writes are intended"
	case "policy-procedures":
		return "Replace the * procedure wildcard with the procedures queries need"
	default:
		return ""
	}
}

func statusIcon(s *output.Styles, status string) string {
	switch status {
	case statusWarn:
		return s.Warning.Render("!")
	case statusError:
		return s.Error.Render("✗")
	}
	return s.Success.Render("✓")
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header.Render("graphask Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Bold.Render("Summary"))
	r.Printf("   Store: %s (%s) | Model: %s\n", out.Summary.Store, out.Summary.URI, out.Summary.Model)
	r.Printf("   Schema v%d: %d labels | %d relationship types | %d patterns\n",
		out.Summary.SchemaVersion, out.Summary.Labels, out.Summary.RelTypes, out.Summary.Patterns)
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}
		r.Printf("   %s %s\n", statusIcon(styles, check.Status), check.Name)
		for _, detail := range check.Details {
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Bold.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println(output.FormatHeader(1, "graphask Health Report"))
	r.Println("")

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println("")
	if out.Summary.ConfigFile != "" {
		r.Println(output.FormatKeyValue("Config", out.Summary.ConfigFile))
	}
	r.Println(output.FormatKeyValue("Store", fmt.Sprintf("%s (%s)", out.Summary.Store, out.Summary.URI)))
	r.Println(output.FormatKeyValue("Model", out.Summary.Model))
	r.Println(output.FormatKeyValue("Schema Version", fmt.Sprint(out.Summary.SchemaVersion)))
	r.Println(output.FormatKeyValue("Labels", fmt.Sprint(out.Summary.Labels)))
	r.Println(output.FormatKeyValue("Relationship Types", fmt.Sprint(out.Summary.RelTypes)))
	r.Println("")

	r.Println(output.FormatHeader(2, "Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(output.FormatHeader(3, titleCaser.String(currentGroup)))
			r.Println("")
		}
		r.Printf("- **[%s]** %s\n", strings.ToUpper(check.Status), check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println(output.FormatHeader(2, "Health Score"))
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(output.FormatHeader(2, "Recommendations"))
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
