package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/graphask/internal/cli/config"
	"github.com/leapstack-labs/graphask/internal/cli/output"
	"github.com/leapstack-labs/graphask/internal/engine"
	"github.com/leapstack-labs/graphask/internal/metrics"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// engineHook lets tests swap the store and model an engine is built with.
var engineHook func(*engine.Config)

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, m *metrics.Collector) (*CommandContext, func(), error) {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	cleanup, err := cmdCtx.attachEngine(cmd, cmdCtx.Cfg, m)
	if err != nil {
		return nil, nil, err
	}
	return cmdCtx, cleanup, nil
}

// attachEngine builds an engine from cfg and stores it on the context.
// cfg may differ from c.Cfg when a command overrides a section.
func (c *CommandContext) attachEngine(cmd *cobra.Command, cfg *config.Config, m *metrics.Collector) (func(), error) {
	ecfg := engine.Config{App: cfg, Metrics: m, Logger: c.Logger}
	if engineHook != nil {
		engineHook(&ecfg)
	}
	eng, err := engine.New(cmd.Context(), ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	c.Engine = eng

	return func() {
		if err := eng.Close(); err != nil {
			c.Logger.Warn("failed to close engine", "error", err)
		}
	}, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need the store or the oracle.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading
// defaults when a command runs on its own.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}
