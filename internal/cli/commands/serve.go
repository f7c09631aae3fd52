package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/graphask/internal/metrics"
	"github.com/leapstack-labs/graphask/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query service",
		Long: `Start an HTTP server exposing the translation pipeline.

Endpoints:
  POST /api/query            translate and run {"query": "<question>"}
  GET  /api/schema           the current schema snapshot
  POST /api/schema/refresh   re-read the schema
  GET  /health               store and schema status
  GET  /metrics              Prometheus metrics (server.metrics)`,
		Example: `  # Serve on the configured address
  graphask serve

  # Serve on a custom address, reloading schema.file on change
  graphask serve --addr :8080 --schema-file schema.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default :5000)")
	cmd.Flags().Bool("watch", false, "Reload the schema file when it changes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Server.Metrics {
		collector = metrics.New()
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, collector)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cmdCtx, collector)
}

// serve runs the server and the schema watcher until ctx is done.
func serve(ctx context.Context, cmdCtx *CommandContext, collector *metrics.Collector) error {
	eng := cmdCtx.Engine
	sc := cmdCtx.Cfg.Server
	r := cmdCtx.Renderer

	// Warm the cache so the first request doesn't pay for introspection.
	// The store may come up later; requests retry the load.
	if snap, err := eng.Cache().Load(ctx); err != nil {
		r.Warning("schema not loaded: " + err.Error())
	} else {
		cmdCtx.Logger.Info("schema loaded", "version", snap.Version, "labels", len(snap.Labels))
	}

	srv := server.New(server.Config{
		Addr:            sc.Addr,
		CORSOrigins:     sc.CORSOrigins,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
		Translator:      eng,
		Schema:          eng.Cache(),
		Store:           eng,
		Metrics:         collector,
		Logger:          cmdCtx.Logger,
	})

	r.Printf("Serving on %s\n", sc.Addr)
	r.Println("Press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return eng.WatchSchema(gctx) })
	return g.Wait()
}
