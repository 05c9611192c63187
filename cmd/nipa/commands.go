package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/nipa/internal/config"
	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/JonMunkholm/nipa/internal/logging"
	"github.com/JonMunkholm/nipa/internal/pipeline"
	"github.com/JonMunkholm/nipa/internal/web"
	"github.com/spf13/cobra"
)

// rootCommand builds the nipa command tree. Configuration is loaded once,
// before any subcommand runs.
func rootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "nipa",
		Short:         "Build wide datasets from BEA NIPA tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(loaded.Logging.Level, loaded.Logging.Format)
			slog.Debug("configuration loaded", "config", loaded.String())
			cfg = loaded
			return nil
		},
	}

	cfgFn := func() *config.Config { return cfg }
	rootCmd.AddCommand(
		ingestCommand(cfgFn),
		transformCommand(cfgFn),
		runCommand(cfgFn),
		serveCommand(cfgFn),
	)
	return rootCmd
}

func ingestCommand(cfg func() *config.Config) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Download the NIPA catalog and raw table data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd.Context(), cfg(), pipeline.Phases{Ingest: true}, refresh)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore ingest state and fetch every table again")
	return cmd
}

func transformCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Publish wide datasets from the raw store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhases(cmd.Context(), cfg(), pipeline.Phases{Transform: true}, false)
		},
	}
}

func runCommand(cfg func() *config.Config) *cobra.Command {
	var ingestOnly, transformOnly, refresh bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest, then transform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			phases := pipeline.AllPhases
			switch {
			case ingestOnly:
				phases = pipeline.Phases{Ingest: true}
			case transformOnly:
				phases = pipeline.Phases{Transform: true}
			}
			return runPhases(cmd.Context(), cfg(), phases, refresh)
		},
	}
	cmd.Flags().BoolVar(&ingestOnly, "ingest-only", false, "only run the ingest phase")
	cmd.Flags().BoolVar(&transformOnly, "transform-only", false, "only run the transform phase")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore ingest state and fetch every table again")
	cmd.MarkFlagsMutuallyExclusive("ingest-only", "transform-only")
	return cmd
}

func serveCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve run status and datasets over HTTP, with optional scheduled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg())
		},
	}
}

// runPhases executes one synchronous run and logs its summary.
func runPhases(ctx context.Context, cfg *config.Config, phases pipeline.Phases, refresh bool) error {
	if phases.Ingest {
		if err := cfg.RequireBEAKey(); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, refresh)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.RunOnce(ctx, phases)
	if result != nil {
		logSummary(result)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		return errors.New(core.FormatUserError(err))
	}
	return nil
}

func logSummary(result *pipeline.Result) {
	if r := result.Ingest; r != nil {
		slog.Info("ingest summary",
			"tables", r.Tables,
			"fetched", r.Fetched,
			"failed", r.Failed,
			"failed_tables", r.FailedList)
	}
	if r := result.Transform; r != nil {
		slog.Info("transform summary",
			"run_id", r.RunID,
			"tables", r.Tables,
			"created", r.Created,
			"skipped", r.Skipped,
			"empty", r.Empty,
			"stale", r.Stale,
			"failed", r.Failed)
		for _, f := range r.Failures {
			slog.Warn("table failed",
				"table", f.Table,
				"frequency", f.Frequency,
				"stage", f.Stage,
				"code", f.Code,
				"error", f.Error)
		}
	}
}

// serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully: scheduling stops, the server drains, and an active run is
// given until the shutdown timeout to finish.
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	if cfg.Schedule.Interval > 0 {
		phases := pipeline.AllPhases
		if a.ingester == nil {
			slog.Warn("BEA_API_KEY not set, scheduled runs will only transform")
			phases = pipeline.Phases{Transform: true}
		}
		scheduler := pipeline.NewScheduler(a.pipeline, cfg.Schedule.Interval, phases)
		if err := scheduler.Start(runCtx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	server := web.NewServer(runCtx, cfg, a.pipeline, a.catalog, a.metrics.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	if a.pipeline.Running() {
		slog.Info("waiting for active run to finish", "timeout", cfg.Server.ShutdownTimeout.String())
		done := make(chan struct{})
		go func() {
			a.pipeline.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			slog.Warn("run did not finish in time, cancelling")
			cancelRuns()
			waitBriefly(done, 5*time.Second)
		}
	}
	return nil
}

func waitBriefly(done <-chan struct{}, d time.Duration) {
	select {
	case <-done:
	case <-time.After(d):
	}
}
