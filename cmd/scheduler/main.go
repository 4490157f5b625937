// The scheduler binary runs the compliance scheduling engine: one-shot
// operation runs, a serve mode that sweeps every operation on an interval,
// and schema migration.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"custos/internal/batch"
	"custos/internal/jobs"
	"custos/internal/platform/config"
	"custos/internal/platform/httpserver"
	"custos/internal/platform/logger"
	"custos/internal/platform/metrics"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "scheduler",
		Short:         "Compliance scheduling engine",
		Long:          "Runs cadence-driven scheduling, reminders, escalations, risk scoring, and report generation across tenants.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (env vars override)")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(operationsCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))
	return root
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel)
	return newApp(ctx, cfg, log)
}

func runCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "run [operation...]",
		Short: "Run one or more operations once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("name at least one operation or pass --all")
			}

			ctx := cmd.Context()
			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ops, err := selectOperations(a.runner, args, all)
			if err != nil {
				return err
			}

			var failed bool
			for _, op := range ops {
				report, err := a.runOperation(ctx, op)
				if err != nil {
					return err
				}
				printReport(cmd, report)
				if report.Failed > 0 {
					failed = true
				}
			}
			if failed {
				return errors.New("one or more tenant passes failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every operation in order")
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine continuously with the ops HTTP surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			metrics.SetBuildInfo(version)

			checks := map[string]httpserver.HealthCheck{}
			if a.db != nil {
				checks["postgres"] = a.db.PingContext
			}
			if a.redis != nil {
				checks["redis"] = a.redis.Health
			}
			srv := httpserver.New(a.cfg.HTTPAddr, a.log, checks)

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("ops server listening", "addr", a.cfg.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			go a.sweepLoop(ctx)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// sweepLoop runs every operation in order, then sleeps for the configured
// interval. Operations are idempotent and lock-guarded, so overlapping
// instances are safe.
func (a *app) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.RunInterval)
	defer ticker.Stop()

	for {
		for _, op := range a.runner.Operations() {
			if ctx.Err() != nil {
				return
			}
			report, err := a.runOperation(ctx, op)
			if err != nil {
				a.log.ErrorContext(ctx, "operation run failed", "operation", op.Name, "error", err)
				continue
			}
			if report.Failed > 0 {
				a.log.WarnContext(ctx, "operation finished with tenant failures",
					"operation", op.Name, "failed", report.Failed)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func operationsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the available operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, op := range a.runner.Operations() {
				cmd.Printf("%-24s %s\n", op.Name, op.Description)
			}
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.migrate(ctx); err != nil {
				return err
			}
			a.log.Info("schema applied")
			return nil
		},
	}
}

func selectOperations(runner *jobs.Runner, names []string, all bool) ([]jobs.Operation, error) {
	if all {
		return runner.Operations(), nil
	}
	ops := make([]jobs.Operation, 0, len(names))
	for _, name := range names {
		op, ok := runner.Operation(name)
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func printReport(cmd *cobra.Command, report *batch.Report) {
	if report.Skipped {
		cmd.Printf("%s: skipped, lock held elsewhere\n", report.Operation)
		return
	}
	cmd.Printf("%s: %d tenants, %d failed, %d created, %d notified (%s)\n",
		report.Operation, len(report.Tenants), report.Failed,
		report.Totals.Created, report.Totals.Notified,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
