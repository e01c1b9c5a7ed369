// Package cmd defines the CLI commands for the spider executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/app"
	"github.com/JakeFAU/asyncspider/internal/config"
	"github.com/JakeFAU/asyncspider/internal/logging"
)

type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to avoid a live Redis.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "spider",
		Short: "A horizontally scalable web crawler with a Redis set frontier.",
		Long: `spider crawls the web from one or more start URLs. Every process taking
part in a crawl, on any host, shares two Redis sets: pending URLs waiting to be
claimed and done URLs already claimed. Point every node at the same Redis to
scale out.`,
		SilenceUsage: true,

		// Builds the app after flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
				_ = a.Logger().Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("redis-url", "redis://localhost", "Redis URL shared by every node of the crawl")
	flags.Int("tasks", 10, "concurrent crawl tasks per process")
	flags.Bool("atomic-enqueue", false, "check and insert new URLs in one Redis script")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("development", true, "human-friendly development logging")

	cmd.AddCommand(newRunCmd(), newWorkerCmd(), newSeedCmd(), newStatsCmd())
	return cmd
}

// resolveApp fetches the App stored by the root pre-run hook.
func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}

// Execute runs the root command with SIGINT and SIGTERM bound to its context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
