package cmd

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/asyncspider/internal/api"
	"github.com/JakeFAU/asyncspider/internal/config"
	"github.com/JakeFAU/asyncspider/internal/orchestrator"
)

// newSpawner is replaced in tests with a fake process spawner.
var newSpawner = func(args func(index int) []string) (orchestrator.Spawner, error) {
	return orchestrator.NewSelfSpawner(args)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Seed the frontier and start a pool of worker processes",
		Long: `Starts one worker process per CPU (or --processes), each running --tasks
crawl tasks against the shared Redis frontier. The start URL is added to the
pending set when it is absolute. Press enter or send SIGINT to stop; every
worker process is killed immediately.`,
		RunE: runRunCommand,
	}
	flags := cmd.Flags()
	flags.Int("processes", runtime.NumCPU(), "number of worker processes")
	flags.String("start-url", "", "absolute URL to seed before crawling")
	flags.String("profile", config.ProfileFull, "full or minimal (one task per process, no seed, no observer)")
	flags.Bool("stdin-shutdown", true, "stop when a line is read from stdin")
	flags.Duration("observe-interval", 10*time.Second, "throughput sampling interval, 0 disables")
	flags.String("metrics-addr", "", "listen address for the operator HTTP surface")
	return cmd
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Config()
	runID := uuid.NewString()
	logger := a.Logger().With(zap.String("run_id", runID))
	cfgFile, _ := cmd.Flags().GetString("config")

	tasks := cfg.Worker.Tasks
	if cfg.Minimal() {
		tasks = 1
	}
	spawner, err := newSpawner(func(index int) []string {
		return workerArgs(cfgFile, cfg, runID, tasks, index)
	})
	if err != nil {
		return err
	}

	orchCfg := orchestrator.Config{
		Processes:        cfg.Orchestrator.Processes,
		StartURL:         cfg.Orchestrator.StartURL,
		Minimal:          cfg.Minimal(),
		ObserverInterval: cfg.Observer.Interval,
	}
	if cfg.Orchestrator.StdinShutdown {
		orchCfg.Stdin = cmd.InOrStdin()
	}
	orch, err := orchestrator.New(orchCfg, spawner, a.Frontier(), logger.Named("orchestrator"))
	if err != nil {
		return err
	}

	logger.Info("crawl starting",
		zap.Int("processes", orchCfg.Processes),
		zap.Int("tasks", tasks),
		zap.String("profile", cfg.Orchestrator.Profile),
		zap.String("start_url", cfg.Orchestrator.StartURL),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return orch.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		server := api.NewServer(a.Frontier(), api.Config{}, logger.Named("api"))
		g.Go(func() error {
			return api.Serve(gctx, cfg.Metrics.Addr, server.Handler(), logger.Named("api"))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("crawl stopped")
	return nil
}

// workerArgs builds the command line for worker process index so that it
// sees the same effective configuration as the parent.
func workerArgs(cfgFile string, cfg config.Config, runID string, tasks, index int) []string {
	args := []string{
		"worker",
		"--redis-url", cfg.Redis.URL,
		"--tasks", strconv.Itoa(tasks),
		"--atomic-enqueue=" + strconv.FormatBool(cfg.Frontier.AtomicEnqueue),
		"--development=" + strconv.FormatBool(cfg.Logging.Development),
		"--run-id", runID,
		"--index", strconv.Itoa(index),
	}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if cfg.Logging.Level != "" {
		args = append(args, "--log-level", cfg.Logging.Level)
	}
	// Always set: the child reads the same config file and environment as the
	// parent and would otherwise bind the parent's metrics.addr.
	childAddr := ""
	if cfg.Metrics.WorkerPortBase > 0 {
		childAddr = fmt.Sprintf(":%d", cfg.Metrics.WorkerPortBase+index)
	}
	return append(args, "--metrics-addr="+childAddr)
}
