package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/asyncspider/internal/api"
	goqueryextractor "github.com/JakeFAU/asyncspider/internal/extractor/goquery"
	collyfetcher "github.com/JakeFAU/asyncspider/internal/fetcher/colly"
	"github.com/JakeFAU/asyncspider/internal/pool"
	"github.com/JakeFAU/asyncspider/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run one crawl process (normally spawned by run)",
		Long: `Runs --tasks crawl tasks in this process until interrupted. Any Redis
failure aborts the process with a non-zero exit status. Extra workers can be
started by hand on other hosts pointed at the same Redis.`,
		RunE: runWorkerCommand,
	}
	flags := cmd.Flags()
	flags.String("run-id", "", "identifier of the run that spawned this process")
	flags.Int("index", 0, "process index within the run")
	flags.Int("max-procs", 1, "GOMAXPROCS for this process, 0 keeps the Go default")
	flags.Duration("timeout", time.Minute, "per-fetch timeout")
	flags.String("metrics-addr", "", "listen address for this process's metrics")
	return cmd
}

func runWorkerCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Config()
	runID, _ := cmd.Flags().GetString("run-id")
	index, _ := cmd.Flags().GetInt("index")
	logger := a.Logger().With(zap.String("run_id", runID), zap.Int("process", index))

	if cfg.Worker.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.Worker.MaxProcs)
	}

	fetcher := collyfetcher.New(a.FetcherConfig())
	defer fetcher.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	p, err := pool.New(ctx, pool.Config{
		Tasks: cfg.Worker.Tasks,
		Worker: worker.Config{
			IdleBackoff:     cfg.Worker.IdleBackoff,
			MarkDoneTimeout: cfg.Frontier.OpTimeout,
		},
	}, a.Frontier(), fetcher, goqueryextractor.New(), logger.Named("pool"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return p.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		server := api.NewServer(a.Frontier(), api.Config{}, logger.Named("api"))
		g.Go(func() error {
			return api.Serve(gctx, cfg.Metrics.Addr, server.Handler(), logger.Named("api"))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker process %d: %w", index, err)
	}
	return nil
}
