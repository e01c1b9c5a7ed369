// Package pool runs a fixed number of crawl workers inside one process.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/asyncspider/internal/crawler"
	"github.com/JakeFAU/asyncspider/internal/metrics"
	"github.com/JakeFAU/asyncspider/internal/worker"
)

// Frontier is the frontier view a pool needs: the worker operations plus a
// reachability check used at construction.
type Frontier interface {
	crawler.Frontier
	Ping(ctx context.Context) error
}

// Config controls pool size and per-worker behavior.
type Config struct {
	Tasks  int
	Worker worker.Config
}

// Pool owns the workers of one process. The frontier, fetcher and extractor
// are shared by every worker.
type Pool struct {
	cfg       Config
	frontier  Frontier
	fetcher   crawler.Fetcher
	extractor crawler.LinkExtractor
	logger    *zap.Logger

	active   atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

// New validates its inputs and pings the frontier so an unreachable store
// fails before any worker starts.
func New(
	ctx context.Context,
	cfg Config,
	frontier Frontier,
	fetcher crawler.Fetcher,
	extractor crawler.LinkExtractor,
	logger *zap.Logger,
) (*Pool, error) {
	if cfg.Tasks <= 0 {
		return nil, fmt.Errorf("pool: tasks must be positive, got %d", cfg.Tasks)
	}
	if frontier == nil || fetcher == nil || extractor == nil {
		return nil, errors.New("pool: frontier, fetcher and extractor are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := frontier.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pool: frontier unreachable: %w", err)
	}
	metrics.Init()
	return &Pool{
		cfg:       cfg,
		frontier:  frontier,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
		stop:      make(chan struct{}),
	}, nil
}

// Run starts every worker and blocks until ctx is canceled, Shutdown is
// called, or a worker fails. The first worker error is returned.
func (p *Pool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.logger.Info("task pool starting", zap.Int("tasks", p.cfg.Tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Tasks {
		w := worker.New(i, p.frontier, p.fetcher, p.extractor, p.cfg.Worker,
			p.logger.With(zap.Int("worker", i)))
		g.Go(func() error {
			p.active.Add(1)
			metrics.IncActiveWorkers()
			defer func() {
				p.active.Add(-1)
				metrics.DecActiveWorkers()
			}()
			return w.Run(gctx)
		})
	}

	err := g.Wait()
	if err != nil {
		p.logger.Error("task pool aborted", zap.Error(err))
		return fmt.Errorf("task pool: %w", err)
	}
	p.logger.Info("task pool stopped")
	return nil
}

// Shutdown cancels every worker without waiting for in-flight fetches.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Active reports how many workers are currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}
