// Package orchestrator runs the process pool: it seeds the frontier, starts
// one OS process per parallel unit, samples throughput, and kills every
// process when the operator asks to stop.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/observer"
)

// Frontier is what the orchestrator needs from the shared frontier.
type Frontier interface {
	Seed(ctx context.Context, raw string) (bool, error)
	DoneCount(ctx context.Context) (int64, error)
}

// Config controls the process pool.
type Config struct {
	Processes int
	StartURL  string
	// Minimal skips seeding and the observer.
	Minimal bool
	// ObserverInterval disables the observer when zero.
	ObserverInterval time.Duration
	// Stdin, when set, ends the run on the first line read from it.
	Stdin io.Reader
}

// Orchestrator owns the worker processes for one run.
type Orchestrator struct {
	cfg      Config
	spawner  Spawner
	frontier Frontier
	logger   *zap.Logger

	terminating atomic.Bool
}

// New constructs an Orchestrator.
func New(cfg Config, spawner Spawner, frontier Frontier, logger *zap.Logger) (*Orchestrator, error) {
	if cfg.Processes <= 0 {
		return nil, fmt.Errorf("orchestrator: processes must be positive, got %d", cfg.Processes)
	}
	if spawner == nil || frontier == nil {
		return nil, errors.New("orchestrator: spawner and frontier are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, spawner: spawner, frontier: frontier, logger: logger}, nil
}

// Run seeds the frontier, starts every process and blocks until ctx is
// canceled or a line arrives on Stdin. All processes are killed before Run
// returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.cfg.Minimal && o.cfg.StartURL != "" {
		if _, err := o.frontier.Seed(ctx, o.cfg.StartURL); err != nil {
			return fmt.Errorf("seed start url: %w", err)
		}
	}

	var obs *observer.Observer
	if !o.cfg.Minimal && o.cfg.ObserverInterval > 0 {
		var err error
		obs, err = observer.New(o.frontier, observer.Config{Interval: o.cfg.ObserverInterval},
			o.logger.Named("observer"))
		if err != nil {
			return fmt.Errorf("observer: %w", err)
		}
	}

	procs := make([]Process, 0, o.cfg.Processes)
	for i := range o.cfg.Processes {
		p, err := o.spawner.Spawn(i)
		if err != nil {
			o.terminate(procs)
			for _, started := range procs {
				_ = started.Wait()
			}
			return err
		}
		o.logger.Info("worker process started", zap.Int("process", i), zap.Int("pid", p.Pid()))
		procs = append(procs, p)
	}

	var waiters sync.WaitGroup
	for i, p := range procs {
		waiters.Add(1)
		go func() {
			defer waiters.Done()
			o.watch(i, p)
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsDone chan struct{}
	if obs != nil {
		obsDone = make(chan struct{})
		go func() {
			defer close(obsDone)
			if err := obs.Run(runCtx); err != nil {
				o.logger.Warn("observer stopped", zap.Error(err))
			}
		}()
	}

	o.awaitShutdown(runCtx)
	cancel()
	o.terminate(procs)
	waiters.Wait()
	if obsDone != nil {
		<-obsDone
	}
	o.logger.Info("all worker processes terminated", zap.Int("processes", len(procs)))
	return nil
}

func (o *Orchestrator) awaitShutdown(ctx context.Context) {
	line := make(chan struct{})
	if o.cfg.Stdin != nil {
		go func() {
			if _, err := bufio.NewReader(o.cfg.Stdin).ReadString('\n'); err == nil {
				close(line)
			}
		}()
		o.logger.Info("press enter to exit")
	}
	select {
	case <-ctx.Done():
		o.logger.Info("shutdown signal received")
	case <-line:
		o.logger.Info("shutdown requested on stdin")
	}
}

func (o *Orchestrator) watch(index int, p Process) {
	err := p.Wait()
	if o.terminating.Load() {
		return
	}
	fields := []zap.Field{zap.Int("process", index), zap.Int("pid", p.Pid())}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	o.logger.Error("worker process exited unexpectedly", fields...)
}

func (o *Orchestrator) terminate(procs []Process) {
	o.terminating.Store(true)
	for i, p := range procs {
		if err := p.Kill(); err != nil {
			o.logger.Warn("kill worker process failed", zap.Int("process", i), zap.Error(err))
		}
	}
}
