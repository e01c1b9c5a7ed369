// Package observer periodically samples the done set and reports crawl rate.
package observer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/crawler"
	"github.com/JakeFAU/asyncspider/internal/metrics"
)

// DefaultInterval is the sampling period used when none is configured.
const DefaultInterval = 10 * time.Second

// Sample is one throughput measurement.
type Sample struct {
	Done  int64
	Delta int64
	// Rate is Delta divided by the sampling interval, in URLs per second.
	Rate float64
}

// Config controls the sampling loop. Report, when set, receives every sample
// after it has been logged.
type Config struct {
	Interval time.Duration
	Report   func(Sample)
}

// Observer reads the done cardinality on a fixed interval.
type Observer struct {
	counter crawler.DoneCounter
	cfg     Config
	logger  *zap.Logger
}

// New constructs an Observer.
func New(counter crawler.DoneCounter, cfg Config, logger *zap.Logger) (*Observer, error) {
	if counter == nil {
		return nil, errors.New("observer: done counter is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Observer{counter: counter, cfg: cfg, logger: logger}, nil
}

// Compute derives a sample from two consecutive done counts.
func Compute(prev, cur int64, interval time.Duration) Sample {
	s := Sample{Done: cur, Delta: cur - prev}
	if interval > 0 {
		s.Rate = float64(s.Delta) / interval.Seconds()
	}
	return s
}

// Run takes a baseline sample immediately, then one per interval until ctx is
// canceled. Failed reads after the baseline are logged and skipped.
func (o *Observer) Run(ctx context.Context) error {
	prev, err := o.counter.DoneCount(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("observer baseline: %w", err)
	}
	metrics.ObserveThroughput(prev, 0)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		cur, err := o.counter.DoneCount(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			o.logger.Warn("done count failed", zap.Error(err))
			continue
		}
		s := Compute(prev, cur, o.cfg.Interval)
		prev = cur
		o.logger.Info("crawl throughput",
			zap.Float64("rate_per_sec", s.Rate),
			zap.Int64("total", s.Done),
		)
		metrics.ObserveThroughput(s.Done, s.Rate)
		if o.cfg.Report != nil {
			o.cfg.Report(s)
		}
	}
}
