// Package worker implements the fetch-extract loop run by every crawl task.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/crawler"
	"github.com/JakeFAU/asyncspider/internal/metrics"
)

const (
	defaultIdleBackoff = 100 * time.Millisecond
	defaultMarkTimeout = 5 * time.Second
)

// Config controls Worker behavior.
type Config struct {
	// IdleBackoff is how long to sleep after finding pending empty.
	IdleBackoff time.Duration
	// MarkDoneTimeout bounds the detached MarkDone call.
	MarkDoneTimeout time.Duration
}

// Worker repeatedly claims a URL, fetches it, extracts links and enqueues the
// ones the frontier has not seen. It keeps no state between iterations.
type Worker struct {
	id        int
	frontier  crawler.Frontier
	fetcher   crawler.Fetcher
	extractor crawler.LinkExtractor
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	id int,
	frontier crawler.Frontier,
	fetcher crawler.Fetcher,
	extractor crawler.LinkExtractor,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = defaultIdleBackoff
	}
	if cfg.MarkDoneTimeout <= 0 {
		cfg.MarkDoneTimeout = defaultMarkTimeout
	}
	metrics.Init()
	return &Worker{
		id:        id,
		frontier:  frontier,
		fetcher:   fetcher,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run loops until ctx is canceled, which is reported as a nil error. Any
// frontier failure ends the loop and is returned.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("worker started")
	for {
		// Stores that ignore ctx would otherwise hand out one more URL that
		// is then marked done and never fetched.
		if ctx.Err() != nil {
			return nil
		}
		claimed, err := w.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %d: %w", w.id, err)
		}
		if claimed {
			continue
		}
		metrics.ObserveIdlePoll()
		if !sleep(ctx, w.cfg.IdleBackoff) {
			return nil
		}
	}
}

// Step performs one claim → fetch → extract → enqueue cycle. claimed is false
// when pending was empty. Fetch and parse failures are absorbed; only frontier
// errors are returned.
func (w *Worker) Step(ctx context.Context) (bool, error) {
	url, ok, err := w.frontier.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	metrics.ObserveClaim()
	marked := w.markDone(ctx, url)

	body := w.fetch(ctx, url)
	if len(body) == 0 {
		return true, nil
	}

	links, err := w.extractor.ExtractLinks(body, url)
	if err != nil {
		w.logger.Debug("link extraction failed", zap.String("url", url), zap.Error(err))
		return true, nil
	}

	// Membership checks must observe url in done, as they would when both
	// commands travel the same pipelined connection.
	select {
	case <-marked:
	case <-ctx.Done():
		return true, fmt.Errorf("await mark done: %w", ctx.Err())
	}

	if err := w.discover(ctx, links); err != nil {
		return true, err
	}
	return true, nil
}

// markDone records url in done without holding up the fetch. The returned
// channel closes once the call finished, successfully or not.
func (w *Worker) markDone(ctx context.Context, url string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.MarkDoneTimeout)
		defer cancel()
		if err := w.frontier.MarkDone(markCtx, url); err != nil {
			w.logger.Error("mark done failed", zap.String("url", url), zap.Error(err))
		}
	}()
	return done
}

// fetch returns nil on any transport failure. The url stays in done and is
// never attempted again.
func (w *Worker) fetch(ctx context.Context, url string) []byte {
	resp, err := w.fetcher.Fetch(ctx, crawler.FetchRequest{URL: url})
	if err != nil {
		metrics.ObserveFetch(url, false, 0)
		if !errors.Is(err, context.Canceled) {
			w.logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		}
		return nil
	}
	metrics.ObserveFetch(url, true, len(resp.Body))
	w.logger.Debug("fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("duration", resp.Duration),
	)
	return resp.Body
}

func (w *Worker) discover(ctx context.Context, links []string) error {
	for _, link := range links {
		added, err := w.frontier.EnqueueIfNew(ctx, link)
		if err != nil {
			return err
		}
		if added {
			metrics.ObserveLink(metrics.LinkEnqueued)
		} else {
			metrics.ObserveLink(metrics.LinkKnown)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
