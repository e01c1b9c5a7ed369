// Package frontier implements the distributed crawl frontier: a pending set of
// discovered URLs and a done set of claimed URLs, both hosted in a shared set
// store. Deduplication is best-effort: URLKnown and the following insert are
// separate round-trips, so two workers that discover the same brand-new URL at
// the same time may both insert it. Config.AtomicEnqueue swaps the two-step
// protocol for a single conditional store operation.
package frontier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/crawler"
)

// Default keys shared by every process taking part in a crawl.
const (
	DefaultPendingKey = "asyncspider:pending"
	DefaultDoneKey    = "asyncspider:done"
)

// ErrAtomicUnsupported is returned when atomic enqueue is requested on a store
// that cannot perform a conditional insert.
var ErrAtomicUnsupported = errors.New("store does not support atomic enqueue")

// Store exposes the set primitives the frontier is built on.
// Implementations must tolerate overlapping calls from many goroutines.
type Store interface {
	// Add inserts member into the set at key and reports whether it was new.
	Add(ctx context.Context, key, member string) (bool, error)
	// PopRandom removes and returns an arbitrary member. ok is false when the set is empty.
	PopRandom(ctx context.Context, key string) (member string, ok bool, err error)
	// IsMember reports whether member belongs to the set at key.
	IsMember(ctx context.Context, key, member string) (bool, error)
	// Count returns the cardinality of the set at key.
	Count(ctx context.Context, key string) (int64, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// AtomicAdder is implemented by stores that can insert into target only when
// member is absent from both target and every key in others, in one operation.
type AtomicAdder interface {
	AddIfAbsent(ctx context.Context, target string, others []string, member string) (bool, error)
}

// Config names the two sets and selects the dedup protocol.
type Config struct {
	PendingKey    string
	DoneKey       string
	AtomicEnqueue bool
}

// Client wraps a Store into the frontier operations used by workers.
type Client struct {
	store  Store
	atomic AtomicAdder
	cfg    Config
	logger *zap.Logger
}

var _ crawler.Frontier = (*Client)(nil)

// New builds a Client. Empty keys fall back to the defaults.
func New(store Store, cfg Config, logger *zap.Logger) (*Client, error) {
	if store == nil {
		return nil, errors.New("frontier store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PendingKey == "" {
		cfg.PendingKey = DefaultPendingKey
	}
	if cfg.DoneKey == "" {
		cfg.DoneKey = DefaultDoneKey
	}
	if cfg.PendingKey == cfg.DoneKey {
		return nil, fmt.Errorf("pending and done keys must differ, both are %q", cfg.PendingKey)
	}
	c := &Client{store: store, cfg: cfg, logger: logger}
	if cfg.AtomicEnqueue {
		adder, ok := store.(AtomicAdder)
		if !ok {
			return nil, ErrAtomicUnsupported
		}
		c.atomic = adder
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Ping checks that the underlying store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping frontier store: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (c *Client) Close() error {
	return c.store.Close()
}

// ClaimNext removes and returns one arbitrary pending URL.
func (c *Client) ClaimNext(ctx context.Context) (string, bool, error) {
	url, ok, err := c.store.PopRandom(ctx, c.cfg.PendingKey)
	if err != nil {
		return "", false, fmt.Errorf("claim next: %w", err)
	}
	return url, ok, nil
}

// MarkDone records url in the done set.
func (c *Client) MarkDone(ctx context.Context, url string) error {
	if _, err := c.store.Add(ctx, c.cfg.DoneKey, url); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// URLKnown reports whether url is in done or pending. The two memberships are
// queried independently, so the answer is a snapshot of each set at slightly
// different instants.
func (c *Client) URLKnown(ctx context.Context, url string) (bool, error) {
	hits := 0
	for _, key := range []string{c.cfg.DoneKey, c.cfg.PendingKey} {
		member, err := c.store.IsMember(ctx, key, url)
		if err != nil {
			return false, fmt.Errorf("membership %s: %w", key, err)
		}
		if member {
			hits++
		}
	}
	return hits != 0, nil
}

// EnqueueIfNew inserts url into pending unless it is already known and
// reports whether an insert was issued.
func (c *Client) EnqueueIfNew(ctx context.Context, url string) (bool, error) {
	if c.atomic != nil {
		added, err := c.atomic.AddIfAbsent(ctx, c.cfg.PendingKey, []string{c.cfg.DoneKey}, url)
		if err != nil {
			return false, fmt.Errorf("atomic enqueue: %w", err)
		}
		return added, nil
	}

	known, err := c.URLKnown(ctx, url)
	if err != nil {
		return false, err
	}
	if known {
		c.logger.Debug("url already known", zap.String("url", url))
		return false, nil
	}
	// Another worker may insert url between URLKnown and here; SADD keeps the
	// pending set itself duplicate-free but the done check is already stale.
	if _, err := c.store.Add(ctx, c.cfg.PendingKey, url); err != nil {
		return false, fmt.Errorf("enqueue: %w", err)
	}
	c.logger.Debug("url enqueued", zap.String("url", url))
	return true, nil
}

// Seed adds raw to pending when it is an absolute URL. Relative or empty
// values are skipped without error and reported as not added.
func (c *Client) Seed(ctx context.Context, raw string) (bool, error) {
	if !crawler.IsAbsoluteURL(raw) {
		c.logger.Info("seed skipped, not an absolute url", zap.String("url", raw))
		return false, nil
	}
	url, err := crawler.NormalizeURL(raw)
	if err != nil {
		return false, fmt.Errorf("normalize seed: %w", err)
	}
	if _, err := c.store.Add(ctx, c.cfg.PendingKey, url); err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	c.logger.Info("seed added", zap.String("url", url))
	return true, nil
}

// PendingCount returns the cardinality of the pending set.
func (c *Client) PendingCount(ctx context.Context) (int64, error) {
	n, err := c.store.Count(ctx, c.cfg.PendingKey)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// DoneCount returns the cardinality of the done set.
func (c *Client) DoneCount(ctx context.Context) (int64, error) {
	n, err := c.store.Count(ctx, c.cfg.DoneKey)
	if err != nil {
		return 0, fmt.Errorf("count done: %w", err)
	}
	return n, nil
}

// Stats reads both cardinalities.
func (c *Client) Stats(ctx context.Context) (crawler.FrontierStats, error) {
	pending, err := c.PendingCount(ctx)
	if err != nil {
		return crawler.FrontierStats{}, err
	}
	done, err := c.DoneCount(ctx)
	if err != nil {
		return crawler.FrontierStats{}, err
	}
	return crawler.FrontierStats{Pending: pending, Done: done}, nil
}
