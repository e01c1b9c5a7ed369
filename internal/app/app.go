// Package app initializes and holds long-lived services shared by the CLI
// commands: configuration, the logger and the frontier client.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/config"
	collyfetcher "github.com/JakeFAU/asyncspider/internal/fetcher/colly"
	"github.com/JakeFAU/asyncspider/internal/frontier"
	redisstore "github.com/JakeFAU/asyncspider/internal/frontier/redis"
)

// App is the dependency container built once per command invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	frontier *frontier.Client
}

// New connects to the Redis store named in cfg and wraps it in a frontier
// client. The store is pinged so an unreachable server fails fast.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := redisstore.NewFromURL(cfg.Redis.URL, cfg.Redis.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("init redis store: %w", err)
	}
	a, err := NewWithStore(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Frontier.OpTimeout)
	defer cancel()
	if err := a.frontier.Ping(pingCtx); err != nil {
		_ = a.frontier.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("frontier connected",
		zap.String("pending_key", cfg.Frontier.PendingKey),
		zap.String("done_key", cfg.Frontier.DoneKey),
		zap.Bool("atomic_enqueue", cfg.Frontier.AtomicEnqueue),
	)
	return a, nil
}

// NewWithStore builds an App around an existing set store.
func NewWithStore(cfg config.Config, store frontier.Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := frontier.New(store, frontier.Config{
		PendingKey:    cfg.Frontier.PendingKey,
		DoneKey:       cfg.Frontier.DoneKey,
		AtomicEnqueue: cfg.Frontier.AtomicEnqueue,
	}, logger.Named("frontier"))
	if err != nil {
		return nil, fmt.Errorf("init frontier: %w", err)
	}
	return &App{cfg: cfg, logger: logger, frontier: client}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Frontier returns the shared frontier client.
func (a *App) Frontier() *frontier.Client {
	return a.frontier
}

// FetcherConfig translates the fetch section into colly fetcher settings.
func (a *App) FetcherConfig() collyfetcher.Config {
	return collyfetcher.Config{
		UserAgent:          a.cfg.Fetch.UserAgent,
		Timeout:            a.cfg.Fetch.Timeout,
		InsecureSkipVerify: a.cfg.Fetch.InsecureSkipVerify,
		MaxBodyBytes:       a.cfg.Fetch.MaxBodyBytes,
	}
}

// Close releases the store connection.
func (a *App) Close() {
	if err := a.frontier.Close(); err != nil {
		a.logger.Warn("frontier close failed", zap.Error(err))
	}
}
