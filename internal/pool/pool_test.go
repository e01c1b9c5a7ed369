package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/crawler"
	"github.com/JakeFAU/asyncspider/internal/worker"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := New(ctx, Config{Tasks: 0}, &fakeFrontier{}, fakeFetcher{}, fakeExtractor{}, nil)
	require.Error(t, err)

	_, err = New(ctx, Config{Tasks: 1}, nil, fakeFetcher{}, fakeExtractor{}, nil)
	require.Error(t, err)
}

func TestNew_FailsWhenStoreUnreachable(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial tcp: connection refused")
	_, err := New(context.Background(), Config{Tasks: 2}, &fakeFrontier{pingErr: boom},
		fakeFetcher{}, fakeExtractor{}, zap.NewNop())
	require.ErrorIs(t, err, boom)
}

func TestPool_RunStartsAllWorkersAndShutdown(t *testing.T) {
	t.Parallel()

	frontier := &fakeFrontier{}
	p, err := New(context.Background(), Config{
		Tasks:  4,
		Worker: worker.Config{IdleBackoff: time.Millisecond},
	}, frontier, fakeFetcher{}, fakeExtractor{}, zap.NewNop())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()

	require.Eventually(t, func() bool { return p.Active() == 4 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return frontier.claims.Load() >= 8 }, time.Second, 5*time.Millisecond)

	p.Shutdown()
	p.Shutdown()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pool did not stop after Shutdown")
	}
	require.Zero(t, p.Active())
}

func TestPool_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	p, err := New(context.Background(), Config{Tasks: 2}, &fakeFrontier{},
		fakeFetcher{}, fakeExtractor{}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	cancel()
	require.NoError(t, <-errCh)
}

func TestPool_StoreErrorAbortsPool(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	frontier := &fakeFrontier{claimErr: boom}
	p, err := New(context.Background(), Config{Tasks: 3}, frontier,
		fakeFetcher{}, fakeExtractor{}, zap.NewNop())
	require.NoError(t, err)

	err = p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, p.Active())
}

type fakeFrontier struct {
	pingErr  error
	claimErr error
	claims   atomic.Int32
}

func (f *fakeFrontier) Ping(context.Context) error { return f.pingErr }

func (f *fakeFrontier) ClaimNext(context.Context) (string, bool, error) {
	f.claims.Add(1)
	return "", false, f.claimErr
}

func (f *fakeFrontier) MarkDone(context.Context, string) error { return nil }

func (f *fakeFrontier) EnqueueIfNew(context.Context, string) (bool, error) { return true, nil }

type fakeFetcher struct{}

func (fakeFetcher) Fetch(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, nil
}

type fakeExtractor struct{}

func (fakeExtractor) ExtractLinks([]byte, string) ([]string, error) { return nil, nil }
