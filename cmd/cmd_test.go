package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/app"
	"github.com/JakeFAU/asyncspider/internal/config"
	"github.com/JakeFAU/asyncspider/internal/crawler"
	"github.com/JakeFAU/asyncspider/internal/frontier"
	"github.com/JakeFAU/asyncspider/internal/frontier/memory"
	"github.com/JakeFAU/asyncspider/internal/orchestrator"
)

// sharedStore keeps the memory store usable across commands, which each
// close their app on exit.
type sharedStore struct {
	*memory.Store
}

func (sharedStore) Close() error { return nil }

func useMemoryApp(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	prev := newApp
	newApp = func(_ context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.NewWithStore(cfg, sharedStore{store}, logger)
	}
	t.Cleanup(func() { newApp = prev })
	return store
}

func execute(ctx context.Context, t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestSeedAndStatsCommands(t *testing.T) {
	store := useMemoryApp(t)
	ctx := context.Background()

	out, err := execute(ctx, t, "", "seed", "http://a.test/", "not-a-url")
	require.NoError(t, err)
	require.Contains(t, out, "seeded\thttp://a.test/")
	require.Contains(t, out, "skipped\tnot-a-url")
	require.Equal(t, []string{"http://a.test/"}, store.Members(frontier.DefaultPendingKey))

	out, err = execute(ctx, t, "", "stats")
	require.NoError(t, err)
	var stats crawler.FrontierStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, crawler.FrontierStats{Pending: 1}, stats)
}

func TestSeedRequiresArgs(t *testing.T) {
	useMemoryApp(t)
	_, err := execute(context.Background(), t, "", "seed")
	require.Error(t, err)
}

func TestRunCommandSeedsSpawnsAndStopsOnEnter(t *testing.T) {
	store := useMemoryApp(t)
	spawner := &recordingSpawner{}
	prev := newSpawner
	newSpawner = func(args func(int) []string) (orchestrator.Spawner, error) {
		spawner.args = args
		return spawner, nil
	}
	t.Cleanup(func() { newSpawner = prev })

	_, err := execute(context.Background(), t, "\n",
		"run", "--processes", "2", "--tasks", "4", "--start-url", "http://a.test/")
	require.NoError(t, err)

	require.Equal(t, []string{"http://a.test/"}, store.Members(frontier.DefaultPendingKey))
	require.Equal(t, 2, spawner.spawned())
	args := spawner.args(1)
	require.Equal(t, "worker", args[0])
	require.Contains(t, strings.Join(args, " "), "--tasks 4")
	require.Contains(t, strings.Join(args, " "), "--index 1")
}

func TestRunCommandMinimalProfile(t *testing.T) {
	store := useMemoryApp(t)
	spawner := &recordingSpawner{}
	prev := newSpawner
	newSpawner = func(args func(int) []string) (orchestrator.Spawner, error) {
		spawner.args = args
		return spawner, nil
	}
	t.Cleanup(func() { newSpawner = prev })

	_, err := execute(context.Background(), t, "\n",
		"run", "--processes", "1", "--profile", "minimal", "--start-url", "http://a.test/")
	require.NoError(t, err)

	require.Empty(t, store.Members(frontier.DefaultPendingKey))
	require.Contains(t, strings.Join(spawner.args(0), " "), "--tasks 1")
}

func TestWorkerCommandIdlesUntilCanceled(t *testing.T) {
	useMemoryApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := execute(ctx, t, "", "worker", "--tasks", "2", "--max-procs", "0", "--index", "3")
	require.NoError(t, err)
}

func TestWorkerArgs(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Redis.URL = "redis://cache:6379"
	cfg.Frontier.AtomicEnqueue = true
	cfg.Logging.Level = "warn"
	cfg.Metrics.WorkerPortBase = 9100

	args := workerArgs("/etc/spider.yaml", cfg, "run-1", 5, 2)
	require.Equal(t, []string{
		"worker",
		"--redis-url", "redis://cache:6379",
		"--tasks", "5",
		"--atomic-enqueue=true",
		"--development=true",
		"--run-id", "run-1",
		"--index", "2",
		"--config", "/etc/spider.yaml",
		"--log-level", "warn",
		"--metrics-addr=:9102",
	}, args)
}

func TestWorkerArgsOverrideParentMetricsAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("SPIDER_METRICS_ADDR", ":9091")

	parent, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, ":9091", parent.Metrics.Addr)

	tests := []struct {
		name     string
		portBase int
		want     string
	}{
		{name: "no worker port base", portBase: 0, want: ""},
		{name: "worker port base", portBase: 9200, want: ":9201"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := parent
			cfg.Metrics.WorkerPortBase = tc.portBase

			args := workerArgs(path, cfg, "run-1", 2, 1)
			child, rest, err := newRootCmd().Find(args)
			require.NoError(t, err)
			require.Equal(t, "worker", child.Name())
			require.NoError(t, child.ParseFlags(rest))

			childCfg, err := config.Load(path, child.Flags())
			require.NoError(t, err)
			require.Equal(t, tc.want, childCfg.Metrics.Addr)
			require.NotEqual(t, parent.Metrics.Addr, childCfg.Metrics.Addr)
		})
	}
}

type recordingSpawner struct {
	mu    sync.Mutex
	args  func(int) []string
	procs []*stubProcess
}

func (s *recordingSpawner) Spawn(index int) (orchestrator.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.args(index)
	p := &stubProcess{pid: 100 + index, exit: make(chan struct{})}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *recordingSpawner) spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

type stubProcess struct {
	pid  int
	exit chan struct{}
	once sync.Once
}

func (p *stubProcess) Pid() int { return p.pid }

func (p *stubProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *stubProcess) Kill() error {
	p.once.Do(func() { close(p.exit) })
	return nil
}
