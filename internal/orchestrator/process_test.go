package orchestrator

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It stands in for a worker process
// when re-executed by the spawner tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SPIDER_HELPER_PROCESS") != "1" {
		return
	}
	time.Sleep(time.Minute)
	os.Exit(0)
}

func TestExecSpawner_SpawnAndKill(t *testing.T) {
	t.Parallel()

	var gotIndex int
	spawner := &ExecSpawner{
		Path: os.Args[0],
		Args: func(index int) []string {
			gotIndex = index
			return []string{"-test.run=^TestHelperProcess$"}
		},
		Env: []string{"SPIDER_HELPER_PROCESS=1"},
	}

	p, err := spawner.Spawn(3)
	require.NoError(t, err)
	require.Equal(t, 3, gotIndex)
	require.Positive(t, p.Pid())

	require.NoError(t, p.Kill())
	require.Error(t, p.Wait())
	require.NoError(t, p.Kill())
}

func TestExecSpawner_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := (&ExecSpawner{}).Spawn(0)
	require.Error(t, err)
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := (&ExecSpawner{Path: "/nonexistent/spider"}).Spawn(0)
	require.Error(t, err)
}

func TestNewSelfSpawner(t *testing.T) {
	t.Parallel()

	s, err := NewSelfSpawner(nil)
	require.NoError(t, err)
	require.NotEmpty(t, s.Path)
}
