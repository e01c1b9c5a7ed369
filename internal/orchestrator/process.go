package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a running worker process.
type Process interface {
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
	// Kill terminates the process immediately.
	Kill() error
}

// Spawner starts the worker process for a given index.
type Spawner interface {
	Spawn(index int) (Process, error)
}

// ExecSpawner starts worker processes from a binary on disk, normally the
// running executable re-invoked with its worker subcommand.
type ExecSpawner struct {
	Path string
	// Args returns the argument list for worker index.
	Args   func(index int) []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewSelfSpawner returns an ExecSpawner that re-executes the current binary.
func NewSelfSpawner(args func(index int) []string) (*ExecSpawner, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &ExecSpawner{Path: path, Args: args, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Spawn starts one worker process.
func (s *ExecSpawner) Spawn(index int) (Process, error) {
	if s.Path == "" {
		return nil, errors.New("spawn: executable path is required")
	}
	var args []string
	if s.Args != nil {
		args = s.Args(index)
	}
	cmd := exec.Command(s.Path, args...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn worker %d: %w", index, err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("wait pid %d: %w", p.Pid(), err)
	}
	return nil
}

func (p *execProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}
	return nil
}
