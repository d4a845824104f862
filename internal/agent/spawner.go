// Package agent launches coding-agent processes in isolated workspaces.
package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// LaunchSpec describes one agent process to start.
type LaunchSpec struct {
	Command   string   // Agent binary, resolved via PATH
	Args      []string // Arguments passed to the binary
	WorkDir   string   // Workspace the process runs in
	SessionID string   // Session identity handed to the child
	ParentID  string   // Session that requested the spawn
	TaskID    string   // Task the child owns
}

// Spawner launches agent processes and reports their PIDs.
type Spawner interface {
	// Spawn starts the process described by spec. The context covers
	// setup only; the launched process intentionally outlives it.
	Spawn(ctx context.Context, spec LaunchSpec) (int, error)
}

// ExecSpawner implements Spawner using os/exec. Children are started in
// their own session so they survive this process exiting, and their
// output is appended to .gobby/agent.log inside the workspace.
type ExecSpawner struct{}

// NewSpawner creates an ExecSpawner.
func NewSpawner() *ExecSpawner {
	return &ExecSpawner{}
}

// Spawn starts the agent process and returns its PID without waiting.
func (s *ExecSpawner) Spawn(ctx context.Context, spec LaunchSpec) (int, error) {
	if spec.Command == "" {
		return 0, fmt.Errorf("launch agent: no command configured")
	}

	logDir := filepath.Join(spec.WorkDir, ".gobby")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return 0, fmt.Errorf("create agent log dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "agent.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open agent log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(),
		"GOBBY_SESSION_ID="+spec.SessionID,
		"GOBBY_PARENT_SESSION_ID="+spec.ParentID,
		"GOBBY_TASK_ID="+spec.TaskID,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch agent: %w", err)
	}

	pid := cmd.Process.Pid
	// Not waiting on the child: let go of the process handle.
	_ = cmd.Process.Release()

	return pid, nil
}

// Verify ExecSpawner implements Spawner at compile time.
var _ Spawner = (*ExecSpawner)(nil)
