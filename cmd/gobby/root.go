package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// checkAgentCLI verifies the configured agent binary is available in
// PATH before anything tries to spawn it.
func checkAgentCLI(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("agent command %q not found in PATH\n\n"+
			"Gobby launches coding agents through this binary. Install it,\n"+
			"or point gobby at a different one:\n"+
			"  gobby config set agent.command <binary>", command)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "gobby",
	Short: "Session workflows and task orchestration for coding agents",
	Long: `Gobby keeps coding-agent sessions on track.

It evaluates declarative workflows against session lifecycle events,
tracks per-session state in SQLite, and fans ready tasks out to
parallel agents, each in its own git worktree.

Core capabilities:
- Declarative YAML workflows with observers and triggers
- Two-tier variables: per-workflow and shared per-session
- Dependency-aware task scheduling with a concurrency cap
- Spawn admission by recursion depth and daily budget
- Isolated agent workspaces via git worktrees`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
