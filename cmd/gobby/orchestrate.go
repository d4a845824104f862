package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	orchestrateTask          string
	orchestrateSession       string
	orchestrateMaxConcurrent int
	orchestrateJSON          bool
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Dispatch ready tasks to parallel agents",
	Long: `Dispatch the ready descendants of a task to parallel agents.

A task is ready when it is open and all of its dependencies are closed.
Each dispatched task gets its own git worktree on a fresh branch and an
agent process working inside it. Dispatch is bounded by the concurrency
limit, the spawn depth limit, and the daily budget.`,
}

var orchestrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch agents for the ready descendants of a task",
	Long: `Launch one agent per ready descendant of the given task.

The calling session is charged for the spawns; it defaults to
$GOBBY_SESSION_ID (set for spawned agents) and falls back to "cli" for
invocations from a terminal. Tasks that cannot be launched are reported
with the reason; the rest of the batch still proceeds.`,
	Args: cobra.NoArgs,
	RunE: runOrchestrate,
}

var orchestrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show descendant progress and agent liveness",
	Args:  cobra.NoArgs,
	RunE:  runOrchestrateStatus,
}

func init() {
	orchestrateCmd.PersistentFlags().StringVarP(&orchestrateTask, "task", "t", "", "Parent task ID (required)")
	orchestrateRunCmd.Flags().StringVarP(&orchestrateSession, "session", "s", "", "Calling session ID (defaults to $GOBBY_SESSION_ID)")
	orchestrateRunCmd.Flags().IntVar(&orchestrateMaxConcurrent, "max-concurrent", 0, "Concurrency cap for this call (0 uses config)")
	orchestrateCmd.PersistentFlags().BoolVar(&orchestrateJSON, "json", false, "Emit JSON instead of text")
	orchestrateCmd.AddCommand(orchestrateRunCmd)
	orchestrateCmd.AddCommand(orchestrateStatusCmd)
}

// callerSession resolves the session to charge spawns against.
func callerSession() string {
	if orchestrateSession != "" {
		return orchestrateSession
	}
	if env := os.Getenv("GOBBY_SESSION_ID"); env != "" {
		return env
	}
	return "cli"
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	if orchestrateTask == "" {
		return fmt.Errorf("no parent task given: pass --task")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := checkAgentCLI(eng.cfg.Agent.Command); err != nil {
		return err
	}

	limit := orchestrateMaxConcurrent
	if limit <= 0 {
		limit = eng.cfg.Orchestration.MaxConcurrent
	}

	result, err := eng.orch.OrchestrateReadyTasks(cmd.Context(), orchestrateTask, callerSession(), limit)
	if err != nil {
		return err
	}
	if orchestrateJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if len(result.Spawned) == 0 && len(result.Skipped) == 0 {
		fmt.Println("No ready tasks to dispatch.")
		return nil
	}
	for _, s := range result.Spawned {
		printStatus("✓", fmt.Sprintf("task %s: agent pid %d (worktree %s)", s.TaskID, s.PID, s.WorktreeID), color.FgGreen)
	}
	for _, s := range result.Skipped {
		printStatus("⚠", fmt.Sprintf("task %s: %s", s.TaskID, s.Reason), color.FgYellow)
	}
	fmt.Printf("\nLaunched %d agent(s), skipped %d task(s).\n", len(result.Spawned), len(result.Skipped))
	return nil
}

func runOrchestrateStatus(cmd *cobra.Command, args []string) error {
	if orchestrateTask == "" {
		return fmt.Errorf("no parent task given: pass --task")
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	st, err := eng.orch.GetStatus(cmd.Context(), orchestrateTask)
	if err != nil {
		return err
	}
	if orchestrateJSON {
		return json.NewEncoder(os.Stdout).Encode(st)
	}

	total := st.Summary.Open + st.Summary.InProgress + st.Summary.Closed
	fmt.Printf("Task %s: %d descendant(s)\n", orchestrateTask, total)
	fmt.Printf("  open: %d, in progress: %d, closed: %d\n",
		st.Summary.Open, st.Summary.InProgress, st.Summary.Closed)

	if len(st.InProgressTasks) == 0 {
		return nil
	}
	fmt.Println("In progress:")
	for _, t := range st.InProgressTasks {
		if t.HasActiveAgent {
			printStatus("✓", fmt.Sprintf("task %s: agent running (worktree %s)", t.TaskID, t.WorktreeID), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("task %s: no live agent (worktree %s)", t.TaskID, t.WorktreeID), color.FgRed)
		}
	}
	return nil
}
