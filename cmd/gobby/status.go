package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project state",
	Long: `Display the state of the current project.

Shows:
  - Task counts by status
  - Active worktrees and whether their agents are alive
  - Stale claims needing cleanup
  - Spend over the trailing 24 hours`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// runStatus opens the database directly instead of the full engine so
// it keeps working when workflow definitions fail to load.
func runStatus(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	dbPath := state.ProjectDBPath(root)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No gobby state found. Run 'gobby init' first.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	tasks, err := db.ListTasks(nil)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	counts := map[models.TaskStatus]int{}
	for i := range tasks {
		counts[tasks[i].Status]++
	}
	fmt.Printf("Tasks: %d total (%d open, %d in progress, %d closed)\n",
		len(tasks),
		counts[models.TaskStatusOpen],
		counts[models.TaskStatusInProgress],
		counts[models.TaskStatusClosed])

	active, err := db.ListActiveWorktrees()
	if err != nil {
		return fmt.Errorf("list worktrees: %w", err)
	}
	claimed := 0
	for i := range active {
		if active[i].Claimed() {
			claimed++
		}
	}
	fmt.Printf("Worktrees: %d active, %d claimed\n", len(active), claimed)
	for i := range active {
		wt := &active[i]
		if !wt.Claimed() {
			continue
		}
		age := formatDuration(time.Since(wt.CreatedAt))
		live, err := db.HasLiveAgent(wt.AgentSessionID)
		if err != nil {
			return fmt.Errorf("check agent liveness: %w", err)
		}
		if live {
			printStatus("✓", fmt.Sprintf("task %s on %s (agent alive, %s old)", wt.TaskID, wt.Branch, age), color.FgGreen)
		} else {
			printStatus("✗", fmt.Sprintf("task %s on %s (agent gone, %s old)", wt.TaskID, wt.Branch, age), color.FgRed)
		}
	}

	stale, err := db.ListStaleClaims()
	if err != nil {
		return fmt.Errorf("list stale claims: %w", err)
	}
	if len(stale) > 0 {
		printStatus("⚠", fmt.Sprintf("%d stale claim(s); run 'gobby cleanup'", len(stale)), color.FgYellow)
	}

	spent, err := db.SpentSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return fmt.Errorf("sum spend: %w", err)
	}
	fmt.Printf("Spend (24h): $%.2f\n", spent)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
