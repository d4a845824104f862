package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zeeeepa/gobby-sub011/internal/config"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/internal/worktree"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

var (
	cleanupForce   bool
	cleanupVerbose bool
	cleanupDryRun  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Release stale claims and remove orphaned worktrees",
	Long: `Clean up after crashed or interrupted agents.

This command:
  - Releases claims whose agent process is no longer alive
  - Releases records whose worktree directory vanished
  - Removes git worktrees no active record points at
  - Runs git worktree prune

The status command only reports these; cleanup repairs them.

Examples:
  gobby cleanup              # Interactive cleanup with confirmation
  gobby cleanup --force      # Skip confirmation prompt
  gobby cleanup --dry-run    # Show what would be removed
  gobby cleanup -v           # Verbose output showing each removal`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "Show each claim and worktree as it is handled")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	root, err := findGitRoot(cwd)
	if err != nil {
		return fmt.Errorf("find git repository: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := state.OpenProject(root)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	manager, err := worktree.NewManager(
		resolvePath(root, cfg.Orchestration.WorktreeDir),
		root,
		cfg.Orchestration.BaseBranch,
		cfg.Orchestration.BranchPrefix,
	)
	if err != nil {
		return fmt.Errorf("create workspace manager: %w", err)
	}

	stale, err := db.ListStaleClaims()
	if err != nil {
		return fmt.Errorf("list stale claims: %w", err)
	}
	missing, err := db.ListMissingWorktrees()
	if err != nil {
		return fmt.Errorf("list missing worktrees: %w", err)
	}

	// A claim can be both stale and missing its directory; release once.
	releasing := map[string]models.Worktree{}
	for _, wt := range stale {
		releasing[wt.ID] = wt
	}
	for _, wt := range missing {
		releasing[wt.ID] = wt
	}

	active, err := db.ListActiveWorktrees()
	if err != nil {
		return fmt.Errorf("list active worktrees: %w", err)
	}
	var keepPaths []string
	for _, wt := range active {
		if _, gone := releasing[wt.ID]; !gone {
			keepPaths = append(keepPaths, wt.Path)
		}
	}

	orphans, err := manager.ListOrphans(keepPaths)
	if err != nil {
		return fmt.Errorf("list orphaned worktrees: %w", err)
	}

	if len(releasing) == 0 && len(orphans) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	if len(stale) > 0 {
		fmt.Printf("Found %d stale claim(s) with no live agent:\n", len(stale))
		for _, wt := range stale {
			fmt.Printf("  - task %s on %s\n", wt.TaskID, wt.Branch)
		}
	}
	if len(missing) > 0 {
		fmt.Printf("Found %d record(s) whose worktree directory vanished:\n", len(missing))
		for _, wt := range missing {
			fmt.Printf("  - task %s at %s\n", wt.TaskID, wt.Path)
		}
	}
	if len(orphans) > 0 {
		fmt.Printf("Found %d orphaned worktree(s):\n", len(orphans))
		for _, ws := range orphans {
			fmt.Printf("  - %s (branch: %s)\n", ws.Path, ws.Branch)
		}
	}
	fmt.Println()

	if cleanupDryRun {
		fmt.Println("Dry run mode - nothing was changed.")
		return nil
	}

	if !cleanupForce {
		ok, err := confirm("Clean these up? [y/N] ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cleanup cancelled.")
			return nil
		}
	}

	released := 0
	for id, wt := range releasing {
		if err := db.ReleaseWorktree(id); err != nil {
			return fmt.Errorf("release worktree %s: %w", id, err)
		}
		if cleanupVerbose {
			fmt.Printf("Released: task %s on %s\n", wt.TaskID, wt.Branch)
		}
		released++
	}

	var verboseCallback func(path string)
	if cleanupVerbose {
		verboseCallback = func(path string) {
			fmt.Printf("Removed: %s\n", path)
		}
	}
	removed, err := manager.CleanupOrphans(keepPaths, verboseCallback)
	if err != nil {
		return fmt.Errorf("cleanup orphaned worktrees: %w", err)
	}
	if err := manager.Prune(); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}

	fmt.Printf("Released %d claim(s), removed %d orphaned worktree(s).\n", released, removed)
	return nil
}

// confirm prompts on stdin for a yes/no answer.
func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
