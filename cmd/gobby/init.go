package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Zeeeepa/gobby-sub011/internal/config"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
)

var (
	initForce          bool
	initNoGit          bool
	initSkipAgentCheck bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Gobby project",
	Long: `Initialize a directory for use with Gobby.

This command sets up everything needed to run Gobby:
  - Verifies prerequisites (git, the agent CLI)
  - Initializes git repository if needed
  - Creates the .gobby directory structure and state database
  - Creates a .gobby.yaml template and an example workflow

The directory argument is optional and defaults to the current directory.

Examples:
  gobby init              # Initialize current directory
  gobby init ./myproject  # Initialize specific directory
  gobby init --force      # Reinitialize even if already set up
  gobby init --no-git     # Skip git initialization`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initNoGit, "no-git", false, "Skip git initialization")
	initCmd.Flags().BoolVar(&initSkipAgentCheck, "skip-agent-check", false, "Skip agent CLI availability check")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}
	if err := os.Chdir(absPath); err != nil {
		return fmt.Errorf("changing to directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Gobby in %s...\n\n", absPath)

	gobbyDir := filepath.Join(absPath, ".gobby")
	if _, err := os.Stat(gobbyDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	if err := checkGitInstalled(); err != nil {
		printStatus("✗", "Git not found", color.FgRed)
		return err
	}
	printStatus("✓", "Git found", color.FgGreen)

	if !initSkipAgentCheck {
		if err := checkAgentCLI(agentCommandName()); err != nil {
			printStatus("✗", "Agent CLI not found", color.FgRed)
			return err
		}
		printStatus("✓", "Agent CLI found", color.FgGreen)
	}

	if !initNoGit {
		if err := initGitRepo(absPath); err != nil {
			return err
		}
	} else {
		fmt.Println("Skipping git initialization (--no-git flag)")
	}

	for _, dir := range []string{
		gobbyDir,
		filepath.Join(gobbyDir, "workflows"),
		filepath.Join(gobbyDir, "worktrees"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .gobby directory structure", color.FgGreen)

	db, err := state.OpenProject(absPath)
	if err != nil {
		return fmt.Errorf("creating state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrating state database: %w", err)
	}
	db.Close()
	printStatus("✓", "Initialized state database", color.FgGreen)

	if !initNoGit {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with Gobby entries", color.FgGreen)
	}

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .gobby.yaml template", color.FgGreen)

	if err := createExampleWorkflow(absPath); err != nil {
		return fmt.Errorf("creating example workflow: %w", err)
	}
	printStatus("✓", "Created example workflow in .gobby/workflows/", color.FgGreen)

	fmt.Printf("\n%s Gobby initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Add tasks:")
	fmt.Println("     gobby tasks add \"your first task\"")
	fmt.Println()
	fmt.Println("  2. Dispatch agents:")
	fmt.Println("     gobby orchestrate run --task <id>")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     gobby --help")
	return nil
}

// agentCommandName reads the configured agent command without opening
// the whole engine, falling back to the default on config errors.
func agentCommandName() string {
	cfg, err := config.Load()
	if err != nil {
		return "claude"
	}
	return cfg.Agent.Command
}

// checkGitInstalled checks if git is installed
func checkGitInstalled() error {
	_, err := exec.LookPath("git")
	if err != nil {
		return fmt.Errorf("git not found in PATH\n\n" +
			"Gobby requires git to manage agent worktrees.\n\n" +
			"Install git with:\n" +
			"  - macOS: brew install git\n" +
			"  - Ubuntu/Debian: sudo apt-get install git\n" +
			"  - Other: https://git-scm.com/downloads")
	}
	return nil
}

// initGitRepo initializes git repository and ensures basic requirements
func initGitRepo(repoPath string) error {
	gitDir := filepath.Join(repoPath, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		cmd := exec.Command("git", "init")
		cmd.Dir = repoPath
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("git init failed: %s\n%s", err, string(output))
		}
		printStatus("✓", "Initialized git repository", color.FgGreen)
	} else {
		printStatus("✓", "Git repository exists", color.FgGreen)
	}

	hasCommits, err := hasAnyCommits(repoPath)
	if err != nil {
		return fmt.Errorf("checking for commits: %w", err)
	}
	if !hasCommits {
		if err := ensureInitialCommit(repoPath); err != nil {
			return fmt.Errorf("creating initial commit: %w", err)
		}
		printStatus("✓", "Created initial commit", color.FgGreen)
	} else {
		printStatus("✓", "Git repository has commits", color.FgGreen)
	}
	return nil
}

// hasAnyCommits checks if the repository has any commits
func hasAnyCommits(repoPath string) (bool, error) {
	cmd := exec.Command("git", "rev-list", "-n", "1", "--all")
	cmd.Dir = repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Exit code 128 typically means no commits
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 128 {
			return false, nil
		}
		return false, fmt.Errorf("git rev-list failed: %s", string(output))
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// ensureInitialCommit creates an initial commit so worktrees have a
// base to fork from.
func ensureInitialCommit(repoPath string) error {
	addCmd := exec.Command("git", "add", ".")
	addCmd.Dir = repoPath
	if output, err := addCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git add failed: %s\n%s", err, string(output))
	}

	commitCmd := exec.Command("git", "commit", "--allow-empty", "-m", "Initial commit")
	commitCmd.Dir = repoPath
	if output, err := commitCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git commit failed: %s\n%s", err, string(output))
	}
	return nil
}

// updateGitignore adds Gobby entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	gobbyEntries := []string{
		".gobby/state.db*",
		".gobby/worktrees/",
		".gobby/agent.log",
		"gobby",
	}

	needsUpdate := false
	for _, entry := range gobbyEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# Gobby\n")
	for _, entry := range gobbyEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createProjectConfig creates a .gobby.yaml template
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".gobby.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	template := `# Gobby Project Configuration
# This file overrides defaults from ~/.config/gobby/config.yaml

# log:
#   level: info
#   format: text

# workflows:
#   dir: .gobby/workflows
#   watch: false

# orchestration:
#   max_concurrent: 3
#   worktree_dir: .gobby/worktrees
#   branch_prefix: gobby
#   base_branch: ""

# spawn:
#   max_agent_depth: 3
#   daily_budget_usd: 0

# agent:
#   command: claude
#   args: []
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// createExampleWorkflow writes a starter workflow definition.
func createExampleWorkflow(repoPath string) error {
	workflowPath := filepath.Join(repoPath, ".gobby", "workflows", "example.yaml")
	if _, err := os.Stat(workflowPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	template := `# Example workflow. Lifecycle workflows are evaluated against every
# event of a session once the session has been seen; step workflows must
# be activated explicitly:
#   gobby workflow activate example --session <id>
name: example
kind: lifecycle
priority: 10

variables:
  greeted: false

observers:
  - name: record-last-prompt
    on: user_prompt
    set:
      last_prompt: "{{ .event.prompt }}"

  - name: mark-stopped
    on: stop
    set:
      stopped_at: "{{ now }}"

triggers:
  session_start:
    - action: log
      params:
        message: "session {{ .event.session_id }} started"
`

	return os.WriteFile(workflowPath, []byte(template), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
