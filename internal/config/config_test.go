package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.Log.Level)
	}

	if cfg.Log.Format != "text" {
		t.Errorf("expected default log format 'text', got %q", cfg.Log.Format)
	}

	if cfg.Workflows.Dir != filepath.Join(".gobby", "workflows") {
		t.Errorf("expected default workflows dir '.gobby/workflows', got %q", cfg.Workflows.Dir)
	}

	if cfg.Orchestration.MaxConcurrent != 3 {
		t.Errorf("expected default max_concurrent 3, got %d", cfg.Orchestration.MaxConcurrent)
	}

	if cfg.Orchestration.BranchPrefix != "gobby" {
		t.Errorf("expected default branch prefix 'gobby', got %q", cfg.Orchestration.BranchPrefix)
	}

	if cfg.Spawn.MaxAgentDepth != 3 {
		t.Errorf("expected default max_agent_depth 3, got %d", cfg.Spawn.MaxAgentDepth)
	}

	if cfg.Spawn.DailyBudgetUSD != 0 {
		t.Errorf("expected default daily_budget_usd 0, got %v", cfg.Spawn.DailyBudgetUSD)
	}

	if cfg.Agent.Command != "claude" {
		t.Errorf("expected default agent command 'claude', got %q", cfg.Agent.Command)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
log:
  level: debug
  format: json
workflows:
  dir: custom/workflows
  watch: true
orchestration:
  max_concurrent: 5
  worktree_dir: /tmp/worktrees
  branch_prefix: agent
  base_branch: main
spawn:
  max_agent_depth: 2
  daily_budget_usd: 25.50
agent:
  command: claude
  args: ["--dangerously-skip-permissions"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %q", cfg.Log.Level)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("expected log format 'json', got %q", cfg.Log.Format)
	}

	if cfg.Workflows.Dir != "custom/workflows" {
		t.Errorf("expected workflows dir 'custom/workflows', got %q", cfg.Workflows.Dir)
	}

	if !cfg.Workflows.Watch {
		t.Error("expected workflows.watch to be true")
	}

	if cfg.Orchestration.MaxConcurrent != 5 {
		t.Errorf("expected max_concurrent 5, got %d", cfg.Orchestration.MaxConcurrent)
	}

	if cfg.Orchestration.BaseBranch != "main" {
		t.Errorf("expected base_branch 'main', got %q", cfg.Orchestration.BaseBranch)
	}

	if cfg.Spawn.MaxAgentDepth != 2 {
		t.Errorf("expected max_agent_depth 2, got %d", cfg.Spawn.MaxAgentDepth)
	}

	if cfg.Spawn.DailyBudgetUSD != 25.50 {
		t.Errorf("expected daily_budget_usd 25.50, got %v", cfg.Spawn.DailyBudgetUSD)
	}

	if len(cfg.Agent.Args) != 1 || cfg.Agent.Args[0] != "--dangerously-skip-permissions" {
		t.Errorf("expected agent args ['--dangerously-skip-permissions'], got %v", cfg.Agent.Args)
	}
}

func TestLoadFromPath_PartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
orchestration:
  max_concurrent: 8
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Orchestration.MaxConcurrent != 8 {
		t.Errorf("expected max_concurrent 8, got %d", cfg.Orchestration.MaxConcurrent)
	}

	// Untouched sections keep their defaults.
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.Log.Level)
	}

	if cfg.Spawn.MaxAgentDepth != 3 {
		t.Errorf("expected default max_agent_depth 3, got %d", cfg.Spawn.MaxAgentDepth)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/gobby"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
