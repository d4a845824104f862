// Package config handles configuration loading and management for Gobby.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for Gobby.
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Workflows     WorkflowsConfig     `mapstructure:"workflows"`
	Orchestration OrchestrationConfig `mapstructure:"orchestration"`
	Spawn         SpawnConfig         `mapstructure:"spawn"`
	Agent         AgentConfig         `mapstructure:"agent"`
}

// LogConfig holds structured-logging settings.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `mapstructure:"level"`
	// Format selects the handler: text or json.
	Format string `mapstructure:"format"`
}

// WorkflowsConfig holds workflow definition loading settings.
type WorkflowsConfig struct {
	// Dir is the directory holding workflow definition YAML files,
	// relative to the project root unless absolute.
	Dir string `mapstructure:"dir"`
	// Watch enables reloading definitions when files change.
	Watch bool `mapstructure:"watch"`
}

// OrchestrationConfig holds task dispatch settings.
type OrchestrationConfig struct {
	// MaxConcurrent is the maximum number of simultaneously claimed
	// worktrees per project.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// WorktreeDir is where task worktrees are created, relative to
	// the project root unless absolute.
	WorktreeDir string `mapstructure:"worktree_dir"`
	// BranchPrefix names fallback branches when a task has no usable title.
	BranchPrefix string `mapstructure:"branch_prefix"`
	// BaseBranch is the branch worktrees fork from. Empty means HEAD.
	BaseBranch string `mapstructure:"base_branch"`
}

// SpawnConfig holds agent spawn admission settings.
type SpawnConfig struct {
	// MaxAgentDepth is the deepest allowed spawn recursion.
	MaxAgentDepth int `mapstructure:"max_agent_depth"`
	// DailyBudgetUSD caps aggregate spend over the trailing day.
	// Zero means unlimited.
	DailyBudgetUSD float64 `mapstructure:"daily_budget_usd"`
}

// AgentConfig holds settings for the agent processes Gobby launches.
type AgentConfig struct {
	// Command is the agent executable to spawn.
	Command string `mapstructure:"command"`
	// Args are extra arguments passed to every spawned agent.
	Args []string `mapstructure:"args"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (GOBBY_*)
// 2. Project config (.gobby.yaml in current directory or parent)
// 3. User config (~/.config/gobby/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	// Map specific environment variables
	v.BindEnv("log.level", "GOBBY_LOG_LEVEL")
	v.BindEnv("orchestration.max_concurrent", "GOBBY_MAX_CONCURRENT")
	v.BindEnv("spawn.max_agent_depth", "GOBBY_MAX_AGENT_DEPTH")
	v.BindEnv("spawn.daily_budget_usd", "GOBBY_DAILY_BUDGET_USD")
	v.BindEnv("agent.command", "GOBBY_AGENT_COMMAND")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("workflows.dir", cfg.Workflows.Dir)
	v.Set("workflows.watch", cfg.Workflows.Watch)
	v.Set("orchestration.max_concurrent", cfg.Orchestration.MaxConcurrent)
	v.Set("orchestration.worktree_dir", cfg.Orchestration.WorktreeDir)
	v.Set("orchestration.branch_prefix", cfg.Orchestration.BranchPrefix)
	v.Set("orchestration.base_branch", cfg.Orchestration.BaseBranch)
	v.Set("spawn.max_agent_depth", cfg.Spawn.MaxAgentDepth)
	v.Set("spawn.daily_budget_usd", cfg.Spawn.DailyBudgetUSD)
	v.Set("agent.command", cfg.Agent.Command)
	v.Set("agent.args", cfg.Agent.Args)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Workflow defaults
	v.SetDefault("workflows.dir", filepath.Join(".gobby", "workflows"))
	v.SetDefault("workflows.watch", false)

	// Orchestration defaults
	v.SetDefault("orchestration.max_concurrent", 3)
	v.SetDefault("orchestration.worktree_dir", filepath.Join(".gobby", "worktrees"))
	v.SetDefault("orchestration.branch_prefix", "gobby")
	v.SetDefault("orchestration.base_branch", "")

	// Spawn gate defaults
	v.SetDefault("spawn.max_agent_depth", 3)
	v.SetDefault("spawn.daily_budget_usd", 0.0)

	// Agent defaults
	v.SetDefault("agent.command", "claude")
	v.SetDefault("agent.args", []string{})
}

// getUserConfigDir returns the XDG config directory for Gobby.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gobby")
	}

	// Fall back to ~/.config/gobby
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "gobby")
	}
	return filepath.Join(home, ".config", "gobby")
}

// findProjectConfig searches for .gobby.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".gobby.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Workflows: WorkflowsConfig{
			Dir:   filepath.Join(".gobby", "workflows"),
			Watch: false,
		},
		Orchestration: OrchestrationConfig{
			MaxConcurrent: 3,
			WorktreeDir:   filepath.Join(".gobby", "worktrees"),
			BranchPrefix:  "gobby",
			BaseBranch:    "",
		},
		Spawn: SpawnConfig{
			MaxAgentDepth:  3,
			DailyBudgetUSD: 0,
		},
		Agent: AgentConfig{
			Command: "claude",
			Args:    nil,
		},
	}
}
