// Settings access by dot-notation key, used by the config command.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrUnknownKey is returned for a settings key that does not exist.
var ErrUnknownKey = errors.New("unknown config key")

// setting binds one dot-notation key to its field on Config. Only
// scalar settings are addressable this way; list values like agent.args
// are edited in the config file directly.
type setting struct {
	get func(cfg *Config) string
	set func(cfg *Config, value string) error
}

var settings = map[string]setting{
	"log.level": {
		get: func(cfg *Config) string { return cfg.Log.Level },
		set: func(cfg *Config, v string) error { cfg.Log.Level = v; return nil },
	},
	"log.format": {
		get: func(cfg *Config) string { return cfg.Log.Format },
		set: func(cfg *Config, v string) error { cfg.Log.Format = v; return nil },
	},
	"workflows.dir": {
		get: func(cfg *Config) string { return cfg.Workflows.Dir },
		set: func(cfg *Config, v string) error { cfg.Workflows.Dir = v; return nil },
	},
	"workflows.watch": {
		get: func(cfg *Config) string { return strconv.FormatBool(cfg.Workflows.Watch) },
		set: func(cfg *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("workflows.watch wants true or false: %w", err)
			}
			cfg.Workflows.Watch = b
			return nil
		},
	},
	"orchestration.max_concurrent": {
		get: func(cfg *Config) string { return strconv.Itoa(cfg.Orchestration.MaxConcurrent) },
		set: func(cfg *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("orchestration.max_concurrent wants an integer: %w", err)
			}
			cfg.Orchestration.MaxConcurrent = n
			return nil
		},
	},
	"orchestration.worktree_dir": {
		get: func(cfg *Config) string { return cfg.Orchestration.WorktreeDir },
		set: func(cfg *Config, v string) error { cfg.Orchestration.WorktreeDir = v; return nil },
	},
	"orchestration.branch_prefix": {
		get: func(cfg *Config) string { return cfg.Orchestration.BranchPrefix },
		set: func(cfg *Config, v string) error { cfg.Orchestration.BranchPrefix = v; return nil },
	},
	"orchestration.base_branch": {
		get: func(cfg *Config) string { return cfg.Orchestration.BaseBranch },
		set: func(cfg *Config, v string) error { cfg.Orchestration.BaseBranch = v; return nil },
	},
	"spawn.max_agent_depth": {
		get: func(cfg *Config) string { return strconv.Itoa(cfg.Spawn.MaxAgentDepth) },
		set: func(cfg *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("spawn.max_agent_depth wants an integer: %w", err)
			}
			cfg.Spawn.MaxAgentDepth = n
			return nil
		},
	},
	"spawn.daily_budget_usd": {
		get: func(cfg *Config) string { return strconv.FormatFloat(cfg.Spawn.DailyBudgetUSD, 'f', -1, 64) },
		set: func(cfg *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("spawn.daily_budget_usd wants a number: %w", err)
			}
			cfg.Spawn.DailyBudgetUSD = f
			return nil
		},
	},
	"agent.command": {
		get: func(cfg *Config) string { return cfg.Agent.Command },
		set: func(cfg *Config, v string) error { cfg.Agent.Command = v; return nil },
	},
}

// Keys returns the addressable settings keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the current value of a settings key as a string.
func Get(cfg *Config, key string) (string, error) {
	s, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.get(cfg), nil
}

// Set updates a settings key from its string form.
func Set(cfg *Config, key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.set(cfg, value)
}
