package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zeeeepa/gobby-sub011/internal/actions"
	"github.com/Zeeeepa/gobby-sub011/internal/agent"
	"github.com/Zeeeepa/gobby-sub011/internal/config"
	"github.com/Zeeeepa/gobby-sub011/internal/orchestrator"
	"github.com/Zeeeepa/gobby-sub011/internal/spawn"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/internal/workflow"
	"github.com/Zeeeepa/gobby-sub011/internal/worktree"
)

// engine bundles the wired subsystems commands share: config, the
// project database, the workspace manager, the scheduler, and the
// workflow engine with its builtin behaviors and actions.
type engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	root       string
	db         *state.DB
	workspaces *worktree.Manager
	orch       *orchestrator.Orchestrator
	behaviors  *workflow.Registry
	executor   *actions.Executor
	source     workflow.Source
	watcher    *workflow.Watcher
	evaluator  *workflow.Evaluator
	workflows  *workflow.Manager
}

// openEngine wires everything against the enclosing project. Commands
// must call Close when done.
func openEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	root := projectRoot()
	db, err := state.OpenProject(root)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state database: %w", err)
	}

	workspaces, err := worktree.NewManager(
		resolvePath(root, cfg.Orchestration.WorktreeDir),
		root,
		cfg.Orchestration.BaseBranch,
		cfg.Orchestration.BranchPrefix,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create workspace manager: %w", err)
	}

	gate := spawn.NewGate(db, cfg.Spawn.MaxAgentDepth, cfg.Spawn.DailyBudgetUSD)
	orch := orchestrator.New(db, workspaces, gate, agent.NewSpawner(),
		orchestrator.WithAgentCommand(cfg.Agent.Command, cfg.Agent.Args),
		orchestrator.WithBranchPrefix(cfg.Orchestration.BranchPrefix),
		orchestrator.WithLogger(logger),
	)

	behaviors := workflow.NewRegistry()
	workflow.RegisterBuiltins(behaviors, db)

	executor := actions.NewExecutor(logger)
	actions.RegisterBuiltins(executor, orch)

	loader := workflow.NewLoader(workflowDirs(root, cfg), behaviors, executor, logger)
	var source workflow.Source
	var watcher *workflow.Watcher
	if cfg.Workflows.Watch {
		watcher, err = workflow.NewWatcher(loader, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load workflow definitions: %w", err)
		}
		source = watcher
	} else {
		set, err := loader.Load()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load workflow definitions: %w", err)
		}
		source = workflow.NewStaticSource(set)
	}

	return &engine{
		cfg:        cfg,
		logger:     logger,
		root:       root,
		db:         db,
		workspaces: workspaces,
		orch:       orch,
		behaviors:  behaviors,
		executor:   executor,
		source:     source,
		watcher:    watcher,
		evaluator:  workflow.NewEvaluator(db, source, behaviors, executor, logger),
		workflows:  workflow.NewManager(db, source, logger),
	}, nil
}

// Close releases the engine's resources.
func (e *engine) Close() {
	if e.watcher != nil {
		e.watcher.Close()
	}
	e.db.Close()
}

// newLogger builds the slog logger from config. Logs always go to
// stderr; stdout is reserved for command output and hook responses.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// workflowDirs returns the definition directories in load order, global
// first so project definitions shadow by name.
func workflowDirs(root string, cfg *config.Config) []string {
	userDir := filepath.Join(filepath.Dir(config.GetUserConfigPath()), "workflows")
	return []string{userDir, resolvePath(root, cfg.Workflows.Dir)}
}

// resolvePath anchors a relative config path at the project root.
func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// projectRoot returns the enclosing git repository root, falling back
// to the working directory when there is none.
func projectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root, err := findGitRoot(cwd); err == nil {
		return root
	}
	return cwd
}

// findGitRoot finds the root of the git repository starting from the given directory.
func findGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a git repository")
		}
		dir = parent
	}
}
