// Package orchestrator dispatches ready tasks into isolated agent
// workspaces under concurrency and budget limits.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/Zeeeepa/gobby-sub011/internal/agent"
	"github.com/Zeeeepa/gobby-sub011/internal/graph"
	"github.com/Zeeeepa/gobby-sub011/internal/spawn"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/internal/worktree"
)

// DefaultMaxConcurrent bounds dispatch when the caller passes no limit.
const DefaultMaxConcurrent = 3

// ReasonMaxConcurrent is recorded for ready tasks beyond the available slots.
const ReasonMaxConcurrent = "max_concurrent limit reached"

// Store is the durable state the scheduler reads and writes.
type Store interface {
	state.TaskStore
	state.WorktreeStore
	state.SessionStore
	state.RunStore
}

// Admission pre-checks whether a session may spawn another agent.
type Admission interface {
	CanSpawn(ctx context.Context, parentSessionID string, estimatedCost float64) (spawn.Decision, error)
}

// Orchestrator selects ready descendant tasks and launches one agent
// per task, each in its own worktree. A call dispatches sequentially;
// the running count is recomputed from the store so concurrent callers
// and restarts stay consistent.
type Orchestrator struct {
	store      Store
	workspaces worktree.Workspaces
	gate       Admission
	spawner    agent.Spawner
	resolver   *graph.Resolver
	logger     *slog.Logger

	agentCommand string
	agentArgs    []string
	branchPrefix string
	costEstimate float64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithAgentCommand sets the agent binary and its base arguments.
func WithAgentCommand(command string, args []string) Option {
	return func(o *Orchestrator) {
		o.agentCommand = command
		o.agentArgs = args
	}
}

// WithBranchPrefix sets the prefix for branches without task context.
func WithBranchPrefix(prefix string) Option {
	return func(o *Orchestrator) { o.branchPrefix = prefix }
}

// WithCostEstimate sets the per-spawn cost estimate handed to the gate.
func WithCostEstimate(usd float64) Option {
	return func(o *Orchestrator) { o.costEstimate = usd }
}

// New creates an Orchestrator over the given collaborators.
func New(store Store, workspaces worktree.Workspaces, gate Admission, spawner agent.Spawner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		workspaces:   workspaces,
		gate:         gate,
		spawner:      spawner,
		resolver:     graph.NewResolver(store),
		logger:       slog.Default().With("component", "orchestrator"),
		agentCommand: "claude",
		branchPrefix: "gobby",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
