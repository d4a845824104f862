// Package state provides SQLite-based state management for Gobby.
package state

import (
	"io"
	"time"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// SessionStore handles session-related persistence operations.
type SessionStore interface {
	EnsureSession(id, parentID string, depth int) (*models.Session, error)
	GetSession(id string) (*models.Session, error)
	AddSessionCost(id string, delta float64) error
	SpentSince(cutoff time.Time) (float64, error)
}

// VariableStore handles session-variable persistence operations.
type VariableStore interface {
	SetSessionVariable(sessionID, key string, value any) error
	SetSessionVariableIfAbsent(sessionID, key string, value any) (bool, error)
	GetSessionVariable(sessionID, key string) (any, bool, error)
	GetSessionVariables(sessionID string) (map[string]any, error)
	DeleteSessionVariables(sessionID string, keys []string) error
}

// InstanceStore handles workflow-instance persistence operations.
type InstanceStore interface {
	CreateInstance(inst *WorkflowInstance) error
	GetInstance(sessionID, workflowName string) (*WorkflowInstance, error)
	SaveInstance(inst *WorkflowInstance) error
	ListInstances(sessionID string) ([]WorkflowInstance, error)
	ListEnabledInstances(sessionID string) ([]WorkflowInstance, error)
}

// TaskStore handles task-related persistence operations.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTaskStatus(id string, status models.TaskStatus) error
	ListTasks(status *models.TaskStatus) ([]models.Task, error)
	ListTasksByParent(parentID string) ([]models.Task, error)
	ListSubtree(rootID string) ([]models.Task, error)
}

// WorktreeStore handles worktree-claim persistence operations.
type WorktreeStore interface {
	CreateWorktree(w *models.Worktree) error
	GetWorktree(id string) (*models.Worktree, error)
	GetWorktreeByTask(taskID string) (*models.Worktree, error)
	ClaimWorktree(id, agentSessionID string) error
	ReleaseWorktree(id string) error
	CountClaimedWorktrees() (int, error)
	ListActiveWorktrees() ([]models.Worktree, error)
}

// RunStore handles agent-run persistence operations.
type RunStore interface {
	CreateAgentRun(r *models.AgentRun) error
	GetAgentRun(id string) (*models.AgentRun, error)
	GetAgentRunBySession(childSessionID string) (*models.AgentRun, error)
	FinishAgentRun(id string, status models.AgentRunStatus, costUSD float64) error
	ListAgentRunsByParent(parentSessionID string) ([]models.AgentRun, error)
	ListAgentRunsByTask(taskID string) ([]models.AgentRun, error)
	HasLiveAgent(agentSessionID string) (bool, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for state persistence.
// This interface allows the orchestrator and workflow engine to work
// with any state backend without depending on the concrete SQLite
// implementation. It composes focused sub-interfaces for better
// modularity.
type Store interface {
	io.Closer
	Migrator
	SessionStore
	VariableStore
	InstanceStore
	TaskStore
	WorktreeStore
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ SessionStore  = (*DB)(nil)
	_ VariableStore = (*DB)(nil)
	_ InstanceStore = (*DB)(nil)
	_ TaskStore     = (*DB)(nil)
	_ WorktreeStore = (*DB)(nil)
	_ RunStore      = (*DB)(nil)
)
