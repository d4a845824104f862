package models

import "time"

// WorktreeStatus represents the current state of a worktree.
type WorktreeStatus string

const (
	// WorktreeStatusActive indicates the worktree exists on disk.
	WorktreeStatusActive WorktreeStatus = "active"
	// WorktreeStatusReleased indicates the worktree has been removed.
	WorktreeStatusReleased WorktreeStatus = "released"
)

// Valid returns true if the status is a known value.
func (s WorktreeStatus) Valid() bool {
	switch s {
	case WorktreeStatusActive, WorktreeStatusReleased:
		return true
	default:
		return false
	}
}

// Worktree represents an isolated git workspace assigned to one task.
// A worktree with a non-empty AgentSessionID and active status is
// claimed, which is the unit of concurrency accounting.
type Worktree struct {
	// ID is the unique identifier for this worktree.
	ID string `json:"id"`
	// TaskID is the task this worktree was created for.
	TaskID string `json:"task_id"`
	// Branch is the git branch checked out in the worktree.
	Branch string `json:"branch"`
	// Path is the absolute filesystem path of the worktree.
	Path string `json:"path"`
	// Status is the current state of the worktree.
	Status WorktreeStatus `json:"status"`
	// AgentSessionID is the session of the agent occupying the
	// worktree. Empty means the worktree is unclaimed.
	AgentSessionID string `json:"agent_session_id,omitempty"`
	// CreatedAt is when the worktree was created.
	CreatedAt time.Time `json:"created_at"`
	// ReleasedAt is when the worktree was released, if applicable.
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// Claimed returns true if an agent session currently occupies the worktree.
func (w *Worktree) Claimed() bool {
	return w.Status == WorktreeStatusActive && w.AgentSessionID != ""
}
