package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusOpen indicates the task has not started.
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusInProgress indicates an agent is working on the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusClosed indicates the task is finished.
	TaskStatusClosed TaskStatus = "closed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusClosed:
		return true
	default:
		return false
	}
}

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Seq is the monotonically increasing task number used in branch names.
	Seq int64 `json:"seq"`
	// ParentID is the ID of the parent task, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority orders ready tasks; lower values dispatch first.
	Priority int `json:"priority"`
	// DependsOn lists task IDs that must close before this task is ready.
	DependsOn []string `json:"depends_on,omitempty"`
	// Branch overrides the derived workspace branch name when set.
	Branch string `json:"branch,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// ClosedAt is when the task was closed, if applicable.
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// Ready returns true if the task is open and every dependency in closed
// is satisfied. The caller supplies the set of closed task IDs.
func (t *Task) Ready(closed map[string]bool) bool {
	if t.Status != TaskStatusOpen {
		return false
	}
	for _, dep := range t.DependsOn {
		if !closed[dep] {
			return false
		}
	}
	return true
}
