package models

import "time"

// AgentRunStatus represents the current state of a spawned agent process.
type AgentRunStatus string

const (
	// AgentRunStatusLaunched indicates the agent process was started.
	AgentRunStatusLaunched AgentRunStatus = "launched"
	// AgentRunStatusExited indicates the agent process ended on its own.
	AgentRunStatusExited AgentRunStatus = "exited"
	// AgentRunStatusCancelled indicates the agent process was killed.
	AgentRunStatusCancelled AgentRunStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s AgentRunStatus) Valid() bool {
	switch s {
	case AgentRunStatusLaunched, AgentRunStatusExited, AgentRunStatusCancelled:
		return true
	default:
		return false
	}
}

// AgentRun represents one spawned agent process working a task.
type AgentRun struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// TaskID is the task the agent is working on.
	TaskID string `json:"task_id"`
	// ParentSessionID is the session that requested the spawn.
	ParentSessionID string `json:"parent_session_id"`
	// ChildSessionID is the session assigned to the spawned agent.
	ChildSessionID string `json:"child_session_id"`
	// Depth is the recursion depth of the spawned agent, one more
	// than the parent session's depth.
	Depth int `json:"depth"`
	// Status is the current state of the run.
	Status AgentRunStatus `json:"status"`
	// PID is the process ID of the running agent.
	PID int `json:"pid,omitempty"`
	// EstimatedCost is the projected spend in dollars for this run.
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
	// CostUSD is the actual spend in dollars recorded for this run.
	CostUSD float64 `json:"cost_usd"`
	// StartedAt is when the process was launched.
	StartedAt time.Time `json:"started_at"`
	// ExitedAt is when the process ended, if applicable.
	ExitedAt *time.Time `json:"exited_at,omitempty"`
}

// Session represents one agent conversation known to the daemon.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// ParentID is the session that spawned this one, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Depth is the spawn recursion depth; a root session has depth 0.
	Depth int `json:"depth"`
	// CostUSD is the spend in dollars attributed to this session.
	CostUSD float64 `json:"cost_usd"`
	// CreatedAt is when the session was first seen.
	CreatedAt time.Time `json:"created_at"`
}
