package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Agent run CRUD operations

// CreateAgentRun inserts a new agent run record.
func (db *DB) CreateAgentRun(r *models.AgentRun) error {
	var pid any
	if r.PID > 0 {
		pid = r.PID
	}

	_, err := db.Exec(`
		INSERT INTO agent_runs (id, task_id, parent_session_id, child_session_id, depth, status, pid, estimated_cost, cost_usd, started_at, exited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.TaskID, r.ParentSessionID, r.ChildSessionID, r.Depth, string(r.Status),
		pid, r.EstimatedCost, r.CostUSD, formatTime(r.StartedAt), nil)
	if err != nil {
		return fmt.Errorf("create agent run: %w", err)
	}
	return nil
}

// GetAgentRun retrieves an agent run by ID.
func (db *DB) GetAgentRun(id string) (*models.AgentRun, error) {
	row := db.QueryRow(`
		SELECT id, task_id, parent_session_id, child_session_id, depth, status, pid, estimated_cost, cost_usd, started_at, exited_at
		FROM agent_runs WHERE id = ?
	`, id)

	r, err := scanAgentRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent run: %w", err)
	}
	return r, nil
}

// GetAgentRunBySession retrieves the most recent run for a child
// session.
func (db *DB) GetAgentRunBySession(childSessionID string) (*models.AgentRun, error) {
	row := db.QueryRow(`
		SELECT id, task_id, parent_session_id, child_session_id, depth, status, pid, estimated_cost, cost_usd, started_at, exited_at
		FROM agent_runs WHERE child_session_id = ? ORDER BY started_at DESC LIMIT 1
	`, childSessionID)

	r, err := scanAgentRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent run for session %s: %w", childSessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent run by session: %w", err)
	}
	return r, nil
}

// FinishAgentRun marks a run terminal with the given status and records
// its actual cost.
func (db *DB) FinishAgentRun(id string, status models.AgentRunStatus, costUSD float64) error {
	result, err := db.Exec(`
		UPDATE agent_runs SET status = ?, cost_usd = ?, exited_at = ? WHERE id = ?
	`, string(status), costUSD, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish agent run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish agent run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("agent run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListAgentRunsByParent lists all runs spawned from a parent session,
// newest first.
func (db *DB) ListAgentRunsByParent(parentSessionID string) ([]models.AgentRun, error) {
	rows, err := db.Query(`
		SELECT id, task_id, parent_session_id, child_session_id, depth, status, pid, estimated_cost, cost_usd, started_at, exited_at
		FROM agent_runs WHERE parent_session_id = ? ORDER BY started_at DESC
	`, parentSessionID)
	if err != nil {
		return nil, fmt.Errorf("list agent runs by parent: %w", err)
	}
	defer rows.Close()

	return scanAgentRuns(rows)
}

// ListAgentRunsByTask lists all runs for a task, newest first.
func (db *DB) ListAgentRunsByTask(taskID string) ([]models.AgentRun, error) {
	rows, err := db.Query(`
		SELECT id, task_id, parent_session_id, child_session_id, depth, status, pid, estimated_cost, cost_usd, started_at, exited_at
		FROM agent_runs WHERE task_id = ? ORDER BY started_at DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list agent runs by task: %w", err)
	}
	defer rows.Close()

	return scanAgentRuns(rows)
}

// scanAgentRun scans one agent run row via the given scan func.
func scanAgentRun(scan func(dest ...any) error) (*models.AgentRun, error) {
	var r models.AgentRun
	var pid sql.NullInt64
	var startedAt string
	var exitedAt sql.NullString
	err := scan(&r.ID, &r.TaskID, &r.ParentSessionID, &r.ChildSessionID, &r.Depth,
		&r.Status, &pid, &r.EstimatedCost, &r.CostUSD, &startedAt, &exitedAt)
	if err != nil {
		return nil, err
	}

	if pid.Valid {
		r.PID = int(pid.Int64)
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.ExitedAt = parseNullableTime(exitedAt)
	return &r, nil
}

// scanAgentRuns scans agent run rows into a slice.
func scanAgentRuns(rows *sql.Rows) ([]models.AgentRun, error) {
	var runs []models.AgentRun
	for rows.Next() {
		r, err := scanAgentRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, nil
}
