package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Worktree CRUD operations

// CreateWorktree inserts a new worktree record. New worktrees start
// active and unclaimed.
func (db *DB) CreateWorktree(w *models.Worktree) error {
	_, err := db.Exec(`
		INSERT INTO worktrees (id, task_id, branch, path, status, agent_session_id, created_at, released_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.TaskID, w.Branch, w.Path, string(w.Status), nullIfEmpty(w.AgentSessionID),
		formatTime(w.CreatedAt), nil)
	if err != nil {
		return fmt.Errorf("create worktree: %w", err)
	}
	return nil
}

// GetWorktree retrieves a worktree by ID.
func (db *DB) GetWorktree(id string) (*models.Worktree, error) {
	row := db.QueryRow(`
		SELECT id, task_id, branch, path, status, agent_session_id, created_at, released_at
		FROM worktrees WHERE id = ?
	`, id)

	w, err := scanWorktree(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("worktree %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	return w, nil
}

// GetWorktreeByTask retrieves the non-released worktree for a task, if
// any. At most one exists per task.
func (db *DB) GetWorktreeByTask(taskID string) (*models.Worktree, error) {
	row := db.QueryRow(`
		SELECT id, task_id, branch, path, status, agent_session_id, created_at, released_at
		FROM worktrees WHERE task_id = ? AND status != 'released'
	`, taskID)

	w, err := scanWorktree(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("worktree for task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get worktree by task: %w", err)
	}
	return w, nil
}

// ClaimWorktree binds a worktree to an agent session. The claim is what
// the concurrency limit counts.
func (db *DB) ClaimWorktree(id, agentSessionID string) error {
	result, err := db.Exec(`
		UPDATE worktrees SET agent_session_id = ? WHERE id = ? AND status = 'active'
	`, agentSessionID, id)
	if err != nil {
		return fmt.Errorf("claim worktree: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim worktree: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("active worktree %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReleaseWorktree marks a worktree released and clears its claim.
func (db *DB) ReleaseWorktree(id string) error {
	result, err := db.Exec(`
		UPDATE worktrees SET status = 'released', agent_session_id = NULL, released_at = ?
		WHERE id = ?
	`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("release worktree: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release worktree: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("worktree %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountClaimedWorktrees counts worktrees currently bound to an agent
// session. This is always read from storage, never cached, so the count
// stays correct across restarts and concurrent schedulers.
func (db *DB) CountClaimedWorktrees() (int, error) {
	row := db.QueryRow(`
		SELECT COUNT(*) FROM worktrees
		WHERE status = 'active' AND agent_session_id IS NOT NULL AND agent_session_id != ''
	`)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count claimed worktrees: %w", err)
	}
	return count, nil
}

// ListActiveWorktrees lists all non-released worktrees.
func (db *DB) ListActiveWorktrees() ([]models.Worktree, error) {
	rows, err := db.Query(`
		SELECT id, task_id, branch, path, status, agent_session_id, created_at, released_at
		FROM worktrees WHERE status = 'active' ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list active worktrees: %w", err)
	}
	defer rows.Close()

	var worktrees []models.Worktree
	for rows.Next() {
		w, err := scanWorktree(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan worktree: %w", err)
		}
		worktrees = append(worktrees, *w)
	}
	return worktrees, nil
}

// scanWorktree scans one worktree row via the given scan func.
func scanWorktree(scan func(dest ...any) error) (*models.Worktree, error) {
	var w models.Worktree
	var agentSessionID sql.NullString
	var createdAt string
	var releasedAt sql.NullString
	err := scan(&w.ID, &w.TaskID, &w.Branch, &w.Path, &w.Status, &agentSessionID, &createdAt, &releasedAt)
	if err != nil {
		return nil, err
	}

	if agentSessionID.Valid {
		w.AgentSessionID = agentSessionID.String
	}
	w.CreatedAt, _ = parseTime(createdAt)
	w.ReleasedAt = parseNullableTime(releasedAt)
	return &w, nil
}
