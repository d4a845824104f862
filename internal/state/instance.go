package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowInstance is the durable per-session state of one named
// workflow: whether it is enabled, which step it is on, and its
// workflow-scoped variables. Instances are never hard-deleted so the
// activation history stays auditable.
type WorkflowInstance struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	WorkflowName string         `json:"workflow_name"`
	Enabled      bool           `json:"enabled"`
	Priority     int            `json:"priority"`
	CurrentStep  string         `json:"current_step"`
	Variables    map[string]any `json:"variables"`
	ActivatedAt  time.Time      `json:"activated_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Workflow instance CRUD operations

// CreateInstance inserts a new workflow instance.
func (db *DB) CreateInstance(inst *WorkflowInstance) error {
	variables, err := encodeVariables(inst.Variables)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO workflow_instances (id, session_id, workflow_name, enabled, priority, current_step, variables, activated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inst.ID, inst.SessionID, inst.WorkflowName, boolToInt(inst.Enabled), inst.Priority,
		inst.CurrentStep, variables, formatTime(inst.ActivatedAt), formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create workflow instance: %w", err)
	}
	return nil
}

// GetInstance retrieves the instance for a (session, workflow) pair.
func (db *DB) GetInstance(sessionID, workflowName string) (*WorkflowInstance, error) {
	row := db.QueryRow(`
		SELECT id, session_id, workflow_name, enabled, priority, current_step, variables, activated_at, created_at, updated_at
		FROM workflow_instances WHERE session_id = ? AND workflow_name = ?
	`, sessionID, workflowName)

	inst, err := scanInstance(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow instance %s/%s: %w", sessionID, workflowName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow instance: %w", err)
	}
	return inst, nil
}

// SaveInstance persists the mutable fields of an instance.
func (db *DB) SaveInstance(inst *WorkflowInstance) error {
	variables, err := encodeVariables(inst.Variables)
	if err != nil {
		return err
	}

	inst.UpdatedAt = time.Now()
	result, err := db.Exec(`
		UPDATE workflow_instances
		SET enabled = ?, priority = ?, current_step = ?, variables = ?, activated_at = ?, updated_at = ?
		WHERE id = ?
	`, boolToInt(inst.Enabled), inst.Priority, inst.CurrentStep, variables,
		formatTime(inst.ActivatedAt), formatTime(inst.UpdatedAt), inst.ID)
	if err != nil {
		return fmt.Errorf("save workflow instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save workflow instance: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow instance %s: %w", inst.ID, ErrNotFound)
	}
	return nil
}

// ListInstances lists all workflow instances for a session ordered by
// (priority, workflow_name).
func (db *DB) ListInstances(sessionID string) ([]WorkflowInstance, error) {
	rows, err := db.Query(`
		SELECT id, session_id, workflow_name, enabled, priority, current_step, variables, activated_at, created_at, updated_at
		FROM workflow_instances WHERE session_id = ?
		ORDER BY priority, workflow_name
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list workflow instances: %w", err)
	}
	defer rows.Close()

	var instances []WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan workflow instance: %w", err)
		}
		instances = append(instances, *inst)
	}
	return instances, nil
}

// ListEnabledInstances lists the enabled workflow instances for a
// session ordered by (priority, workflow_name).
func (db *DB) ListEnabledInstances(sessionID string) ([]WorkflowInstance, error) {
	rows, err := db.Query(`
		SELECT id, session_id, workflow_name, enabled, priority, current_step, variables, activated_at, created_at, updated_at
		FROM workflow_instances WHERE session_id = ? AND enabled = 1
		ORDER BY priority, workflow_name
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list enabled workflow instances: %w", err)
	}
	defer rows.Close()

	var instances []WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan workflow instance: %w", err)
		}
		instances = append(instances, *inst)
	}
	return instances, nil
}

// scanInstance scans one workflow instance row via the given scan func.
func scanInstance(scan func(dest ...any) error) (*WorkflowInstance, error) {
	var inst WorkflowInstance
	var enabled int
	var variables string
	var activatedAt, createdAt, updatedAt string
	err := scan(&inst.ID, &inst.SessionID, &inst.WorkflowName, &enabled, &inst.Priority,
		&inst.CurrentStep, &variables, &activatedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	inst.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(variables), &inst.Variables); err != nil {
		return nil, fmt.Errorf("decode instance variables: %w", err)
	}
	if inst.Variables == nil {
		inst.Variables = make(map[string]any)
	}
	inst.ActivatedAt, _ = parseTime(activatedAt)
	inst.CreatedAt, _ = parseTime(createdAt)
	inst.UpdatedAt, _ = parseTime(updatedAt)
	return &inst, nil
}

// encodeVariables JSON-encodes an instance variable map, treating nil as
// an empty map so the column is never NULL.
func encodeVariables(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	encoded, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("encode instance variables: %w", err)
	}
	return string(encoded), nil
}

// boolToInt converts a bool to the 0/1 form SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
