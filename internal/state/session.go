package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Session CRUD operations

// EnsureSession creates a session record if one does not already exist
// and returns the stored session. Sessions are first seen at the hook
// boundary, so creation must be idempotent.
func (db *DB) EnsureSession(id, parentID string, depth int) (*models.Session, error) {
	var parent any
	if parentID != "" {
		parent = parentID
	}

	_, err := db.Exec(`
		INSERT INTO sessions (id, parent_id, depth, cost_usd, created_at)
		VALUES (?, ?, ?, 0.0, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, parent, depth, formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	return db.GetSession(id)
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.QueryRow(`
		SELECT id, parent_id, depth, cost_usd, created_at
		FROM sessions WHERE id = ?
	`, id)

	var s models.Session
	var parentID sql.NullString
	var createdAt string
	err := row.Scan(&s.ID, &parentID, &s.Depth, &s.CostUSD, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if parentID.Valid {
		s.ParentID = parentID.String
	}
	s.CreatedAt, _ = parseTime(createdAt)
	return &s, nil
}

// AddSessionCost adds spend to a session's running total.
func (db *DB) AddSessionCost(id string, delta float64) error {
	result, err := db.Exec(`
		UPDATE sessions SET cost_usd = cost_usd + ? WHERE id = ?
	`, delta, id)
	if err != nil {
		return fmt.Errorf("add session cost: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("add session cost: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// SpentSince returns the aggregate spend across sessions created at or
// after the cutoff. The spawn gate uses a trailing window rather than a
// calendar day so the budget cannot reset mid-batch at midnight.
func (db *DB) SpentSince(cutoff time.Time) (float64, error) {
	row := db.QueryRow(`
		SELECT COALESCE(SUM(cost_usd), 0.0) FROM sessions WHERE created_at >= ?
	`, formatTime(cutoff))

	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum session spend: %w", err)
	}
	return total, nil
}

// Session variable operations.
// Session variables are the cross-workflow tier: any workflow on the
// session reads and writes the same rows.

// SetSessionVariable stores a session variable, overwriting any existing
// value. Values are JSON-encoded.
func (db *DB) SetSessionVariable(sessionID, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode variable %s: %w", key, err)
	}

	_, err = db.Exec(`
		INSERT INTO session_variables (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sessionID, key, string(encoded), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set session variable: %w", err)
	}
	return nil
}

// SetSessionVariableIfAbsent stores a session variable only when no value
// exists yet for the key. Returns true if the value was written.
func (db *DB) SetSessionVariableIfAbsent(sessionID, key string, value any) (bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode variable %s: %w", key, err)
	}

	result, err := db.Exec(`
		INSERT INTO session_variables (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO NOTHING
	`, sessionID, key, string(encoded), formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("set session variable: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set session variable: %w", err)
	}
	return affected > 0, nil
}

// GetSessionVariable retrieves a single session variable. The second
// return value reports whether the key exists.
func (db *DB) GetSessionVariable(sessionID, key string) (any, bool, error) {
	row := db.QueryRow(`
		SELECT value FROM session_variables WHERE session_id = ? AND key = ?
	`, sessionID, key)

	var encoded string
	err := row.Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session variable: %w", err)
	}

	var value any
	if err := json.Unmarshal([]byte(encoded), &value); err != nil {
		return nil, false, fmt.Errorf("decode variable %s: %w", key, err)
	}
	return value, true, nil
}

// GetSessionVariables retrieves all variables for a session.
func (db *DB) GetSessionVariables(sessionID string) (map[string]any, error) {
	rows, err := db.Query(`
		SELECT key, value FROM session_variables WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session variables: %w", err)
	}
	defer rows.Close()

	vars := make(map[string]any)
	for rows.Next() {
		var key, encoded string
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, fmt.Errorf("scan session variable: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, fmt.Errorf("decode variable %s: %w", key, err)
		}
		vars[key] = value
	}
	return vars, nil
}

// DeleteSessionVariables removes the given keys from a session. Keys
// that do not exist are ignored.
func (db *DB) DeleteSessionVariables(sessionID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	return db.Transaction(func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.Exec(`
				DELETE FROM session_variables WHERE session_id = ? AND key = ?
			`, sessionID, key); err != nil {
				return fmt.Errorf("delete session variable %s: %w", key, err)
			}
		}
		return nil
	})
}
