package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Task CRUD operations

// CreateTask inserts a new task. The task sequence number is assigned
// here, inside a transaction, so concurrent creators never collide.
func (db *DB) CreateTask(t *models.Task) error {
	dependsOn, err := json.Marshal(t.DependsOn)
	if err != nil {
		return fmt.Errorf("encode depends_on: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		if t.Seq == 0 {
			row := tx.QueryRow("SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks")
			if err := row.Scan(&t.Seq); err != nil {
				return fmt.Errorf("assign task seq: %w", err)
			}
		}

		_, err := tx.Exec(`
			INSERT INTO tasks (id, seq, parent_id, title, description, status, priority, depends_on, branch, created_at, closed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Seq, nullIfEmpty(t.ParentID), t.Title, t.Description, string(t.Status),
			t.Priority, string(dependsOn), nullIfEmpty(t.Branch), formatTime(t.CreatedAt), nil)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, seq, parent_id, title, description, status, priority, depends_on, branch, created_at, closed_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus transitions a task to the given status. Closing a
// task records the close time.
func (db *DB) UpdateTaskStatus(id string, status models.TaskStatus) error {
	var closedAt *string
	if status == models.TaskStatusClosed {
		s := formatTime(time.Now())
		closedAt = &s
	}

	result, err := db.Exec(`
		UPDATE tasks SET status = ?, closed_at = ? WHERE id = ?
	`, string(status), closedAt, id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTasks lists all tasks, optionally filtered by status, ordered by
// creation.
func (db *DB) ListTasks(status *models.TaskStatus) ([]models.Task, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, seq, parent_id, title, description, status, priority, depends_on, branch, created_at, closed_at
			FROM tasks WHERE status = ? ORDER BY seq
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, seq, parent_id, title, description, status, priority, depends_on, branch, created_at, closed_at
			FROM tasks ORDER BY seq
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListTasksByParent lists all tasks with a given parent, ordered by
// creation.
func (db *DB) ListTasksByParent(parentID string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT id, seq, parent_id, title, description, status, priority, depends_on, branch, created_at, closed_at
		FROM tasks WHERE parent_id = ? ORDER BY seq
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by parent: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListSubtree returns the task with the given ID plus all of its
// descendants, breadth-first. The root is always first.
func (db *DB) ListSubtree(rootID string) ([]models.Task, error) {
	root, err := db.GetTask(rootID)
	if err != nil {
		return nil, err
	}

	tasks := []models.Task{*root}
	queue := []string{rootID}
	seen := map[string]bool{rootID: true}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := db.ListTasksByParent(id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			tasks = append(tasks, child)
			queue = append(queue, child.ID)
		}
	}

	return tasks, nil
}

// scanTask scans one task row via the given scan func.
func scanTask(scan func(dest ...any) error) (*models.Task, error) {
	var t models.Task
	var parentID, description, dependsOn, branch sql.NullString
	var createdAt string
	var closedAt sql.NullString
	err := scan(&t.ID, &t.Seq, &parentID, &t.Title, &description, &t.Status,
		&t.Priority, &dependsOn, &branch, &createdAt, &closedAt)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		t.ParentID = parentID.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if dependsOn.Valid {
		json.Unmarshal([]byte(dependsOn.String), &t.DependsOn)
	}
	if branch.Valid {
		t.Branch = branch.String
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.ClosedAt = parseNullableTime(closedAt)
	return &t, nil
}

// scanTasks scans task rows into a slice.
func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// nullIfEmpty maps an empty string to NULL for optional text columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
