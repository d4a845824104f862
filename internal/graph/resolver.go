package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// TaskSource is the slice of the task store the resolver reads from.
type TaskSource interface {
	GetTask(id string) (*models.Task, error)
	ListSubtree(rootID string) ([]models.Task, error)
}

// Resolver computes which descendants of a task are ready to dispatch.
// It is read-only: it never creates or mutates tasks.
type Resolver struct {
	tasks TaskSource
}

// NewResolver creates a resolver backed by the given task source.
func NewResolver(tasks TaskSource) *Resolver {
	return &Resolver{tasks: tasks}
}

// ReadyTasks returns the descendants of parentID that are open with
// every dependency closed, ordered by (priority, creation). The parent
// itself is the unit being decomposed and is never a candidate.
//
// Dependencies pointing outside the subtree are looked up directly; a
// dependency that does not exist at all blocks its task rather than
// failing the batch.
func (r *Resolver) ReadyTasks(parentID string) ([]models.Task, error) {
	subtree, err := r.tasks.ListSubtree(parentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Task, len(subtree))
	for i := range subtree {
		byID[subtree[i].ID] = &subtree[i]
	}

	// Resolve dependencies that point outside the subtree. A vanished
	// dependency marks its task blocked instead of erroring, so one bad
	// edge cannot abort the whole batch.
	blocked := make(map[string]bool)
	for _, t := range subtree {
		if t.ID == parentID {
			continue
		}
		for _, depID := range t.DependsOn {
			if _, known := byID[depID]; known {
				continue
			}
			dep, err := r.tasks.GetTask(depID)
			if errors.Is(err, state.ErrNotFound) {
				blocked[t.ID] = true
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("resolve dependency %s: %w", depID, err)
			}
			byID[dep.ID] = dep
		}
	}

	// Validate the known edges for cycles. Edges to tasks we could not
	// resolve are stripped first; the tasks owning them are already
	// blocked above.
	nodes := make([]*models.Task, 0, len(byID))
	for _, t := range byID {
		known := t.DependsOn[:0:0]
		for _, depID := range t.DependsOn {
			if _, ok := byID[depID]; ok {
				known = append(known, depID)
			}
		}
		node := *t
		node.DependsOn = known
		nodes = append(nodes, &node)
	}

	g := New()
	if err := g.Build(nodes); err != nil {
		return nil, err
	}

	var ready []models.Task
	for _, id := range g.GetReady() {
		if id == parentID || blocked[id] {
			continue
		}
		// Only descendants of the parent are candidates; resolved
		// external dependencies are context, not output.
		t, inSubtree := subtreeMember(subtree, id)
		if !inSubtree {
			continue
		}
		ready = append(ready, *t)
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].Seq < ready[j].Seq
	})

	return ready, nil
}

// Descendants returns every task below parentID, excluding the parent
// itself, in subtree walk order.
func (r *Resolver) Descendants(parentID string) ([]models.Task, error) {
	subtree, err := r.tasks.ListSubtree(parentID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Task, 0, len(subtree))
	for _, t := range subtree {
		if t.ID == parentID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Summary counts the descendants of a task by status.
type Summary struct {
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Closed     int `json:"closed"`
}

// Summarize tallies the descendants of parentID by status.
func (r *Resolver) Summarize(parentID string) (Summary, error) {
	descendants, err := r.Descendants(parentID)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, t := range descendants {
		switch t.Status {
		case models.TaskStatusOpen:
			s.Open++
		case models.TaskStatusInProgress:
			s.InProgress++
		case models.TaskStatusClosed:
			s.Closed++
		}
	}
	return s, nil
}

// subtreeMember finds a task by ID within the subtree slice.
func subtreeMember(subtree []models.Task, id string) (*models.Task, bool) {
	for i := range subtree {
		if subtree[i].ID == id {
			return &subtree[i], true
		}
	}
	return nil, false
}
