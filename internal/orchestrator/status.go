package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zeeeepa/gobby-sub011/internal/graph"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// TaskAgentStatus reports one in_progress task's worktree and whether a
// live agent currently holds it.
type TaskAgentStatus struct {
	TaskID         string `json:"task_id"`
	WorktreeID     string `json:"worktree_id,omitempty"`
	HasActiveAgent bool   `json:"has_active_agent"`
}

// Status summarizes the descendants of a parent task.
type Status struct {
	Summary         graph.Summary     `json:"summary"`
	InProgressTasks []TaskAgentStatus `json:"in_progress_tasks"`
}

// GetStatus reports descendant counts by status and, for each
// in_progress task, its worktree and agent liveness. A task whose agent
// died out-of-band shows has_active_agent=false; nothing is repaired
// here.
func (o *Orchestrator) GetStatus(ctx context.Context, parentTaskID string) (*Status, error) {
	summary, err := o.resolver.Summarize(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("summarize tasks: %w", err)
	}

	descendants, err := o.resolver.Descendants(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}

	st := &Status{
		Summary:         summary,
		InProgressTasks: []TaskAgentStatus{},
	}
	for _, t := range descendants {
		if t.Status != models.TaskStatusInProgress {
			continue
		}

		entry := TaskAgentStatus{TaskID: t.ID}
		wt, err := o.store.GetWorktreeByTask(t.ID)
		switch {
		case err == nil:
			entry.WorktreeID = wt.ID
			live, err := o.store.HasLiveAgent(wt.AgentSessionID)
			if err != nil {
				return nil, fmt.Errorf("check agent liveness for task %s: %w", t.ID, err)
			}
			entry.HasActiveAgent = live
		case !errors.Is(err, state.ErrNotFound):
			return nil, fmt.Errorf("look up worktree for task %s: %w", t.ID, err)
		}

		st.InProgressTasks = append(st.InProgressTasks, entry)
	}

	return st, nil
}
