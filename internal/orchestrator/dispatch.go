package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Zeeeepa/gobby-sub011/internal/agent"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/internal/worktree"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// SpawnedTask reports one successfully launched agent.
type SpawnedTask struct {
	TaskID     string `json:"task_id"`
	PID        int    `json:"pid"`
	WorktreeID string `json:"worktree_id"`
}

// SkippedTask reports one ready task that was not launched and why.
type SkippedTask struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of one dispatch call. Every ready task appears
// in exactly one of the two lists.
type Result struct {
	Spawned []SpawnedTask `json:"spawned"`
	Skipped []SkippedTask `json:"skipped"`
}

// OrchestrateReadyTasks dispatches the ready descendants of
// parentTaskID, at most up to maxConcurrent running agents overall.
// Failures during one task's dispatch become its skip reason; the batch
// keeps going. Each step commits independently, so partial progress
// survives an error later in the batch.
func (o *Orchestrator) OrchestrateReadyTasks(ctx context.Context, parentTaskID, parentSessionID string, maxConcurrent int) (*Result, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	// First time this session is seen it is recorded as a root.
	parent, err := o.store.EnsureSession(parentSessionID, "", 0)
	if err != nil {
		return nil, fmt.Errorf("ensure parent session: %w", err)
	}

	running, err := o.store.CountClaimedWorktrees()
	if err != nil {
		return nil, fmt.Errorf("count claimed worktrees: %w", err)
	}
	available := maxConcurrent - running
	if available < 0 {
		available = 0
	}

	candidates, err := o.resolver.ReadyTasks(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("resolve ready tasks: %w", err)
	}

	// A task already holding a non-released worktree is in flight;
	// re-dispatching it would double-spawn.
	ready := make([]models.Task, 0, len(candidates))
	for _, t := range candidates {
		_, err := o.store.GetWorktreeByTask(t.ID)
		if err == nil {
			o.logger.Debug("task already has a worktree, skipping", "task", t.ID)
			continue
		}
		if !errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("check worktree for task %s: %w", t.ID, err)
		}
		ready = append(ready, t)
	}

	o.logger.Debug("dispatch window",
		"parent_task", parentTaskID,
		"running", running,
		"available", available,
		"ready", len(ready),
	)

	result := &Result{}
	for i := range ready {
		t := &ready[i]
		if i >= available {
			result.Skipped = append(result.Skipped, SkippedTask{TaskID: t.ID, Reason: ReasonMaxConcurrent})
			continue
		}

		spawned, err := o.dispatchOne(ctx, t, parent)
		if err != nil {
			o.logger.Warn("task dispatch failed", "task", t.ID, "error", err)
			result.Skipped = append(result.Skipped, SkippedTask{TaskID: t.ID, Reason: err.Error()})
			continue
		}
		o.logger.Info("agent launched", "task", t.ID, "pid", spawned.PID, "worktree", spawned.WorktreeID)
		result.Spawned = append(result.Spawned, spawned)
	}

	return result, nil
}

// dispatchOne walks a single task through workspace allocation,
// admission, launch, and the final claim. Any failure releases what was
// allocated so far and becomes the skip reason.
func (o *Orchestrator) dispatchOne(ctx context.Context, task *models.Task, parent *models.Session) (SpawnedTask, error) {
	branch := worktree.BranchName(task, task.Branch, o.branchPrefix)

	ws, err := o.workspaces.Create(branch)
	if err != nil {
		return SpawnedTask{}, fmt.Errorf("create workspace: %w", err)
	}

	wt := &models.Worktree{
		ID:     uuid.New().String(),
		TaskID: task.ID,
		Branch: branch,
		Path:   ws.Path,
		Status: models.WorktreeStatusActive,
	}
	if err := o.store.CreateWorktree(wt); err != nil {
		o.release(ws, "")
		return SpawnedTask{}, fmt.Errorf("record worktree: %w", err)
	}
	if err := o.workspaces.Bootstrap(ws, task); err != nil {
		o.release(ws, wt.ID)
		return SpawnedTask{}, fmt.Errorf("bootstrap workspace: %w", err)
	}

	decision, err := o.gate.CanSpawn(ctx, parent.ID, o.costEstimate)
	if err != nil {
		o.release(ws, wt.ID)
		return SpawnedTask{}, fmt.Errorf("admission check: %w", err)
	}
	if !decision.Allowed {
		o.release(ws, wt.ID)
		return SpawnedTask{}, errors.New(decision.Reason)
	}

	childID := uuid.New().String()
	if _, err := o.store.EnsureSession(childID, parent.ID, parent.Depth+1); err != nil {
		o.release(ws, wt.ID)
		return SpawnedTask{}, fmt.Errorf("create child session: %w", err)
	}

	pid, err := o.spawner.Spawn(ctx, agent.LaunchSpec{
		Command:   o.agentCommand,
		Args:      o.agentArgs,
		WorkDir:   ws.Path,
		SessionID: childID,
		ParentID:  parent.ID,
		TaskID:    task.ID,
	})
	if err != nil {
		o.release(ws, wt.ID)
		return SpawnedTask{}, fmt.Errorf("launch agent: %w", err)
	}

	run := &models.AgentRun{
		ID:              uuid.New().String(),
		TaskID:          task.ID,
		ParentSessionID: parent.ID,
		ChildSessionID:  childID,
		Depth:           parent.Depth + 1,
		Status:          models.AgentRunStatusLaunched,
		PID:             pid,
		EstimatedCost:   o.costEstimate,
	}
	if err := o.store.CreateAgentRun(run); err != nil {
		// The process is already running; release the allocation and
		// surface the bookkeeping failure.
		o.logger.Warn("agent launched but run record failed", "task", task.ID, "pid", pid, "error", err)
		o.release(ws, wt.ID)
		return SpawnedTask{}, fmt.Errorf("record agent run: %w", err)
	}

	// Commit point: only a launched agent claims the worktree and moves
	// the task forward.
	if err := o.store.ClaimWorktree(wt.ID, childID); err != nil {
		return SpawnedTask{}, fmt.Errorf("claim worktree: %w", err)
	}
	if err := o.store.UpdateTaskStatus(task.ID, models.TaskStatusInProgress); err != nil {
		return SpawnedTask{}, fmt.Errorf("mark task in progress: %w", err)
	}

	return SpawnedTask{TaskID: task.ID, PID: pid, WorktreeID: wt.ID}, nil
}

// release tears down a partially-allocated workspace and, when a record
// was already written, marks it released.
func (o *Orchestrator) release(ws *worktree.Workspace, worktreeID string) {
	if err := o.workspaces.Release(ws); err != nil {
		o.logger.Warn("release workspace", "path", ws.Path, "error", err)
	}
	if worktreeID != "" {
		if err := o.store.ReleaseWorktree(worktreeID); err != nil && !errors.Is(err, state.ErrNotFound) {
			o.logger.Warn("release worktree record", "worktree", worktreeID, "error", err)
		}
	}
}
