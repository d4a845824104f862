package state

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// HasLiveAgent reports whether the agent session currently has a
// running process. It looks up the session's most recent run and probes
// the recorded PID. A claim whose process died out-of-band reports
// false; callers surface that staleness rather than healing it.
func (db *DB) HasLiveAgent(agentSessionID string) (bool, error) {
	if agentSessionID == "" {
		return false, nil
	}

	run, err := db.GetAgentRunBySession(agentSessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if run.Status != models.AgentRunStatusLaunched {
		return false, nil
	}
	return isProcessAlive(run.PID), nil
}

// ListStaleClaims returns claimed worktrees whose agent process is no
// longer alive. These are candidates for cleanup; nothing is mutated.
func (db *DB) ListStaleClaims() ([]models.Worktree, error) {
	worktrees, err := db.ListActiveWorktrees()
	if err != nil {
		return nil, err
	}

	var stale []models.Worktree
	for _, w := range worktrees {
		if !w.Claimed() {
			continue
		}
		live, err := db.HasLiveAgent(w.AgentSessionID)
		if err != nil {
			return nil, fmt.Errorf("check agent for worktree %s: %w", w.ID, err)
		}
		if !live {
			stale = append(stale, w)
		}
	}
	return stale, nil
}

// ListMissingWorktrees returns active worktrees whose directory no
// longer exists on disk.
func (db *DB) ListMissingWorktrees() ([]models.Worktree, error) {
	worktrees, err := db.ListActiveWorktrees()
	if err != nil {
		return nil, err
	}

	var missing []models.Worktree
	for _, w := range worktrees {
		if _, err := os.Stat(w.Path); os.IsNotExist(err) {
			missing = append(missing, w)
		}
	}
	return missing, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
