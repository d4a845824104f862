// Package worktree creates and tears down the isolated git worktrees
// agent processes run in.
package worktree

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Zeeeepa/gobby-sub011/internal/git"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Workspace is one isolated working copy with its own branch.
type Workspace struct {
	Path      string    // Absolute path to the worktree directory
	Branch    string    // Branch checked out in this worktree
	CreatedAt time.Time // When the workspace was created
}

// Workspaces defines the workspace lifecycle the scheduler and the
// cleanup command depend on. The interface allows mocking in tests.
type Workspaces interface {
	// Create makes a new worktree on a fresh branch cut from the base branch.
	Create(branch string) (*Workspace, error)
	// Bootstrap writes the per-workspace identity files for a task.
	Bootstrap(ws *Workspace, task *models.Task) error
	// Release removes the worktree and its branch.
	Release(ws *Workspace) error
	// List returns all worktrees known to the repository.
	List() ([]*Workspace, error)
	// ListOrphans returns managed worktrees whose paths are not in activePaths.
	ListOrphans(activePaths []string) ([]*Workspace, error)
	// CleanupOrphans removes orphaned worktrees and returns the count removed.
	CleanupOrphans(activePaths []string, verbose func(path string)) (int, error)
	// Prune removes stale worktree references.
	Prune() error
	// BaseDir returns the directory worktrees are created under.
	BaseDir() string
	// RepoPath returns the path of the main repository.
	RepoPath() string
}

// Verify Manager implements Workspaces at compile time.
var _ Workspaces = (*Manager)(nil)

// Manager handles git worktree operations for agent isolation.
type Manager struct {
	baseDir      string // Directory worktrees are created under
	repoPath     string // Path of the main git repository
	baseBranch   string // Branch new workspaces are cut from; empty means HEAD
	branchPrefix string // Prefix for branches without task context
	git          git.Runner
	mu           sync.Mutex
}

// NewManager creates a workspace manager for the repository at repoPath.
// An empty baseDir defaults to .gobby/worktrees inside the repository.
func NewManager(baseDir, repoPath, baseBranch, branchPrefix string) (*Manager, error) {
	return NewManagerWithRunner(baseDir, repoPath, baseBranch, branchPrefix, git.NewRunner(repoPath))
}

// NewManagerWithRunner creates a workspace manager with a custom git
// runner (for testing).
func NewManagerWithRunner(baseDir, repoPath, baseBranch, branchPrefix string, runner git.Runner) (*Manager, error) {
	if baseDir == "" {
		baseDir = filepath.Join(repoPath, ".gobby", "worktrees")
	}
	if branchPrefix == "" {
		branchPrefix = "gobby"
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create worktree base directory: %w", err)
	}

	return &Manager{
		baseDir:      baseDir,
		repoPath:     repoPath,
		baseBranch:   baseBranch,
		branchPrefix: branchPrefix,
		git:          runner,
	}, nil
}

// Create makes a new worktree on a fresh branch cut from the base branch.
func (m *Manager) Create(branch string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.baseDir, pathComponent(branch))
	if err := m.git.WorktreeAddNewBranch(path, branch, m.baseBranch); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{
		Path:      path,
		Branch:    branch,
		CreatedAt: time.Now(),
	}, nil
}

// identity is the per-workspace marker written at bootstrap. The spawned
// agent reads it to learn which task it owns.
type identity struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Branch    string `json:"branch"`
	CreatedAt string `json:"created_at"`
}

// Bootstrap writes the per-workspace identity files for a task.
func (m *Manager) Bootstrap(ws *Workspace, task *models.Task) error {
	dir := filepath.Join(ws.Path, ".gobby")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create workspace identity dir: %w", err)
	}

	id := identity{
		Branch:    ws.Branch,
		CreatedAt: ws.CreatedAt.UTC().Format(time.RFC3339),
	}
	if task != nil {
		id.TaskID = task.ID
		id.Title = task.Title
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workspace identity: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "workspace.json"), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write workspace identity: %w", err)
	}
	return nil
}

// Release removes the worktree and its branch. The branch delete is
// best-effort: it may still be checked out elsewhere.
func (m *Manager) Release(ws *Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreeRemove(ws.Path); err != nil {
		// Git may have lost track of the worktree; fall back to direct removal.
		if rmErr := os.RemoveAll(ws.Path); rmErr != nil {
			return fmt.Errorf("remove workspace: %w", err)
		}
		_ = m.git.WorktreePrune()
	}
	_ = m.git.DeleteBranch(ws.Branch)

	return nil
}

// List returns all worktrees known to the repository.
func (m *Manager) List() ([]*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return parseWorktreeList(output)
}

// parseWorktreeList parses the output of 'git worktree list --porcelain'.
func parseWorktreeList(output string) ([]*Workspace, error) {
	var workspaces []*Workspace
	var current *Workspace

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current != nil {
				workspaces = append(workspaces, current)
				current = nil
			}
			continue
		}

		if strings.HasPrefix(line, "worktree ") {
			current = &Workspace{
				Path: strings.TrimPrefix(line, "worktree "),
			}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			// Format: branch refs/heads/<name>
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	if current != nil {
		workspaces = append(workspaces, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}
	return workspaces, nil
}

// managed reports whether a branch was created by this tool.
func (m *Manager) managed(branch string) bool {
	if branch == "" {
		return false
	}
	return strings.HasPrefix(branch, "task-") || strings.HasPrefix(branch, m.branchPrefix+"/")
}

// ListOrphans returns managed worktrees whose paths are not in
// activePaths. The main repository worktree is never an orphan.
func (m *Manager) ListOrphans(activePaths []string) ([]*Workspace, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool, len(activePaths))
	for _, p := range activePaths {
		active[p] = true
	}

	var orphans []*Workspace
	for _, ws := range all {
		if !m.managed(ws.Branch) {
			continue
		}
		if ws.Path == m.repoPath || active[ws.Path] {
			continue
		}
		orphans = append(orphans, ws)
	}
	return orphans, nil
}

// CleanupOrphans removes orphaned worktrees and returns the count
// removed. The verbose callback, if set, is called per removed path.
func (m *Manager) CleanupOrphans(activePaths []string, verbose func(path string)) (int, error) {
	orphans, err := m.ListOrphans(activePaths)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, ws := range orphans {
		_ = m.git.WorktreeUnlock(ws.Path) // it may not be locked

		if err := m.git.WorktreeRemove(ws.Path); err != nil {
			if err := os.RemoveAll(ws.Path); err != nil {
				continue
			}
		}
		if ws.Branch != "" {
			_ = m.git.DeleteBranch(ws.Branch)
		}

		if verbose != nil {
			verbose(ws.Path)
		}
		removed++
	}

	// Final prune for any dangling references.
	_ = m.git.WorktreePrune()

	return removed, nil
}

// Prune removes stale worktree references.
func (m *Manager) Prune() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreePrune(); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}

// BaseDir returns the directory worktrees are created under.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// RepoPath returns the path of the main repository.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// pathComponent flattens a branch name into a single directory name.
func pathComponent(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}
