// Package git provides an interface for git operations.
package git

// RepoOperations defines the interface for repository-level queries.
type RepoOperations interface {
	// RepoRoot returns the absolute path of the repository's top-level directory.
	RepoRoot() (string, error)
	// IsRepo returns true if the runner's path is inside a git repository.
	IsRepo() bool
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
}

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAdd creates a worktree at the given path checking out an existing branch.
	WorktreeAdd(path, branch string) error
	// WorktreeAddNewBranch creates a worktree with a new branch cut from base.
	// An empty base branches from HEAD.
	WorktreeAddNewBranch(path, branch, base string) error
	// WorktreeRemove removes the worktree at the given path, discarding local changes.
	WorktreeRemove(path string) error
	// WorktreeUnlock unlocks a locked worktree.
	WorktreeUnlock(path string) error
	// WorktreeListPorcelain returns the raw `git worktree list --porcelain` output.
	WorktreeListPorcelain() (string, error)
	// WorktreePrune removes stale worktree references with --expire now.
	WorktreePrune() error
}

// Runner defines the complete interface for git operations.
// Consumers should prefer the focused interfaces when possible.
type Runner interface {
	RepoOperations
	BranchOperations
	WorktreeOperations
	// Run executes an arbitrary git command with the given arguments.
	// Returns the command output and an error if the command fails.
	Run(args ...string) (string, error)
}
