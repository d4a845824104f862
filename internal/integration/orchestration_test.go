//go:build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zeeeepa/gobby-sub011/internal/agent"
	"github.com/Zeeeepa/gobby-sub011/internal/orchestrator"
	"github.com/Zeeeepa/gobby-sub011/internal/spawn"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/internal/worktree"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// stubSpawner records launch specs without starting real agents.
type stubSpawner struct {
	specs []agent.LaunchSpec
}

func (s *stubSpawner) Spawn(ctx context.Context, spec agent.LaunchSpec) (int, error) {
	s.specs = append(s.specs, spec)
	return os.Getpid(), nil
}

// initRepo creates a real git repository with one commit so worktree
// operations have a base to branch from.
func initRepo(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "gobby-integration-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "gobby@example.com")
	run("config", "user.name", "Gobby Test")
	run("commit", "--allow-empty", "-m", "initial commit")
	return dir
}

func addTask(t *testing.T, db *state.DB, task *models.Task) *models.Task {
	t.Helper()
	task.CreatedAt = time.Now()
	if task.Status == "" {
		task.Status = models.TaskStatusOpen
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask(%s) error = %v", task.ID, err)
	}
	return task
}

// TestDispatchIntoRealWorktrees runs the scheduler against a real git
// repository: dependency ordering across two waves, on-disk workspace
// identity, durable claims, and orphan cleanup after release.
func TestDispatchIntoRealWorktrees(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repo := initRepo(t)
	db, err := state.OpenProject(repo)
	if err != nil {
		t.Fatalf("OpenProject() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	manager, err := worktree.NewManager("", repo, "", "gobby")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	spawner := &stubSpawner{}
	orch := orchestrator.New(db, manager, spawn.NewGate(db, 3, 0), spawner)

	addTask(t, db, &models.Task{ID: "root", Title: "Feature"})
	addTask(t, db, &models.Task{ID: "design", ParentID: "root", Title: "Design schema"})
	addTask(t, db, &models.Task{ID: "impl", ParentID: "root", Title: "Implement", DependsOn: []string{"design"}})

	ctx := context.Background()
	result, err := orch.OrchestrateReadyTasks(ctx, "root", "parent-sess", 2)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks() error = %v", err)
	}
	if len(result.Spawned) != 1 || result.Spawned[0].TaskID != "design" {
		t.Fatalf("Spawned = %+v, want just design", result.Spawned)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("Skipped = %+v, want none", result.Skipped)
	}

	// The workspace must exist on disk with its identity marker, and
	// the spawned agent must have been pointed at it.
	wt, err := db.GetWorktreeByTask("design")
	if err != nil {
		t.Fatalf("GetWorktreeByTask(design) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(wt.Path, ".gobby", "workspace.json")); err != nil {
		t.Errorf("workspace identity file missing: %v", err)
	}
	if len(spawner.specs) != 1 || spawner.specs[0].WorkDir != wt.Path {
		t.Errorf("spawner specs = %+v, want one launch in %s", spawner.specs, wt.Path)
	}

	claimed, err := db.CountClaimedWorktrees()
	if err != nil {
		t.Fatalf("CountClaimedWorktrees() error = %v", err)
	}
	if claimed != 1 {
		t.Errorf("claimed = %d, want 1", claimed)
	}
	task, err := db.GetTask("design")
	if err != nil {
		t.Fatalf("GetTask(design) error = %v", err)
	}
	if task.Status != models.TaskStatusInProgress {
		t.Errorf("design status = %s, want in_progress", task.Status)
	}

	// Re-dispatch while design is in flight: impl's dependency is
	// still open, so nothing moves.
	result, err = orch.OrchestrateReadyTasks(ctx, "root", "parent-sess", 2)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks() second call error = %v", err)
	}
	if len(result.Spawned) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("second dispatch = %+v, want empty", result)
	}

	// Closing design and releasing its claim unblocks impl.
	if err := db.UpdateTaskStatus("design", models.TaskStatusClosed); err != nil {
		t.Fatalf("UpdateTaskStatus(design) error = %v", err)
	}
	if err := db.ReleaseWorktree(wt.ID); err != nil {
		t.Fatalf("ReleaseWorktree() error = %v", err)
	}
	result, err = orch.OrchestrateReadyTasks(ctx, "root", "parent-sess", 2)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks() third call error = %v", err)
	}
	if len(result.Spawned) != 1 || result.Spawned[0].TaskID != "impl" {
		t.Fatalf("third dispatch Spawned = %+v, want just impl", result.Spawned)
	}

	// The released workspace is now unaccounted for on disk. The
	// cleanup path must remove it while keeping impl's.
	active, err := db.ListActiveWorktrees()
	if err != nil {
		t.Fatalf("ListActiveWorktrees() error = %v", err)
	}
	keep := make([]string, 0, len(active))
	for _, w := range active {
		keep = append(keep, w.Path)
	}
	removed, err := manager.CleanupOrphans(keep, nil)
	if err != nil {
		t.Fatalf("CleanupOrphans() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d orphans, want 1", removed)
	}
	if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
		t.Errorf("released workspace should be gone, stat err = %v", err)
	}

	implWT, err := db.GetWorktreeByTask("impl")
	if err != nil {
		t.Fatalf("GetWorktreeByTask(impl) error = %v", err)
	}
	if _, err := os.Stat(implWT.Path); err != nil {
		t.Errorf("in-flight workspace must survive cleanup: %v", err)
	}
}

// TestSpawnGateStopsDispatch verifies depth limits deny launches and the
// denial releases the allocated workspace.
func TestSpawnGateStopsDispatch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repo := initRepo(t)
	db, err := state.OpenProject(repo)
	if err != nil {
		t.Fatalf("OpenProject() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	manager, err := worktree.NewManager("", repo, "", "gobby")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	// Parent already at the depth ceiling.
	if _, err := db.EnsureSession("deep-sess", "", 2); err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}

	spawner := &stubSpawner{}
	orch := orchestrator.New(db, manager, spawn.NewGate(db, 2, 0), spawner)

	addTask(t, db, &models.Task{ID: "root", Title: "Feature"})
	addTask(t, db, &models.Task{ID: "work", ParentID: "root", Title: "Do work"})

	result, err := orch.OrchestrateReadyTasks(context.Background(), "root", "deep-sess", 2)
	if err != nil {
		t.Fatalf("OrchestrateReadyTasks() error = %v", err)
	}
	if len(result.Spawned) != 0 {
		t.Fatalf("Spawned = %+v, want none past the depth limit", result.Spawned)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].TaskID != "work" {
		t.Fatalf("Skipped = %+v, want just work", result.Skipped)
	}
	if len(spawner.specs) != 0 {
		t.Errorf("no agent should have launched, got %+v", spawner.specs)
	}

	// The denial must not leak the workspace it briefly allocated.
	orphans, err := manager.ListOrphans(nil)
	if err != nil {
		t.Fatalf("ListOrphans() error = %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("orphans = %+v, want none after a denied launch", orphans)
	}
}
