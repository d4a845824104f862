package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg, nil)

	if !reg.Has(BehaviorInjectContext) {
		t.Error("inject_context should always be registered")
	}
	if reg.Has(BehaviorDetectPrematureStop) || reg.Has(BehaviorTrackTaskTransition) {
		t.Error("task behaviors should not register without a task reader")
	}

	reg = NewRegistry()
	RegisterBuiltins(reg, newTestStore(t))
	for _, name := range []string{BehaviorInjectContext, BehaviorDetectPrematureStop, BehaviorTrackTaskTransition} {
		if !reg.Has(name) {
			t.Errorf("behavior %s not registered", name)
		}
	}
}

func TestInjectContextShadowsSessionVariables(t *testing.T) {
	db := newTestStore(t)
	if _, err := db.EnsureSession("sess-ic", "", 0); err != nil {
		t.Fatalf("ensuring session: %v", err)
	}
	if err := db.SetSessionVariable("sess-ic", "project", "demo"); err != nil {
		t.Fatalf("setting session variable: %v", err)
	}
	if err := db.SetSessionVariable("sess-ic", "mode", "shared"); err != nil {
		t.Fatalf("setting session variable: %v", err)
	}

	ec := &EventContext{
		Event: &hooks.Event{SessionID: "sess-ic", Type: hooks.EventUserPrompt},
		Def:   &Definition{Name: "briefing", Kind: KindLifecycle},
		Instance: &state.WorkflowInstance{
			SessionID:    "sess-ic",
			WorkflowName: "briefing",
			CurrentStep:  StepGlobal,
			Variables:    map[string]any{"mode": "strict"},
		},
		Response: hooks.NewResponse(),
		Store:    db,
	}
	if err := injectContextBehavior(context.Background(), ec); err != nil {
		t.Fatalf("injectContextBehavior failed: %v", err)
	}

	text := ec.Response.InjectedContext()
	if !strings.Contains(text, "workflow briefing is on step global") {
		t.Errorf("context missing workflow header: %q", text)
	}
	if !strings.Contains(text, "mode: strict") {
		t.Errorf("instance value should win for shared keys: %q", text)
	}
	if strings.Contains(text, "mode: shared") {
		t.Errorf("shadowed session value leaked: %q", text)
	}
	if !strings.Contains(text, "project: demo") {
		t.Errorf("session-only key missing: %q", text)
	}
}

func TestDetectPrematureStop(t *testing.T) {
	db := newTestStore(t)
	if _, err := db.EnsureSession("sess-stop", "", 0); err != nil {
		t.Fatalf("ensuring session: %v", err)
	}
	for _, task := range []models.Task{
		{ID: "root", Title: "Root", Status: models.TaskStatusInProgress},
		{ID: "child", ParentID: "root", Title: "Child", Status: models.TaskStatusOpen},
	} {
		task := task
		if err := db.CreateTask(&task); err != nil {
			t.Fatalf("creating task %s: %v", task.ID, err)
		}
	}

	behavior := detectPrematureStop(db)
	ec := &EventContext{
		Event:    &hooks.Event{SessionID: "sess-stop", Type: hooks.EventStop},
		Def:      &Definition{Name: "guard", Kind: KindLifecycle},
		Instance: &state.WorkflowInstance{SessionID: "sess-stop", WorkflowName: "guard", CurrentStep: StepGlobal, Variables: map[string]any{}},
		Response: hooks.NewResponse(),
		Store:    db,
	}

	if err := behavior(context.Background(), ec); err != nil {
		t.Fatalf("untracked session should stop freely: %v", err)
	}

	if err := db.SetSessionVariable("sess-stop", SessionTaskVariable, "root"); err != nil {
		t.Fatalf("setting tracked task: %v", err)
	}
	err := behavior(context.Background(), ec)
	var be *hooks.BlockError
	if !errors.As(err, &be) {
		t.Fatalf("stop with unfinished subtree should block, got %v", err)
	}
	if !strings.Contains(be.Reason, "2 unfinished") {
		t.Errorf("Reason = %q, want unfinished count", be.Reason)
	}

	for _, id := range []string{"child", "root"} {
		if err := db.UpdateTaskStatus(id, models.TaskStatusClosed); err != nil {
			t.Fatalf("closing %s: %v", id, err)
		}
	}
	if err := behavior(context.Background(), ec); err != nil {
		t.Fatalf("finished subtree should stop freely: %v", err)
	}
}

func TestTrackTaskTransition(t *testing.T) {
	db := newTestStore(t)
	if _, err := db.EnsureSession("sess-track", "", 0); err != nil {
		t.Fatalf("ensuring session: %v", err)
	}

	ec := &EventContext{
		Event: &hooks.Event{
			SessionID: "sess-track",
			Type:      hooks.EventPostToolUse,
			ToolName:  "start_task",
			ToolInput: map[string]any{"task_id": "task-9"},
		},
		Def:      &Definition{Name: "tracker", Kind: KindLifecycle},
		Instance: &state.WorkflowInstance{SessionID: "sess-track", WorkflowName: "tracker", CurrentStep: StepGlobal, Variables: map[string]any{}},
		Response: hooks.NewResponse(),
		Store:    db,
	}
	if err := trackTaskTransition(context.Background(), ec); err != nil {
		t.Fatalf("trackTaskTransition failed: %v", err)
	}

	value, ok, err := db.GetSessionVariable("sess-track", SessionTaskVariable)
	if err != nil || !ok {
		t.Fatalf("tracked task variable missing: %v", err)
	}
	if value != "task-9" {
		t.Errorf("tracked task = %v, want task-9", value)
	}

	ec.Event = &hooks.Event{SessionID: "sess-track", Type: hooks.EventPostToolUse, ToolName: "list_files"}
	if err := trackTaskTransition(context.Background(), ec); err != nil {
		t.Fatalf("event without task id should be ignored: %v", err)
	}
	value, _, _ = db.GetSessionVariable("sess-track", SessionTaskVariable)
	if value != "task-9" {
		t.Errorf("tracked task overwritten to %v", value)
	}
}
