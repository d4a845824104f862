package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
)

// fakeExecutor records executed action names and fails the configured
// ones.
type fakeExecutor struct {
	fail  map[string]error
	calls []string
}

func (f *fakeExecutor) Has(name string) bool { return true }

func (f *fakeExecutor) Execute(ctx context.Context, name string, ec *EventContext, params map[string]any) error {
	f.calls = append(f.calls, name)
	if err, ok := f.fail[name]; ok {
		return err
	}
	return nil
}

func TestEvaluate_ObserverSetsVariables(t *testing.T) {
	db := newTestStore(t)
	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name: "tracker",
		Observers: []Observer{{
			Name:  "remember-command",
			On:    hooks.EventPreToolUse,
			Match: map[string]string{"tool": "Bash"},
			Set: map[string]any{
				"last_command": `{{index .event.input "command"}}`,
				"seen":         true,
			},
		}},
	})), NewRegistry(), nil, nil)

	resp, err := ev.Evaluate(context.Background(), &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventPreToolUse,
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "ls"},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if resp.Blocked() {
		t.Fatalf("unexpected block: %q", resp.Reason)
	}

	inst, err := db.GetInstance("sess-1", "tracker")
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if inst.Variables["last_command"] != "ls" {
		t.Errorf("last_command = %v, want ls", inst.Variables["last_command"])
	}
	if inst.Variables["seen"] != true {
		t.Errorf("seen = %v, want true", inst.Variables["seen"])
	}

	if _, err := db.GetSession("sess-1"); err != nil {
		t.Errorf("session row should exist after evaluation: %v", err)
	}
}

func TestEvaluate_ObserverMatchMismatch(t *testing.T) {
	db := newTestStore(t)
	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name: "tracker",
		Observers: []Observer{{
			Name:  "bash-only",
			On:    hooks.EventPreToolUse,
			Match: map[string]string{"tool": "Bash"},
			Set:   map[string]any{"seen": true},
		}},
	})), NewRegistry(), nil, nil)

	_, err := ev.Evaluate(context.Background(), &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventPreToolUse,
		ToolName:  "Edit",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	inst, err := db.GetInstance("sess-1", "tracker")
	if err != nil {
		t.Fatalf("instance should be auto-created: %v", err)
	}
	if len(inst.Variables) != 0 {
		t.Errorf("Variables = %v, want none", inst.Variables)
	}
}

func TestEvaluate_BehaviorMutationsPersist(t *testing.T) {
	db := newTestStore(t)
	registry := NewRegistry()
	registry.Register("note-tool", func(ctx context.Context, ec *EventContext) error {
		ec.Instance.Variables["tool"] = ec.Event.ToolName
		ec.Response.AddContext("noted " + ec.Event.ToolName)
		return nil
	})

	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name: "tracker",
		Observers: []Observer{{
			Name:     "note",
			On:       hooks.EventPostToolUse,
			Behavior: "note-tool",
		}},
	})), registry, nil, nil)

	resp, err := ev.Evaluate(context.Background(), &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventPostToolUse,
		ToolName:  "Edit",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if resp.InjectedContext() != "noted Edit" {
		t.Errorf("context = %q", resp.InjectedContext())
	}
	inst, err := db.GetInstance("sess-1", "tracker")
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if inst.Variables["tool"] != "Edit" {
		t.Errorf("tool = %v, want Edit", inst.Variables["tool"])
	}
}

func TestEvaluate_BlockPersistsEarlierMutations(t *testing.T) {
	db := newTestStore(t)
	registry := NewRegistry()
	registry.Register("refuse", func(ctx context.Context, ec *EventContext) error {
		return hooks.Blocked("open work remains")
	})

	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name: "guard",
		Observers: []Observer{
			{Name: "mark", On: hooks.EventStop, Set: map[string]any{"stop_seen": true}},
			{Name: "refuse", On: hooks.EventStop, Behavior: "refuse"},
		},
	})), registry, nil, nil)

	resp, err := ev.Evaluate(context.Background(), &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventStop,
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if !resp.Blocked() {
		t.Fatal("expected block")
	}
	if resp.Reason != "open work remains" {
		t.Errorf("Reason = %q", resp.Reason)
	}

	inst, err := db.GetInstance("sess-1", "guard")
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if inst.Variables["stop_seen"] != true {
		t.Error("mutations made before the block should be persisted")
	}
}

func TestEvaluate_BlockHaltsLaterDefinitions(t *testing.T) {
	db := newTestStore(t)
	exec := &fakeExecutor{fail: map[string]error{"deny": hooks.Blocked("denied")}}

	ev := NewEvaluator(db, NewStaticSource(testSet(
		&Definition{
			Name:     "first",
			Priority: 1,
			Triggers: map[string][]ActionRef{hooks.EventStop: {{Action: "deny"}, {Action: "after-deny"}}},
		},
		&Definition{
			Name:     "second",
			Priority: 2,
			Triggers: map[string][]ActionRef{hooks.EventStop: {{Action: "log"}}},
		},
	)), NewRegistry(), exec, nil)

	resp, err := ev.Evaluate(context.Background(), &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventStop,
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if !resp.Blocked() || resp.Reason != "denied" {
		t.Fatalf("resp = %+v, want block with reason denied", resp)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "deny" {
		t.Errorf("calls = %v, want evaluation to halt at deny", exec.calls)
	}
}

func TestEvaluate_ActionFailureIsolated(t *testing.T) {
	db := newTestStore(t)
	exec := &fakeExecutor{fail: map[string]error{"boom": errors.New("exploded")}}

	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name:     "robust",
		Triggers: map[string][]ActionRef{hooks.EventStop: {{Action: "boom"}, {Action: "log"}}},
	})), NewRegistry(), exec, nil)

	resp, err := ev.Evaluate(context.Background(), &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventStop,
	})
	if err != nil {
		t.Fatalf("one failing action must not fail the event: %v", err)
	}
	if resp.Blocked() {
		t.Error("plain action failure must not block")
	}
	if len(exec.calls) != 2 {
		t.Errorf("calls = %v, want both actions attempted", exec.calls)
	}
}

func TestEvaluate_ObserversBeforeTriggers(t *testing.T) {
	db := newTestStore(t)
	var order []string
	registry := NewRegistry()
	registry.Register("record", func(ctx context.Context, ec *EventContext) error {
		order = append(order, "observer")
		return nil
	})
	exec := &fakeExecutor{}

	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name:      "ordered",
		Observers: []Observer{{Name: "first", On: hooks.EventStop, Behavior: "record"}},
		Triggers:  map[string][]ActionRef{hooks.EventStop: {{Action: "act"}}},
	})), registry, exec, nil)

	if _, err := ev.Evaluate(context.Background(), &hooks.Event{SessionID: "sess-1", Type: hooks.EventStop}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	order = append(order, exec.calls...)
	if len(order) != 2 || order[0] != "observer" || order[1] != "act" {
		t.Errorf("order = %v, want observers before triggers", order)
	}
}

func TestEvaluate_DefinitionOrdering(t *testing.T) {
	db := newTestStore(t)
	var order []string
	registry := NewRegistry()
	registry.Register("record", func(ctx context.Context, ec *EventContext) error {
		order = append(order, ec.Def.Name)
		return nil
	})

	record := []Observer{{Name: "r", On: hooks.EventStop, Behavior: "record"}}
	ev := NewEvaluator(db, NewStaticSource(testSet(
		&Definition{Name: "charlie", Priority: 1, Observers: record},
		&Definition{Name: "alpha", Priority: 1, Observers: record},
		&Definition{Name: "zulu", Priority: 0, Observers: record},
	)), registry, nil, nil)

	if _, err := ev.Evaluate(context.Background(), &hooks.Event{SessionID: "sess-1", Type: hooks.EventStop}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	want := []string{"zulu", "alpha", "charlie"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestEvaluate_EndedInstanceSkipped(t *testing.T) {
	db := newTestStore(t)
	set := testSet(&Definition{
		Name: "tracker",
		Observers: []Observer{{
			Name: "mark",
			On:   hooks.EventStop,
			Set:  map[string]any{"stop_seen": true},
		}},
	})
	ev := NewEvaluator(db, NewStaticSource(set), NewRegistry(), nil, nil)
	mgr := NewManager(db, NewStaticSource(set), nil)

	if _, err := mgr.Activate(context.Background(), "sess-1", "tracker"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if _, err := mgr.End(context.Background(), "sess-1", "tracker"); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if _, err := ev.Evaluate(context.Background(), &hooks.Event{SessionID: "sess-1", Type: hooks.EventStop}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	inst, err := db.GetInstance("sess-1", "tracker")
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if inst.Enabled {
		t.Error("evaluation must not resurrect an ended workflow")
	}
	if _, exists := inst.Variables["stop_seen"]; exists {
		t.Error("ended workflow's observers must not fire")
	}
}

func TestEvaluate_StepDefinitionNeedsActivation(t *testing.T) {
	db := newTestStore(t)
	source := NewStaticSource(testSet(&Definition{
		Name:  "feature",
		Kind:  KindStep,
		Steps: []string{"plan", "build"},
		Triggers: map[string][]ActionRef{
			hooks.EventPostToolUse: {{Action: "advance_step"}},
		},
	}))
	exec := &fakeExecutor{}
	ev := NewEvaluator(db, source, NewRegistry(), exec, nil)

	event := &hooks.Event{SessionID: "sess-1", Type: hooks.EventPostToolUse}
	if _, err := ev.Evaluate(context.Background(), event); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("inactive step workflow ran actions: %v", exec.calls)
	}
	if _, err := db.GetInstance("sess-1", "feature"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("step instance should not exist before activation, got err=%v", err)
	}

	mgr := NewManager(db, source, nil)
	if _, err := mgr.Activate(context.Background(), "sess-1", "feature"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if _, err := ev.Evaluate(context.Background(), event); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "advance_step" {
		t.Fatalf("calls = %v, want advance_step once activated", exec.calls)
	}
}

func TestEvaluate_ContextAggregatedAcrossDefinitions(t *testing.T) {
	db := newTestStore(t)
	registry := NewRegistry()
	registry.Register("inject", func(ctx context.Context, ec *EventContext) error {
		ec.Response.AddContext("from " + ec.Def.Name)
		return nil
	})

	inject := []Observer{{Name: "i", On: hooks.EventSessionStart, Behavior: "inject"}}
	ev := NewEvaluator(db, NewStaticSource(testSet(
		&Definition{Name: "alpha", Priority: 1, Observers: inject},
		&Definition{Name: "beta", Priority: 2, Observers: inject},
	)), registry, nil, nil)

	resp, err := ev.Evaluate(context.Background(), &hooks.Event{SessionID: "sess-1", Type: hooks.EventSessionStart})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if resp.InjectedContext() != "from alpha\nfrom beta" {
		t.Errorf("context = %q", resp.InjectedContext())
	}
}

func TestEvaluate_SeedsDeclaredSessionVariables(t *testing.T) {
	db := newTestStore(t)
	ev := NewEvaluator(db, NewStaticSource(testSet(&Definition{
		Name:             "tracker",
		SessionVariables: map[string]any{"project": "demo"},
	})), NewRegistry(), nil, nil)

	if _, err := ev.Evaluate(context.Background(), &hooks.Event{SessionID: "sess-1", Type: hooks.EventSessionStart}); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	value, ok, err := db.GetSessionVariable("sess-1", "project")
	if err != nil || !ok {
		t.Fatalf("session variable missing: %v", err)
	}
	if value != "demo" {
		t.Errorf("project = %v", value)
	}
}

func TestEvaluate_MissingSessionID(t *testing.T) {
	db := newTestStore(t)
	ev := NewEvaluator(db, NewStaticSource(testSet()), NewRegistry(), nil, nil)

	if _, err := ev.Evaluate(context.Background(), &hooks.Event{Type: hooks.EventStop}); err == nil {
		t.Error("expected an error for an event without a session id")
	}
}

func TestObserverFires(t *testing.T) {
	event := &hooks.Event{
		SessionID: "sess-1",
		Type:      hooks.EventPreToolUse,
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "ls", "count": 3},
	}

	tests := []struct {
		name string
		obs  Observer
		want bool
	}{
		{"type only", Observer{On: hooks.EventPreToolUse}, true},
		{"wrong type", Observer{On: hooks.EventStop}, false},
		{"tool match", Observer{On: hooks.EventPreToolUse, Match: map[string]string{"tool": "Bash"}}, true},
		{"tool mismatch", Observer{On: hooks.EventPreToolUse, Match: map[string]string{"tool": "Edit"}}, false},
		{"input field match", Observer{On: hooks.EventPreToolUse, Match: map[string]string{"command": "ls"}}, true},
		{"numeric field compared as string", Observer{On: hooks.EventPreToolUse, Match: map[string]string{"count": "3"}}, true},
		{"missing field", Observer{On: hooks.EventPreToolUse, Match: map[string]string{"ghost": "x"}}, false},
		{"all keys must match", Observer{On: hooks.EventPreToolUse, Match: map[string]string{"tool": "Bash", "command": "rm"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := observerFires(&tt.obs, event); got != tt.want {
				t.Errorf("observerFires = %v, want %v", got, tt.want)
			}
		})
	}
}
