package workflow

import (
	"reflect"
	"testing"
)

func TestMerged_ChildOverridesScalars(t *testing.T) {
	parent := &Definition{Name: "base", Kind: KindLifecycle, Priority: 5}
	child := &Definition{Name: "custom", Kind: KindStep, Priority: 2, Steps: []string{"plan"}}

	got := child.merged(parent)

	if got.Name != "custom" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Kind != KindStep {
		t.Errorf("Kind = %q", got.Kind)
	}
	if got.Priority != 2 {
		t.Errorf("Priority = %d", got.Priority)
	}
}

func TestMerged_ChildInheritsUnsetScalars(t *testing.T) {
	parent := &Definition{Name: "base", Kind: KindStep, Priority: 5, Steps: []string{"plan"}}
	child := &Definition{Name: "custom"}

	got := child.merged(parent)

	if got.Kind != KindStep {
		t.Errorf("Kind = %q, want inherited %q", got.Kind, KindStep)
	}
	if got.Priority != 5 {
		t.Errorf("Priority = %d, want inherited 5", got.Priority)
	}
}

func TestMerged_VariablesMergeKeyWise(t *testing.T) {
	parent := &Definition{
		Name:             "base",
		Variables:        map[string]any{"retries": 3, "mode": "safe"},
		SessionVariables: map[string]any{"project": "gobby"},
	}
	child := &Definition{
		Name:             "custom",
		Variables:        map[string]any{"mode": "fast", "extra": true},
		SessionVariables: map[string]any{"owner": "me"},
	}

	got := child.merged(parent)

	wantVars := map[string]any{"retries": 3, "mode": "fast", "extra": true}
	if !reflect.DeepEqual(got.Variables, wantVars) {
		t.Errorf("Variables = %v, want %v", got.Variables, wantVars)
	}
	wantSession := map[string]any{"project": "gobby", "owner": "me"}
	if !reflect.DeepEqual(got.SessionVariables, wantSession) {
		t.Errorf("SessionVariables = %v, want %v", got.SessionVariables, wantSession)
	}
}

func TestMerged_StepsAndObserversReplaceWholesale(t *testing.T) {
	parent := &Definition{
		Name:      "base",
		Steps:     []string{"plan", "build"},
		Observers: []Observer{{Name: "p", On: "stop", Behavior: "noop"}},
	}

	inherit := (&Definition{Name: "a"}).merged(parent)
	if !reflect.DeepEqual(inherit.Steps, []string{"plan", "build"}) {
		t.Errorf("inherited Steps = %v", inherit.Steps)
	}
	if len(inherit.Observers) != 1 || inherit.Observers[0].Name != "p" {
		t.Errorf("inherited Observers = %v", inherit.Observers)
	}

	replace := (&Definition{
		Name:      "b",
		Steps:     []string{"review"},
		Observers: []Observer{{Name: "c", On: "stop", Behavior: "noop"}},
	}).merged(parent)
	if !reflect.DeepEqual(replace.Steps, []string{"review"}) {
		t.Errorf("replaced Steps = %v", replace.Steps)
	}
	if len(replace.Observers) != 1 || replace.Observers[0].Name != "c" {
		t.Errorf("replaced Observers = %v", replace.Observers)
	}
}

func TestMerged_TriggersMergeByEventType(t *testing.T) {
	parent := &Definition{
		Name: "base",
		Triggers: map[string][]ActionRef{
			"stop":          {{Action: "log"}},
			"session_start": {{Action: "log"}},
		},
	}
	child := &Definition{
		Name: "custom",
		Triggers: map[string][]ActionRef{
			"stop": {{Action: "block"}, {Action: "log"}},
		},
	}

	got := child.merged(parent)

	if len(got.Triggers["stop"]) != 2 || got.Triggers["stop"][0].Action != "block" {
		t.Errorf("stop triggers = %v, want child's list", got.Triggers["stop"])
	}
	if len(got.Triggers["session_start"]) != 1 {
		t.Errorf("session_start triggers = %v, want inherited", got.Triggers["session_start"])
	}
}

func TestInitialStep(t *testing.T) {
	step := &Definition{Name: "s", Kind: KindStep, Steps: []string{"plan", "build"}}
	if got := step.InitialStep(); got != "plan" {
		t.Errorf("InitialStep = %q, want plan", got)
	}

	lifecycle := &Definition{Name: "l", Kind: KindLifecycle}
	if got := lifecycle.InitialStep(); got != StepGlobal {
		t.Errorf("InitialStep = %q, want %q", got, StepGlobal)
	}
}

func TestNextStep(t *testing.T) {
	def := &Definition{Name: "s", Kind: KindStep, Steps: []string{"plan", "build", "review"}}

	tests := []struct {
		current string
		want    string
		ok      bool
	}{
		{"plan", "build", true},
		{"build", "review", true},
		{"review", "", false},
		{"unknown", "", false},
	}
	for _, tt := range tests {
		got, ok := def.NextStep(tt.current)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextStep(%q) = %q, %v, want %q, %v", tt.current, got, ok, tt.want, tt.ok)
		}
	}

	lifecycle := &Definition{Name: "l", Kind: KindLifecycle, Steps: []string{"a", "b"}}
	if _, ok := lifecycle.NextStep("a"); ok {
		t.Error("lifecycle definitions never advance steps")
	}
}

func TestHasStep(t *testing.T) {
	def := &Definition{Name: "s", Kind: KindStep, Steps: []string{"plan", "build"}}

	if !def.HasStep("plan") || !def.HasStep("build") {
		t.Error("declared steps should be valid")
	}
	if !def.HasStep(StepGlobal) {
		t.Error("the global step is always valid")
	}
	if def.HasStep("ship") {
		t.Error("undeclared step should be invalid")
	}
}
