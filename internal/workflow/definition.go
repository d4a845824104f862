// Package workflow implements the session automation engine: declarative
// workflow definitions loaded from YAML, per-session instances with
// two-tier variables, and the lifecycle evaluator that matches observers
// and triggers against incoming events.
package workflow

// Definition kinds. Step workflows progress through an ordered list of
// named steps; lifecycle workflows are evaluated against every event for
// the session's entire life and never leave the global step.
const (
	KindStep      = "step"
	KindLifecycle = "lifecycle"
)

// StepGlobal is the pinned current step of lifecycle-kind instances.
const StepGlobal = "global"

// ActionRef names one executable action inside a trigger's action list.
type ActionRef struct {
	Action string         `yaml:"action" json:"action" validate:"required"`
	Params map[string]any `yaml:"params" json:"params,omitempty"`
}

// Observer is a declarative event rule. It fires when `on` equals the
// event type and every `match` entry equals the corresponding event
// field; a fired observer either merges its `set` map into the instance
// variables or invokes the named behavior.
type Observer struct {
	Name     string            `yaml:"name" json:"name" validate:"required"`
	On       string            `yaml:"on" json:"on" validate:"required"`
	Match    map[string]string `yaml:"match" json:"match,omitempty"`
	Set      map[string]any    `yaml:"set" json:"set,omitempty"`
	Behavior string            `yaml:"behavior" json:"behavior,omitempty"`
}

// Definition is one named workflow automation as declared in YAML.
// Definitions are immutable once loaded and merged.
type Definition struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Kind     string `yaml:"kind" json:"kind" validate:"omitempty,oneof=step lifecycle"`
	Priority int    `yaml:"priority" json:"priority"`
	Extends  string `yaml:"extends" json:"extends,omitempty"`

	Steps     []string               `yaml:"steps" json:"steps,omitempty"`
	Observers []Observer             `yaml:"observers" json:"observers,omitempty" validate:"dive"`
	Triggers  map[string][]ActionRef `yaml:"triggers" json:"triggers,omitempty" validate:"dive,dive"`

	// Variables seed the instance's workflow-scoped map on activation;
	// SessionVariables merge into the shared session tier set-if-absent.
	Variables        map[string]any `yaml:"variables" json:"variables,omitempty"`
	SessionVariables map[string]any `yaml:"session_variables" json:"session_variables,omitempty"`
}

// InitialStep returns the step a fresh instance of this definition
// starts on.
func (d *Definition) InitialStep() string {
	if d.Kind == KindStep && len(d.Steps) > 0 {
		return d.Steps[0]
	}
	return StepGlobal
}

// HasStep reports whether step is valid for this definition. The global
// step is always valid.
func (d *Definition) HasStep(step string) bool {
	if step == StepGlobal {
		return true
	}
	for _, s := range d.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// NextStep returns the step after current in declared order. The second
// return is false at the last step, on an unknown step, and always for
// lifecycle-kind definitions.
func (d *Definition) NextStep(current string) (string, bool) {
	if d.Kind != KindStep {
		return "", false
	}
	for i, step := range d.Steps {
		if step == current && i+1 < len(d.Steps) {
			return d.Steps[i+1], true
		}
	}
	return "", false
}

// merged returns d overlaid on its resolved parent: scalars keep the
// child's value when set, variable maps merge key-wise with the child
// winning, steps and observers are replaced wholesale when the child
// declares any, and trigger lists merge by event type with the child's
// list replacing the parent's.
func (d *Definition) merged(parent *Definition) *Definition {
	out := &Definition{
		Name:     d.Name,
		Kind:     d.Kind,
		Priority: d.Priority,
	}
	if out.Kind == "" {
		out.Kind = parent.Kind
	}
	if out.Priority == 0 {
		out.Priority = parent.Priority
	}

	out.Steps = append([]string(nil), parent.Steps...)
	if len(d.Steps) > 0 {
		out.Steps = append([]string(nil), d.Steps...)
	}

	out.Observers = append([]Observer(nil), parent.Observers...)
	if len(d.Observers) > 0 {
		out.Observers = append([]Observer(nil), d.Observers...)
	}

	out.Triggers = make(map[string][]ActionRef)
	for eventType, refs := range parent.Triggers {
		out.Triggers[eventType] = append([]ActionRef(nil), refs...)
	}
	for eventType, refs := range d.Triggers {
		out.Triggers[eventType] = append([]ActionRef(nil), refs...)
	}

	out.Variables = mergeMaps(parent.Variables, d.Variables)
	out.SessionVariables = mergeMaps(parent.SessionVariables, d.SessionVariables)
	return out
}

// mergeMaps returns base with overlay applied on top. Both inputs are
// left untouched.
func mergeMaps(base, overlay map[string]any) map[string]any {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
