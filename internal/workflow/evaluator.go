package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
)

// ActionExecutor runs named trigger actions. Execute returning an error
// wrapping hooks.BlockError blocks the event; any other error is logged
// and isolated.
type ActionExecutor interface {
	ActionCatalog
	Execute(ctx context.Context, name string, ec *EventContext, params map[string]any) error
}

// Evaluator is the lifecycle entry point: given one event it evaluates
// every visible lifecycle-kind definition plus every activated step-kind
// instance against the session, persists variable mutations, and
// returns one aggregated response.
type Evaluator struct {
	store    EngineStore
	source   Source
	registry *Registry
	executor ActionExecutor
	logger   *slog.Logger
}

// NewEvaluator creates a lifecycle evaluator. executor may be nil, which
// skips trigger actions.
func NewEvaluator(store EngineStore, source Source, registry *Registry, executor ActionExecutor, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Evaluator{
		store:    store,
		source:   source,
		registry: registry,
		executor: executor,
		logger:   logger.With("component", "workflow_evaluator"),
	}
}

// Evaluate handles one event. Definitions are evaluated in ascending
// (priority, name) order, observers before triggers within each. Every
// instance's variable mutations are persisted before Evaluate returns,
// including when a block decision cuts evaluation short.
func (ev *Evaluator) Evaluate(ctx context.Context, event *hooks.Event) (*hooks.Response, error) {
	if event.SessionID == "" {
		return nil, fmt.Errorf("event %s has no session id", event.Type)
	}
	if _, err := ev.store.EnsureSession(event.SessionID, "", 0); err != nil {
		return nil, err
	}

	resp := hooks.NewResponse()
	for _, def := range ev.source.Definitions().Ordered() {
		inst, err := ev.ensureInstance(event.SessionID, def)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			continue
		}

		baseline := snapshotInstance(inst)
		blocked := ev.evalDefinition(ctx, def, inst, event, resp)
		if err := ev.persistInstance(inst, baseline); err != nil {
			return nil, err
		}
		if blocked {
			ev.logger.Info("event blocked",
				"session", event.SessionID,
				"event", event.Type,
				"workflow", def.Name,
				"reason", resp.Reason)
			break
		}
	}
	return resp, nil
}

// ensureInstance loads the session's instance of a definition.
// Lifecycle definitions are instantiated enabled on first sight;
// step-kind definitions join evaluation only after an explicit
// activation. A nil instance with nil error means the definition is not
// active for this session.
func (ev *Evaluator) ensureInstance(sessionID string, def *Definition) (*state.WorkflowInstance, error) {
	inst, err := ev.store.GetInstance(sessionID, def.Name)
	if err == nil {
		if !inst.Enabled {
			return nil, nil
		}
		return inst, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return nil, err
	}
	if def.Kind == KindStep {
		return nil, nil
	}

	inst = newInstance(sessionID, def)
	if err := ev.store.CreateInstance(inst); err != nil {
		return nil, err
	}
	if err := seedSessionVariables(ev.store, sessionID, def); err != nil {
		return nil, err
	}
	return inst, nil
}

// evalDefinition runs one definition's observers then triggers against
// the event. It reports whether a block decision fired.
func (ev *Evaluator) evalDefinition(ctx context.Context, def *Definition, inst *state.WorkflowInstance, event *hooks.Event, resp *hooks.Response) bool {
	ec := &EventContext{
		Event:    event,
		Def:      def,
		Instance: inst,
		Response: resp,
		Store:    ev.store,
		Logger:   ev.logger,
	}

	for i := range def.Observers {
		obs := &def.Observers[i]
		if !observerFires(obs, event) {
			continue
		}
		if ev.fireObserver(ctx, obs, ec) {
			return true
		}
	}

	for _, ref := range def.Triggers[event.Type] {
		if ev.runAction(ctx, ref, ec) {
			return true
		}
	}
	return false
}

// observerFires reports whether an observer matches the event: its `on`
// type equals the event type and every match entry equals the
// corresponding event field.
func observerFires(obs *Observer, event *hooks.Event) bool {
	if obs.On != event.Type {
		return false
	}
	for key, want := range obs.Match {
		got, ok := event.Field(key)
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != want {
			return false
		}
	}
	return true
}

// fireObserver applies a fired observer: either its set map or its
// behavior. It reports whether a block decision fired.
func (ev *Evaluator) fireObserver(ctx context.Context, obs *Observer, ec *EventContext) bool {
	if obs.Behavior != "" {
		behavior, ok := ev.registry.Get(obs.Behavior)
		if !ok {
			ev.logger.Warn("behavior not registered",
				"workflow", ec.Def.Name, "observer", obs.Name, "behavior", obs.Behavior)
			return false
		}
		return ev.settle(behavior(ctx, ec), ec, "observer", obs.Name)
	}

	data, err := templateData(ec)
	if err != nil {
		ev.logger.Warn("observer set skipped",
			"workflow", ec.Def.Name, "observer", obs.Name, "error", err)
		return false
	}
	for _, key := range sortedKeys(obs.Set) {
		value, err := renderValue(obs.Set[key], data)
		if err != nil {
			ev.logger.Warn("observer set render failed",
				"workflow", ec.Def.Name, "observer", obs.Name, "key", key, "error", err)
			continue
		}
		ec.Instance.Variables[key] = value
	}
	return false
}

// runAction executes one trigger action. It reports whether a block
// decision fired.
func (ev *Evaluator) runAction(ctx context.Context, ref ActionRef, ec *EventContext) bool {
	if ev.executor == nil {
		ev.logger.Warn("no action executor configured",
			"workflow", ec.Def.Name, "action", ref.Action)
		return false
	}
	return ev.settle(ev.executor.Execute(ctx, ref.Action, ec, ref.Params), ec, "action", ref.Action)
}

// settle classifies a rule error: block decisions propagate, everything
// else is logged and isolated so the remaining rules still run.
func (ev *Evaluator) settle(err error, ec *EventContext, kind, name string) bool {
	if err == nil {
		return false
	}
	var be *hooks.BlockError
	if errors.As(err, &be) {
		ec.Response.Block(be.Reason)
		return true
	}
	ev.logger.Warn("workflow rule failed",
		"workflow", ec.Def.Name, kind, name, "event", ec.Event.Type, "error", err)
	return false
}

// instanceSnapshot captures the mutable instance fields before rules run
// so persistence can write only what actually changed.
type instanceSnapshot struct {
	variables map[string]any
	step      string
	enabled   bool
}

func snapshotInstance(inst *state.WorkflowInstance) *instanceSnapshot {
	return &instanceSnapshot{
		variables: cloneVars(inst.Variables),
		step:      inst.CurrentStep,
		enabled:   inst.Enabled,
	}
}

// persistInstance merges the instance's mutations over the stored row.
// Merging instead of blindly overwriting keeps a concurrent writer's
// keys intact; untouched instances produce no write at all.
func (ev *Evaluator) persistInstance(inst *state.WorkflowInstance, baseline *instanceSnapshot) error {
	fresh, err := ev.store.GetInstance(inst.SessionID, inst.WorkflowName)
	if err != nil {
		return err
	}

	changed := false
	for key, value := range inst.Variables {
		prev, had := baseline.variables[key]
		if had && reflect.DeepEqual(prev, value) {
			continue
		}
		fresh.Variables[key] = value
		changed = true
	}
	if inst.CurrentStep != baseline.step {
		fresh.CurrentStep = inst.CurrentStep
		changed = true
	}
	if inst.Enabled != baseline.enabled {
		fresh.Enabled = inst.Enabled
		changed = true
	}
	if !changed {
		return nil
	}
	return ev.store.SaveInstance(fresh)
}
