package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/Zeeeepa/gobby-sub011/internal/orchestrator"
	"github.com/Zeeeepa/gobby-sub011/internal/workflow"
)

// Builtin action names. Definitions reference these from trigger action
// lists.
const (
	ActionLog                = "log"
	ActionSetSessionVariable = "set_session_variable"
	ActionAdvanceStep        = "advance_step"
	ActionBlock              = "block"
	ActionInjectContext      = "inject_context"
	ActionOrchestrate        = "orchestrate"
)

// Dispatcher launches agents for the ready descendants of a task. The
// orchestrate action delegates to it.
type Dispatcher interface {
	OrchestrateReadyTasks(ctx context.Context, parentTaskID, parentSessionID string, maxConcurrent int) (*orchestrator.Result, error)
}

// RegisterBuiltins registers the builtin actions on e. The orchestrate
// action is only registered when disp is non-nil, so definitions
// referencing it fail at load time in engines without a dispatcher.
func RegisterBuiltins(e *Executor, disp Dispatcher) {
	e.Register(logAction{})
	e.Register(setVariableAction{})
	e.Register(advanceStepAction{})
	e.Register(blockAction{})
	e.Register(injectContextAction{})
	if disp != nil {
		e.Register(orchestrateAction{disp: disp})
	}
}

// logAction writes a templated message to the engine log.
type logAction struct{}

func (logAction) Name() string { return ActionLog }

func (logAction) Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error {
	message, err := stringParam(ec, params, "message")
	if err != nil {
		return err
	}
	if message == "" {
		return fmt.Errorf("log action needs a message param")
	}

	logger := ec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"workflow", ec.Def.Name, "event", ec.Event.Type}
	switch level, _ := stringParam(ec, params, "level"); level {
	case "debug":
		logger.Debug(message, attrs...)
	case "warn":
		logger.Warn(message, attrs...)
	default:
		logger.Info(message, attrs...)
	}
	return nil
}

// setVariableAction writes one session variable, visible to every
// workflow on the session.
type setVariableAction struct{}

func (setVariableAction) Name() string { return ActionSetSessionVariable }

func (setVariableAction) Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error {
	key, err := stringParam(ec, params, "key")
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("set_session_variable action needs a key param")
	}
	value, err := workflow.RenderParam(ec, params["value"])
	if err != nil {
		return err
	}
	return ec.Store.SetSessionVariable(ec.Event.SessionID, key, value)
}

// advanceStepAction moves a step-kind instance forward: to the `to`
// param when given, otherwise to the next declared step. At the final
// step it is a no-op; ending a workflow is an explicit operation.
type advanceStepAction struct{}

func (advanceStepAction) Name() string { return ActionAdvanceStep }

func (advanceStepAction) Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error {
	if ec.Def.Kind != workflow.KindStep {
		return fmt.Errorf("workflow %s is not step-kind, cannot advance", ec.Def.Name)
	}

	to, err := stringParam(ec, params, "to")
	if err != nil {
		return err
	}
	if to != "" {
		if !ec.Def.HasStep(to) {
			return fmt.Errorf("workflow %s has no step %q", ec.Def.Name, to)
		}
		ec.Instance.CurrentStep = to
		return nil
	}

	next, ok := ec.Def.NextStep(ec.Instance.CurrentStep)
	if !ok {
		return nil
	}
	ec.Instance.CurrentStep = next
	return nil
}

// blockAction blocks the event with a templated reason.
type blockAction struct{}

func (blockAction) Name() string { return ActionBlock }

func (blockAction) Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error {
	reason, err := stringParam(ec, params, "reason")
	if err != nil {
		return err
	}
	if reason == "" {
		reason = fmt.Sprintf("blocked by workflow %s", ec.Def.Name)
	}
	return hooks.Blocked(reason)
}

// injectContextAction adds a templated text block to the response
// context.
type injectContextAction struct{}

func (injectContextAction) Name() string { return ActionInjectContext }

func (injectContextAction) Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error {
	text, err := stringParam(ec, params, "text")
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("inject_context action needs a text param")
	}
	ec.Response.AddContext(text)
	return nil
}

// orchestrateAction dispatches the ready descendants of a task. The
// task comes from the `task` param or, when absent, from the session's
// tracked current task.
type orchestrateAction struct {
	disp Dispatcher
}

func (orchestrateAction) Name() string { return ActionOrchestrate }

func (a orchestrateAction) Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error {
	taskID, err := stringParam(ec, params, "task")
	if err != nil {
		return err
	}
	if taskID == "" {
		value, ok, err := ec.Store.GetSessionVariable(ec.Event.SessionID, workflow.SessionTaskVariable)
		if err != nil {
			return err
		}
		if ok {
			taskID = fmt.Sprintf("%v", value)
		}
	}
	if taskID == "" {
		return fmt.Errorf("orchestrate action needs a task param or a tracked current task")
	}

	result, err := a.disp.OrchestrateReadyTasks(ctx, taskID, ec.Event.SessionID, intParam(params, "max_concurrent", 0))
	if err != nil {
		return err
	}
	ec.Response.AddContext(fmt.Sprintf("orchestrator: launched %d agent(s), %d task(s) waiting", len(result.Spawned), len(result.Skipped)))
	return nil
}

// stringParam renders one param and returns it as a string. A missing
// param is the empty string, not an error.
func stringParam(ec *workflow.EventContext, params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, err := workflow.RenderParam(ec, raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", value), nil
}

// intParam reads one numeric param, tolerating the int and float forms
// the YAML and JSON decoders produce.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
