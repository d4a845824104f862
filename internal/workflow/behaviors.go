package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/Zeeeepa/gobby-sub011/pkg/models"
)

// Builtin behavior names. Definitions reference these from observer
// `behavior` fields.
const (
	BehaviorInjectContext       = "inject_context"
	BehaviorDetectPrematureStop = "detect_premature_stop"
	BehaviorTrackTaskTransition = "track_task_transition"
)

// SessionTaskVariable is the session variable holding the task ID the
// session is currently working on. track_task_transition writes it and
// detect_premature_stop reads it.
const SessionTaskVariable = "current_task"

// TaskReader is the task lookup surface the task-aware builtin
// behaviors need.
type TaskReader interface {
	GetTask(id string) (*models.Task, error)
	ListSubtree(rootID string) ([]models.Task, error)
}

// RegisterBuiltins registers the builtin behaviors on reg. The
// task-aware behaviors are only registered when tasks is non-nil, so
// definitions referencing them fail at load time instead of silently
// doing nothing at runtime.
func RegisterBuiltins(reg *Registry, tasks TaskReader) {
	reg.Register(BehaviorInjectContext, injectContextBehavior)
	if tasks == nil {
		return
	}
	reg.Register(BehaviorDetectPrematureStop, detectPrematureStop(tasks))
	reg.Register(BehaviorTrackTaskTransition, trackTaskTransition)
}

// injectContextBehavior adds the instance's view of its variables to the
// response context. Instance variables shadow session variables, same as
// template rendering.
func injectContextBehavior(ctx context.Context, ec *EventContext) error {
	sessionVars, err := ec.Store.GetSessionVariables(ec.Event.SessionID)
	if err != nil {
		return err
	}

	vars := make(map[string]any, len(sessionVars)+len(ec.Instance.Variables))
	for k, v := range sessionVars {
		vars[k] = v
	}
	for k, v := range ec.Instance.Variables {
		vars[k] = v
	}

	lines := []string{fmt.Sprintf("workflow %s is on step %s", ec.Def.Name, ec.Instance.CurrentStep)}
	for _, key := range sortedKeys(vars) {
		lines = append(lines, fmt.Sprintf("%s: %v", key, vars[key]))
	}
	ec.Response.AddContext(strings.Join(lines, "\n"))
	return nil
}

// detectPrematureStop blocks stop events while the session's current
// task still has unfinished work in its subtree. Sessions without a
// tracked task stop freely.
func detectPrematureStop(tasks TaskReader) Behavior {
	return func(ctx context.Context, ec *EventContext) error {
		taskID, ok, err := ec.Store.GetSessionVariable(ec.Event.SessionID, SessionTaskVariable)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		id := fmt.Sprintf("%v", taskID)
		if id == "" {
			return nil
		}

		subtree, err := tasks.ListSubtree(id)
		if err != nil {
			return err
		}
		open := 0
		for i := range subtree {
			if subtree[i].Status != models.TaskStatusClosed {
				open++
			}
		}
		if open == 0 {
			return nil
		}
		return hooks.Blocked(fmt.Sprintf("task %s still has %d unfinished task(s); close them or end the session explicitly", id, open))
	}
}

// trackTaskTransition records the task a session has moved onto. The
// task ID comes from the event's tool input; events without one are
// ignored.
func trackTaskTransition(ctx context.Context, ec *EventContext) error {
	value, ok := ec.Event.Field("task_id")
	if !ok {
		return nil
	}
	id := fmt.Sprintf("%v", value)
	if id == "" {
		return nil
	}
	return ec.Store.SetSessionVariable(ec.Event.SessionID, SessionTaskVariable, id)
}
