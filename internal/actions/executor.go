// Package actions implements the named trigger actions workflow
// definitions invoke, and the executor that resolves and runs them.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Zeeeepa/gobby-sub011/internal/workflow"
)

// Action is one named executable trigger reaction.
type Action interface {
	Name() string
	Execute(ctx context.Context, ec *workflow.EventContext, params map[string]any) error
}

// Executor maps action names to implementations. It doubles as the
// loader's catalog, so a definition referencing an unregistered action
// is rejected before any event is evaluated.
type Executor struct {
	mu      sync.RWMutex
	actions map[string]Action
	logger  *slog.Logger
}

var (
	_ workflow.ActionExecutor = (*Executor)(nil)
	_ workflow.ActionCatalog  = (*Executor)(nil)
)

// NewExecutor returns an empty action executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		actions: make(map[string]Action),
		logger:  logger.With("component", "actions"),
	}
}

// Register adds an action, replacing any previous registration under
// the same name.
func (e *Executor) Register(a Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions[a.Name()] = a
}

// Has reports whether an action is registered under name.
func (e *Executor) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.actions[name]
	return ok
}

// Names returns all registered action names, sorted.
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.actions))
	for name := range e.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named action against the event context.
func (e *Executor) Execute(ctx context.Context, name string, ec *workflow.EventContext, params map[string]any) error {
	e.mu.RLock()
	a, ok := e.actions[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("action '%s' not registered", name)
	}

	e.logger.Debug("executing action",
		"action", name,
		"workflow", ec.Def.Name,
		"event", ec.Event.Type,
	)
	return a.Execute(ctx, ec, params)
}
