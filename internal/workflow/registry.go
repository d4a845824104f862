package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/Zeeeepa/gobby-sub011/internal/hooks"
	"github.com/Zeeeepa/gobby-sub011/internal/state"
)

// EngineStore is the storage surface the workflow engine needs: session
// rows, workflow instances, and the shared session-variable tier.
type EngineStore interface {
	state.SessionStore
	state.InstanceStore
	state.VariableStore
}

// EventContext is everything a behavior or trigger action can see and
// mutate while one event is handled against one instance. Instance
// mutations are persisted by the evaluator after the definition finishes;
// anything written through Store is durable immediately.
type EventContext struct {
	Event    *hooks.Event
	Def      *Definition
	Instance *state.WorkflowInstance
	Response *hooks.Response
	Store    EngineStore
	Logger   *slog.Logger
}

// Behavior is a named reusable reaction invoked by observers. Returning
// an error wrapping hooks.BlockError blocks the event; any other error
// is logged and isolated.
type Behavior func(ctx context.Context, ec *EventContext) error

// Registry maps behavior names to implementations. Observer behavior
// names are validated against it when definitions load, so an unknown
// name is caught before any event is evaluated.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]Behavior
}

// NewRegistry returns an empty behavior registry.
func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]Behavior)}
}

// Register adds a behavior under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, b Behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors[name] = b
}

// Get returns the behavior registered under name.
func (r *Registry) Get(name string) (Behavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.behaviors[name]
	return b, ok
}

// Has reports whether a behavior is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.behaviors[name]
	return ok
}

// Names returns all registered behavior names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.behaviors))
	for name := range r.behaviors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
