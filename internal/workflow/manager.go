package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Zeeeepa/gobby-sub011/internal/state"
)

// Manager drives workflow activation state for sessions: turning named
// automations on and off and reporting what is active.
type Manager struct {
	store  EngineStore
	source Source
	logger *slog.Logger
}

// NewManager creates a workflow instance manager.
func NewManager(store EngineStore, source Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		source: source,
		logger: logger.With("component", "workflow_manager"),
	}
}

// Activate enables the named workflow for a session. Activation is
// idempotent: an existing instance is re-enabled and keeps its state, a
// missing one is created on the definition's first step with its
// declared variable defaults. Declared session variables merge into the
// session tier without overwriting existing values.
func (m *Manager) Activate(ctx context.Context, sessionID, name string) (*state.WorkflowInstance, error) {
	def, ok := m.source.Definitions().Get(name)
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", name, state.ErrNotFound)
	}
	if _, err := m.store.EnsureSession(sessionID, "", 0); err != nil {
		return nil, err
	}

	inst, err := m.store.GetInstance(sessionID, name)
	switch {
	case errors.Is(err, state.ErrNotFound):
		inst = newInstance(sessionID, def)
		if err := m.store.CreateInstance(inst); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		inst.Enabled = true
		inst.Priority = def.Priority
		inst.ActivatedAt = time.Now()
		if !def.HasStep(inst.CurrentStep) {
			inst.CurrentStep = def.InitialStep()
		}
		for _, key := range sortedKeys(def.Variables) {
			if _, exists := inst.Variables[key]; !exists {
				inst.Variables[key] = def.Variables[key]
			}
		}
		if err := m.store.SaveInstance(inst); err != nil {
			return nil, err
		}
	}

	if err := seedSessionVariables(m.store, sessionID, def); err != nil {
		return nil, err
	}

	m.logger.Info("workflow activated", "session", sessionID, "workflow", name)
	return inst, nil
}

// End disables a workflow instance and clears exactly the variable keys
// its definition declares; undeclared instance keys and all session
// variables survive. With an empty name the most recently activated
// enabled instance is ended. The row itself is kept for audit.
func (m *Manager) End(ctx context.Context, sessionID, name string) (*state.WorkflowInstance, error) {
	var inst *state.WorkflowInstance
	if name == "" {
		enabled, err := m.store.ListEnabledInstances(sessionID)
		if err != nil {
			return nil, err
		}
		if len(enabled) == 0 {
			return nil, fmt.Errorf("no enabled workflow for session %s: %w", sessionID, state.ErrNotFound)
		}
		pick := 0
		for i := 1; i < len(enabled); i++ {
			if enabled[i].ActivatedAt.After(enabled[pick].ActivatedAt) {
				pick = i
			}
		}
		inst = &enabled[pick]
	} else {
		var err error
		inst, err = m.store.GetInstance(sessionID, name)
		if err != nil {
			return nil, err
		}
		if !inst.Enabled {
			return inst, nil
		}
	}

	inst.Enabled = false
	if def, ok := m.source.Definitions().Get(inst.WorkflowName); ok {
		for key := range def.Variables {
			delete(inst.Variables, key)
		}
	}
	if err := m.store.SaveInstance(inst); err != nil {
		return nil, err
	}

	m.logger.Info("workflow ended", "session", sessionID, "workflow", inst.WorkflowName)
	return inst, nil
}

// WorkflowStatus is the reported state of one instance.
type WorkflowStatus struct {
	Name        string         `json:"name"`
	Enabled     bool           `json:"enabled"`
	Priority    int            `json:"priority"`
	CurrentStep string         `json:"current_step"`
	Variables   map[string]any `json:"variables"`
}

// SessionStatus is the full automation state of one session: every
// instance ever activated plus the shared session variables.
type SessionStatus struct {
	Workflows        []WorkflowStatus `json:"workflows"`
	SessionVariables map[string]any   `json:"session_variables"`
}

// Status reports all workflow instances for a session, enabled or not,
// plus the session-variable snapshot.
func (m *Manager) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	instances, err := m.store.ListInstances(sessionID)
	if err != nil {
		return nil, err
	}
	vars, err := m.store.GetSessionVariables(sessionID)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{
		Workflows:        make([]WorkflowStatus, 0, len(instances)),
		SessionVariables: vars,
	}
	for _, inst := range instances {
		status.Workflows = append(status.Workflows, WorkflowStatus{
			Name:        inst.WorkflowName,
			Enabled:     inst.Enabled,
			Priority:    inst.Priority,
			CurrentStep: inst.CurrentStep,
			Variables:   inst.Variables,
		})
	}
	return status, nil
}

// ActiveInstances returns every enabled instance for a session together
// with the session-variable snapshot.
func (m *Manager) ActiveInstances(ctx context.Context, sessionID string) ([]state.WorkflowInstance, map[string]any, error) {
	enabled, err := m.store.ListEnabledInstances(sessionID)
	if err != nil {
		return nil, nil, err
	}
	vars, err := m.store.GetSessionVariables(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return enabled, vars, nil
}

// newInstance builds a fresh enabled instance of def for a session.
func newInstance(sessionID string, def *Definition) *state.WorkflowInstance {
	now := time.Now()
	return &state.WorkflowInstance{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		WorkflowName: def.Name,
		Enabled:      true,
		Priority:     def.Priority,
		CurrentStep:  def.InitialStep(),
		Variables:    cloneVars(def.Variables),
		ActivatedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// seedSessionVariables merges a definition's declared session variables
// into the session tier without overwriting existing values.
func seedSessionVariables(store EngineStore, sessionID string, def *Definition) error {
	for _, key := range sortedKeys(def.SessionVariables) {
		if _, err := store.SetSessionVariableIfAbsent(sessionID, key, def.SessionVariables[key]); err != nil {
			return err
		}
	}
	return nil
}

// cloneVars shallow-copies a variable map, always returning a non-nil
// map.
func cloneVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// sortedKeys returns map keys in sorted order for deterministic
// iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
