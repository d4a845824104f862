package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load-time failures. All of these abort before anything is evaluated
// or dispatched.
var (
	ErrDefinitionCycle   = errors.New("workflow extends cycle")
	ErrInvalidDefinition = errors.New("invalid workflow definition")
	ErrUnknownBehavior   = errors.New("unknown behavior")
	ErrUnknownAction     = errors.New("unknown action")
)

// ActionCatalog reports which trigger actions are executable, letting
// the loader reject unknown action names before anything runs.
type ActionCatalog interface {
	Has(name string) bool
}

// Set is one immutable, fully merged generation of workflow definitions.
// The watcher swaps whole sets; nothing mutates a Set after Load returns
// it.
type Set struct {
	byName    map[string]*Definition
	ordered   []*Definition
	lifecycle []*Definition
}

// Get returns the definition with the given name.
func (s *Set) Get(name string) (*Definition, bool) {
	def, ok := s.byName[name]
	return def, ok
}

// Ordered returns every definition in evaluation order, ascending
// (priority, name).
func (s *Set) Ordered() []*Definition {
	return s.ordered
}

// Lifecycle returns the lifecycle-kind definitions in evaluation order,
// ascending (priority, name).
func (s *Set) Lifecycle() []*Definition {
	return s.lifecycle
}

// Names returns all definition names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions in the set.
func (s *Set) Len() int {
	return len(s.byName)
}

// Loader reads workflow definition YAML files from one or more
// directories. Later directories shadow earlier ones by definition name,
// so passing the global directory before the project directory gives
// project definitions precedence. Missing directories are skipped.
type Loader struct {
	dirs      []string
	behaviors *Registry
	actions   ActionCatalog
	check     *validator.Validate
	logger    *slog.Logger
}

// NewLoader creates a loader over the given directories. behaviors and
// actions may be nil, which skips name validation for that rule kind.
func NewLoader(dirs []string, behaviors *Registry, actions ActionCatalog, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dirs:      dirs,
		behaviors: behaviors,
		actions:   actions,
		check:     validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("component", "workflow_loader"),
	}
}

// Load reads every definition file, resolves extends chains, and
// validates the merged result. Any structural problem fails the whole
// load.
func (l *Loader) Load() (*Set, error) {
	raw, err := l.readAll()
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]*Definition, len(raw))
	memo := make(map[string]*Definition, len(raw))
	for name := range raw {
		def, err := resolveExtends(raw, memo, map[string]bool{}, name)
		if err != nil {
			return nil, err
		}
		resolved[name] = def
	}

	set := &Set{byName: resolved}
	for _, def := range resolved {
		if def.Kind == "" {
			def.Kind = KindLifecycle
		}
		if err := l.validate(def); err != nil {
			return nil, err
		}
		set.ordered = append(set.ordered, def)
		if def.Kind == KindLifecycle {
			set.lifecycle = append(set.lifecycle, def)
		}
	}

	sortDefinitions(set.ordered)
	sortDefinitions(set.lifecycle)

	l.logger.Debug("workflow definitions loaded",
		"definitions", len(resolved),
		"lifecycle", len(set.lifecycle))
	return set, nil
}

// sortDefinitions orders definitions ascending by (priority, name).
func sortDefinitions(defs []*Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority < defs[j].Priority
		}
		return defs[i].Name < defs[j].Name
	})
}

// readAll parses every YAML file across the loader's directories into
// unresolved definitions, later directories shadowing earlier ones.
func (l *Loader) readAll() (map[string]*Definition, error) {
	raw := make(map[string]*Definition)
	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read workflow dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !isYAMLFile(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			def, err := parseDefinitionFile(path)
			if err != nil {
				return nil, err
			}
			if prev, ok := raw[def.Name]; ok && prev != nil {
				l.logger.Debug("workflow definition shadowed", "name", def.Name, "file", path)
			}
			raw[def.Name] = def
		}
	}
	return raw, nil
}

// parseDefinitionFile reads one YAML definition.
func parseDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file %s: %w", path, err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow file %s: %w", path, err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("workflow file %s declares no name: %w", path, ErrInvalidDefinition)
	}
	return &def, nil
}

// resolveExtends walks a definition's single-parent extends chain
// depth-first, merging child over parent. The visiting set catches
// self-references, mutual references, and longer cycles.
func resolveExtends(raw, memo map[string]*Definition, visiting map[string]bool, name string) (*Definition, error) {
	if def, ok := memo[name]; ok {
		return def, nil
	}
	if visiting[name] {
		return nil, fmt.Errorf("workflow %s: %w", name, ErrDefinitionCycle)
	}

	def, ok := raw[name]
	if !ok {
		return nil, fmt.Errorf("workflow extends unknown definition %s: %w", name, ErrInvalidDefinition)
	}
	if def.Extends == "" {
		memo[name] = def
		return def, nil
	}

	visiting[name] = true
	parent, err := resolveExtends(raw, memo, visiting, def.Extends)
	delete(visiting, name)
	if err != nil {
		return nil, err
	}

	merged := def.merged(parent)
	memo[name] = merged
	return merged, nil
}

// validate applies struct tags plus the structural rules the tags cannot
// express.
func (l *Loader) validate(def *Definition) error {
	if err := l.check.Struct(def); err != nil {
		return fmt.Errorf("workflow %s: %w: %v", def.Name, ErrInvalidDefinition, err)
	}

	if def.Kind == KindStep && len(def.Steps) == 0 {
		return fmt.Errorf("workflow %s: step workflow declares no steps: %w", def.Name, ErrInvalidDefinition)
	}

	for _, obs := range def.Observers {
		hasSet := len(obs.Set) > 0
		hasBehavior := obs.Behavior != ""
		if hasSet == hasBehavior {
			return fmt.Errorf("workflow %s observer %s: declare exactly one of set or behavior: %w",
				def.Name, obs.Name, ErrInvalidDefinition)
		}
		if hasBehavior && l.behaviors != nil && !l.behaviors.Has(obs.Behavior) {
			return fmt.Errorf("workflow %s observer %s: %w %q",
				def.Name, obs.Name, ErrUnknownBehavior, obs.Behavior)
		}
	}

	if l.actions != nil {
		for eventType, refs := range def.Triggers {
			for _, ref := range refs {
				if !l.actions.Has(ref.Action) {
					return fmt.Errorf("workflow %s trigger %s: %w %q",
						def.Name, eventType, ErrUnknownAction, ref.Action)
				}
			}
		}
	}
	return nil
}

// isYAMLFile reports whether the file name has a YAML extension.
func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
