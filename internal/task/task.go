// Package task resolves task names to factories and defines the built-in
// model-backed task kind.
package task

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"rlbench-env/internal/robot"
	"rlbench-env/internal/sim"
)

// ErrUnknownTask is wrapped by every resolution failure.
var ErrUnknownTask = errors.New("unknown task")

// Task is one unit of robot work loaded into the running simulator.
type Task interface {
	Name() string
	Unload() error
}

// Factory builds a task against the current simulator and robot rig.
type Factory func(caller sim.Caller, r *robot.Robot) (Task, error)

// ClassName converts a snake-case task name, optionally with a file
// extension, to its class name: "reach_target.py" -> "ReachTarget".
func ClassName(taskName string) string {
	var sb strings.Builder
	for _, word := range strings.Split(taskStem(taskName), "_") {
		if word == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(word)
		sb.WriteRune(unicode.ToUpper(r))
		sb.WriteString(word[size:])
	}
	return sb.String()
}

// taskStem strips surrounding space and a file extension from a task name.
func taskStem(taskName string) string {
	name := strings.TrimSpace(taskName)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// isSnakeName reports whether stem is lower snake case with no empty words,
// the only form a task can be loaded by.
func isSnakeName(stem string) bool {
	if stem == "" {
		return false
	}
	for _, word := range strings.Split(stem, "_") {
		if word == "" {
			return false
		}
		for _, r := range word {
			if unicode.IsUpper(r) || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return false
			}
		}
	}
	return true
}

// SnakeName converts a class name back to its snake-case task name:
// "ReachTarget" -> "reach_target". Snake-case input is returned unchanged.
func SnakeName(className string) string {
	var sb strings.Builder
	for i, r := range className {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type entry struct {
	name    string
	factory Factory
}

// Registry maps class names to task factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

var defaultRegistry = NewRegistry()

// Default is the process-wide registry the CLI resolves task names against.
func Default() *Registry { return defaultRegistry }

// Register adds a factory under name, which may be given in snake case or
// as the class name. Registering the same class twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register task %q: nil factory", name)
	}
	class := ClassName(name)
	if class == "" {
		return fmt.Errorf("register task %q: empty name", name)
	}
	snake := taskStem(name)
	if strings.Contains("_"+snake+"_", "__") {
		return fmt.Errorf("register task %q: empty word in name", name)
	}
	if snake == class {
		snake = SnakeName(class)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[class]; exists {
		return fmt.Errorf("task %s already registered", class)
	}
	r.entries[class] = entry{name: snake, factory: factory}
	return nil
}

// MustRegister is Register for package init code.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve finds the factory for a snake-case task name. Names with empty
// words or upper-case letters are rejected as unknown tasks.
func (r *Registry) Resolve(taskName string) (Factory, error) {
	stem := taskStem(taskName)
	class := ClassName(taskName)

	var cause error
	switch {
	case stem == "":
		cause = fmt.Errorf("%w: empty task name", ErrUnknownTask)
	case !isSnakeName(stem):
		cause = fmt.Errorf("%w: %q is not a snake_case task name", ErrUnknownTask, stem)
	default:
		if e, ok := r.lookup(class); ok {
			return e.factory, nil
		}
		cause = fmt.Errorf("%w: no task class %q registered", ErrUnknownTask, class)
	}
	return nil, fmt.Errorf("tried to interpret %s as a task, but failed; only valid tasks can be loaded: %w", taskName, cause)
}

func (r *Registry) lookup(class string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[class]
	return e, ok
}

// Names lists the registered tasks in snake case, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
