package task

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rlbench-env/internal/robot"
	"rlbench-env/internal/sim"
)

// ModelExt is the extension of task model files.
const ModelExt = ".ttm"

// ModelTask is a task whose objects live in a model file. The model is
// loaded into the scene on construction and removed again by Unload.
type ModelTask struct {
	name   string
	path   string
	caller sim.Caller
	robot  *robot.Robot

	mu       sync.Mutex
	unloaded bool
}

// NewModelTask loads the model at path into the simulator.
func NewModelTask(name, path string, caller sim.Caller, r *robot.Robot) (*ModelTask, error) {
	if caller == nil {
		return nil, fmt.Errorf("load task %s: no simulator connection", name)
	}
	if _, err := caller.Call(sim.Command{Op: sim.OpLoadModel, Object: name, Args: map[string]any{"path": path}}); err != nil {
		return nil, fmt.Errorf("load task %s: %w", name, err)
	}
	return &ModelTask{name: name, path: path, caller: caller, robot: r}, nil
}

// ModelFactory returns a Factory building a ModelTask from path.
func ModelFactory(name, path string) Factory {
	return func(caller sim.Caller, r *robot.Robot) (Task, error) {
		return NewModelTask(name, path, caller, r)
	}
}

func (t *ModelTask) Name() string        { return t.name }
func (t *ModelTask) Path() string        { return t.path }
func (t *ModelTask) Robot() *robot.Robot { return t.robot }

// Unload removes the task's objects from the scene. Only the first call
// reaches the simulator.
func (t *ModelTask) Unload() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unloaded {
		return nil
	}
	t.unloaded = true
	if _, err := t.caller.Call(sim.Command{Op: sim.OpRemoveModel, Object: t.name}); err != nil {
		return fmt.Errorf("unload task %s: %w", t.name, err)
	}
	return nil
}

// DiscoverModels registers a ModelTask factory for every model file in dir.
// Names that are already registered are skipped so explicitly registered
// tasks take precedence. It returns the names it registered.
func DiscoverModels(reg *Registry, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan task models: %w", err)
	}

	var added []string
	var errs error
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ModelExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := reg.lookup(ClassName(name)); ok {
			continue
		}
		if err := reg.Register(name, ModelFactory(name, filepath.Join(dir, e.Name()))); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		added = append(added, name)
	}
	return added, errs
}
