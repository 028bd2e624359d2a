// Package environment launches the simulator, builds the robot rig and
// hands out task environments by task name.
//
// An Environment owns at most one simulator process and at most one active
// task. It is meant to be driven by a single goroutine.
package environment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"rlbench-env/internal/action"
	"rlbench-env/internal/config"
	ilogger "rlbench-env/internal/logger"
	"rlbench-env/internal/metrics"
	"rlbench-env/internal/robot"
	"rlbench-env/internal/scene"
	"rlbench-env/internal/sim"
	"rlbench-env/internal/task"
)

const (
	// SceneFile is the scene every launch loads from the assets directory.
	SceneFile = "task_design.ttt"
	// TaskModelsDir holds the task model files under the assets directory.
	TaskModelsDir = "task_ttms"
	// SimulationTimestep is the physics step, in seconds.
	SimulationTimestep = 0.005
)

var (
	ErrAlreadyLaunched    = errors.New("environment already launched")
	ErrNotLaunched        = errors.New("environment not launched")
	ErrDatasetRootMissing = errors.New("dataset root does not exist")
)

var newSessionID = func() string { return uuid.NewString() }

// Options configures an Environment. Zero values select the defaults: the
// process launcher, the default task registry and the default observation
// config.
type Options struct {
	ActionMode      action.ActionMode
	DatasetRoot     string
	ObsConfig       *config.ObservationConfig
	Headless        bool
	StaticPositions bool
	AssetsDir       string
	Backend         string
	Binary          string
	Launcher        sim.Launcher
	Registry        *task.Registry
	Metrics         *metrics.Metrics
}

type Environment struct {
	opts      Options
	obsConfig config.ObservationConfig

	sim       sim.Handle
	robot     *robot.Robot
	scene     *scene.Scene
	prevTask  task.Task
	sessionID string
}

// New validates the configuration. A non-empty DatasetRoot must exist; this
// is checked before any simulator interaction.
func New(opts Options) (*Environment, error) {
	if root := opts.DatasetRoot; len(root) > 0 {
		if _, err := os.Stat(root); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrDatasetRootMissing, root)
			}
			return nil, fmt.Errorf("check dataset root %s: %w", root, err)
		}
	}

	obs := config.DefaultObservationConfig()
	if opts.ObsConfig != nil {
		obs = *opts.ObsConfig
	}
	if opts.Launcher == nil {
		opts.Launcher = sim.ProcessLauncher{}
	}
	if opts.Registry == nil {
		opts.Registry = task.Default()
	}
	if strings.TrimSpace(opts.AssetsDir) == "" {
		opts.AssetsDir = DefaultAssetsDir()
	}

	return &Environment{opts: opts, obsConfig: obs}, nil
}

// DefaultAssetsDir is $RLBENCH_ASSETS_DIR, or "assets" next to the
// executable.
func DefaultAssetsDir() string {
	if dir := strings.TrimSpace(os.Getenv("RLBENCH_ASSETS_DIR")); dir != "" {
		return dir
	}
	exe, err := os.Executable()
	if err != nil {
		return "assets"
	}
	return filepath.Join(filepath.Dir(exe), "assets")
}

// ScenePath is the scene file Launch loads.
func (e *Environment) ScenePath() string {
	return filepath.Join(e.opts.AssetsDir, SceneFile)
}

// TaskModelsPath is the directory DiscoverModels scans.
func (e *Environment) TaskModelsPath() string {
	return filepath.Join(e.opts.AssetsDir, TaskModelsDir)
}

func (e *Environment) Launched() bool { return e.sim != nil }

// Launch starts the simulator with the fixed scene, sets the timestep,
// builds the Panda rig and the scene, and applies the arm control flags of
// the configured action mode. If anything fails after the simulator started
// it is shut down again and the Environment stays unlaunched.
func (e *Environment) Launch(ctx context.Context) (err error) {
	if e.sim != nil {
		return ErrAlreadyLaunched
	}
	defer func() { e.opts.Metrics.ObserveLaunch(err) }()

	flags, err := action.ArmControlFlags(e.opts.ActionMode.Arm)
	if err != nil {
		return err
	}

	handle, err := e.opts.Launcher.Launch(ctx, sim.LaunchOptions{
		ScenePath: e.ScenePath(),
		Headless:  e.opts.Headless,
		Backend:   e.opts.Backend,
		Binary:    e.opts.Binary,
	})
	if err != nil {
		return fmt.Errorf("launch simulator: %w", err)
	}

	r, sc, err := e.setup(handle, flags)
	if err != nil {
		if shutdownErr := handle.Shutdown(); shutdownErr != nil {
			ilogger.LogWarn(fmt.Sprintf("Failed to stop simulator after launch error: %v", shutdownErr))
		}
		return err
	}

	e.sim = handle
	e.robot = r
	e.scene = sc
	e.sessionID = newSessionID()
	ilogger.LogInfo(fmt.Sprintf("Environment launched: session=%s arm=%s pid=%d", e.sessionID, e.opts.ActionMode.Arm, handle.PID()))
	return nil
}

func (e *Environment) setup(handle sim.Handle, flags action.ControlFlags) (*robot.Robot, *scene.Scene, error) {
	if err := handle.SetSimulationTimestep(SimulationTimestep); err != nil {
		return nil, nil, fmt.Errorf("set simulation timestep: %w", err)
	}

	r := robot.New(robot.NewPanda(handle), robot.NewPandaGripper(handle))
	sc := scene.New(handle, r, e.obsConfig)

	if err := applyControlFlags(r.Arm, flags); err != nil {
		return nil, nil, fmt.Errorf("configure arm for %s: %w", e.opts.ActionMode.Arm, err)
	}
	return r, sc, nil
}

func applyControlFlags(arm robot.Arm, flags action.ControlFlags) error {
	if err := arm.SetControlLoopEnabled(flags.ControlLoop); err != nil {
		return err
	}
	if flags.LockedAtZeroVelocity != nil {
		return arm.SetMotorLockedAtZeroVelocity(*flags.LockedAtZeroVelocity)
	}
	return nil
}

// Shutdown stops the simulator and drops the robot, the scene and the
// active task. The task is not unloaded: its objects go away with the
// simulator. Shutdown of an unlaunched Environment returns ErrNotLaunched.
func (e *Environment) Shutdown() error {
	if e.sim == nil {
		return ErrNotLaunched
	}
	handle := e.sim
	e.sim = nil
	e.robot = nil
	e.scene = nil
	e.prevTask = nil
	e.opts.Metrics.ObserveShutdown()

	if err := handle.Shutdown(); err != nil {
		return fmt.Errorf("shutdown simulator: %w", err)
	}
	ilogger.LogInfo(fmt.Sprintf("Environment shut down: session=%s", e.sessionID))
	return nil
}

// GetTask unloads the previous task, if any, then builds a new one with
// factory. An unload failure is logged and does not stop the new task from
// loading. A factory error is returned unchanged and leaves no active task.
func (e *Environment) GetTask(factory task.Factory) (*TaskEnvironment, error) {
	if e.sim == nil {
		return nil, ErrNotLaunched
	}
	if factory == nil {
		return nil, fmt.Errorf("get task: nil factory")
	}

	if e.prevTask != nil {
		prev := e.prevTask
		e.prevTask = nil
		if err := prev.Unload(); err != nil {
			e.opts.Metrics.ObserveUnloadFailure()
			ilogger.LogWarn(fmt.Sprintf("Failed to unload task %s: %v", prev.Name(), err))
		}
	}

	t, err := factory(e.sim, e.robot)
	if err != nil {
		return nil, err
	}
	e.prevTask = t

	return &TaskEnvironment{
		Sim:               e.sim,
		Robot:             e.robot,
		Scene:             e.scene,
		Task:              t,
		ActionMode:        e.opts.ActionMode,
		DatasetRoot:       e.opts.DatasetRoot,
		ObservationConfig: e.obsConfig,
		StaticPositions:   e.opts.StaticPositions,
		SessionID:         e.sessionID,
	}, nil
}

// GetTaskByName resolves name through the registry and loads it.
func (e *Environment) GetTaskByName(name string) (*TaskEnvironment, error) {
	if e.sim == nil {
		return nil, ErrNotLaunched
	}
	factory, err := e.opts.Registry.Resolve(name)
	if err != nil {
		e.opts.Metrics.ObserveTaskLoad(name, err)
		return nil, err
	}
	te, err := e.GetTask(factory)
	e.opts.Metrics.ObserveTaskLoad(name, err)
	if err != nil {
		return nil, err
	}
	ilogger.LogInfo(fmt.Sprintf("Task loaded: %s", te.Task.Name()))
	return te, nil
}

// ActiveTask returns the most recently loaded task, or nil.
func (e *Environment) ActiveTask() task.Task { return e.prevTask }

// SessionID identifies the current launch. It is empty before the first
// Launch.
func (e *Environment) SessionID() string { return e.sessionID }

func (e *Environment) Registry() *task.Registry { return e.opts.Registry }
