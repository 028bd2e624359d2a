package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rlbench-env/internal/action"
	config "rlbench-env/internal/config"
	"rlbench-env/internal/environment"
	"rlbench-env/internal/metrics"
	"rlbench-env/internal/sim"
	"rlbench-env/internal/task"
)

const name = "rlbench-env"

var version = "0.3.0"

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

type cliOptions struct {
	ArmMode         string
	GripperMode     string
	DatasetRoot     string
	ObsConfig       string
	AssetsDir       string
	Backend         string
	Simulator       string
	Headless        bool
	StaticPositions bool
	Hold            bool
	StatusAddr      string
	LaunchTimeout   int

	Version    bool
	ConfigFile string
}

var stdout io.Writer = os.Stdout

var (
	exitFn       = os.Exit
	newLauncher  = func() sim.Launcher { return sim.ProcessLauncher{} }
	taskRegistry = task.Default
)

// signalContext returns the context a run is bound to. It is cancelled on
// SIGINT or SIGTERM so a pending launch kills its simulator and a launched
// one is shut down before exit.
var signalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Run is the program entrypoint for cmd/rlbench-env/main.go.
func Run() {
	loadDotEnv()
	exitFn(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(argv)
	if err := cmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s [flags] <task>", name),
		Short:         "Launch the RLBench simulator and load a task",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Fprintf(stdout, "%s version %s\n", name, version)
				return nil
			}

			exitCode := runWithLoggerAndCleanup(func() int {
				v, err := config.NewViper(opts.ConfigFile)
				if err != nil {
					logError(err.Error())
					return 1
				}

				cfg, err := buildConfig(cmd, args, opts, v)
				if err != nil {
					logError(err.Error())
					return 1
				}
				logInfo(fmt.Sprintf("Parsed args: task=%s arm=%s backend=%s headless=%v", cfg.Task, cfg.ArmActionMode, cfg.Backend, cfg.Headless))
				return runEnvironment(cmd.Context(), cfg)
			})

			if exitCode == 0 {
				return nil
			}
			return exitError{code: exitCode}
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	addRootFlags(cmd.Flags(), opts)
	cmd.AddCommand(newVersionCommand(), newCleanupCommand(), newTasksCommand(), newModesCommand())

	return cmd
}

func addRootFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: $HOME/.rlbench/config.*)")
	fs.BoolVarP(&opts.Version, "version", "v", false, "Print version and exit")

	fs.StringVar(&opts.ArmMode, "action-mode", action.AbsJointVelocity.String(), "Arm action mode (see `modes`)")
	fs.StringVar(&opts.GripperMode, "gripper-mode", action.OpenAmount.String(), "Gripper action mode")
	fs.StringVar(&opts.DatasetRoot, "dataset-root", "", "Dataset root; must exist when set")
	fs.StringVar(&opts.ObsConfig, "obs-config", "", "Observation config file (.json, .yaml)")
	fs.StringVar(&opts.AssetsDir, "assets-dir", "", "Directory holding task_design.ttt and task_ttms/ (also via RLBENCH_ASSETS_DIR)")
	fs.StringVar(&opts.Backend, "backend", sim.DefaultBackend, "Simulator backend (coppeliasim, bridge)")
	fs.StringVar(&opts.Simulator, "simulator", "", "Simulator executable override")
	fs.BoolVar(&opts.Headless, "headless", false, "Run the simulator without a window")
	fs.BoolVar(&opts.StaticPositions, "static-positions", false, "Keep task object positions fixed across variations")
	fs.BoolVar(&opts.Hold, "hold", false, "Keep the simulator running until interrupted")
	fs.StringVar(&opts.StatusAddr, "status-addr", "", "Serve /healthz, /task and /metrics on this address while holding")
	fs.IntVar(&opts.LaunchTimeout, "launch-timeout", config.DefaultLaunchTimeout, "Seconds to wait for the simulator to load the scene (0 = no limit)")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version and exit",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(stdout, "%s version %s\n", name, version)
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "cleanup",
		Short:         "Remove log files of finished runs",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runCleanupMode()
			if code == 0 {
				return nil
			}
			return exitError{code: code}
		},
	}
}

func runWithLoggerAndCleanup(fn func() int) (exitCode int) {
	logger, err := NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to initialize logger: %v\n", err)
		return 1
	}
	setLogger(logger)

	defer func() {
		logger := activeLogger()
		if logger != nil {
			logger.Flush()
		}
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: failed to close logger: %v\n", err)
		}
		if logger == nil {
			return
		}

		if exitCode != 0 {
			if entries := logger.ExtractRecentErrors(10); len(entries) > 0 {
				fmt.Fprintln(os.Stderr, "\n=== Recent Errors ===")
				for _, entry := range entries {
					fmt.Fprintln(os.Stderr, entry)
				}
				fmt.Fprintf(os.Stderr, "Log file: %s\n", logger.Path())
			}
			return
		}
		_ = logger.RemoveLogFile()
	}()
	defer runCleanupHook()

	// Clean up stale logs from previous runs.
	scheduleStartupCleanup()

	return fn()
}

// stringSetting returns the flag value when the flag was set, else the
// viper value, else the flag default.
func stringSetting(cmd *cobra.Command, v *viper.Viper, key string, flagValue string) string {
	if cmd.Flags().Changed(key) {
		return strings.TrimSpace(flagValue)
	}
	if val := strings.TrimSpace(v.GetString(key)); val != "" {
		return val
	}
	return strings.TrimSpace(flagValue)
}

func boolSetting(cmd *cobra.Command, v *viper.Viper, key string, flagValue bool) bool {
	if cmd.Flags().Changed(key) {
		return flagValue
	}
	if v.IsSet(key) {
		return config.ParseBoolFlag(v.GetString(key), flagValue)
	}
	return flagValue
}

func buildConfig(cmd *cobra.Command, args []string, opts *cliOptions, v *viper.Viper) (*config.Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("task required")
	}
	if len(args) > 1 {
		return nil, fmt.Errorf("expected one task, got %d: %s", len(args), strings.Join(args, " "))
	}
	taskName := strings.TrimSpace(args[0])
	if err := config.ValidateTaskName(taskName); err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Task:            taskName,
		ArmActionMode:   stringSetting(cmd, v, "action-mode", opts.ArmMode),
		GripperMode:     stringSetting(cmd, v, "gripper-mode", opts.GripperMode),
		DatasetRoot:     stringSetting(cmd, v, "dataset-root", opts.DatasetRoot),
		ObsConfigFile:   stringSetting(cmd, v, "obs-config", opts.ObsConfig),
		AssetsDir:       stringSetting(cmd, v, "assets-dir", opts.AssetsDir),
		Backend:         stringSetting(cmd, v, "backend", opts.Backend),
		SimulatorBinary: stringSetting(cmd, v, "simulator", opts.Simulator),
		Headless:        boolSetting(cmd, v, "headless", opts.Headless),
		StaticPositions: boolSetting(cmd, v, "static-positions", opts.StaticPositions),
		Hold:            boolSetting(cmd, v, "hold", opts.Hold),
		StatusAddr:      stringSetting(cmd, v, "status-addr", opts.StatusAddr),
		LaunchTimeout:   opts.LaunchTimeout,
	}
	if !cmd.Flags().Changed("launch-timeout") && v.IsSet("launch-timeout") {
		cfg.LaunchTimeout = v.GetInt("launch-timeout")
	}
	cfg.LaunchTimeout = config.ResolveLaunchTimeout(cfg.LaunchTimeout)

	if cfg.ArmActionMode == "" {
		return nil, fmt.Errorf("--action-mode flag requires a value")
	}
	if cfg.StatusAddr != "" && !cfg.Hold {
		return nil, fmt.Errorf("--status-addr requires --hold")
	}
	return cfg, nil
}

func actionModeFromConfig(cfg *config.Config) (action.ActionMode, error) {
	arm, err := action.ParseArmActionMode(cfg.ArmActionMode)
	if err != nil {
		return action.ActionMode{}, err
	}
	gripper, err := action.ParseGripperActionMode(cfg.GripperMode)
	if err != nil {
		return action.ActionMode{}, err
	}
	return action.ActionMode{Arm: arm, Gripper: gripper}, nil
}

// runEnvironment launches the simulator, loads cfg.Task, prints the task
// summary and, with Hold, keeps everything up until interrupted.
func runEnvironment(parent context.Context, cfg *config.Config) int {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signalContext(parent)
	defer stop()

	mode, err := actionModeFromConfig(cfg)
	if err != nil {
		logError(err.Error())
		return 1
	}
	obs, err := config.LoadObservationConfig(cfg.ObsConfigFile)
	if err != nil {
		logError(err.Error())
		return 1
	}

	assetsDir := cfg.AssetsDir
	if assetsDir == "" {
		assetsDir = environment.DefaultAssetsDir()
	}
	reg := taskRegistry()
	discoverTaskModels(reg, assetsDir)

	m := metrics.New()
	env, err := environment.New(environment.Options{
		ActionMode:      mode,
		DatasetRoot:     cfg.DatasetRoot,
		ObsConfig:       &obs,
		Headless:        cfg.Headless,
		StaticPositions: cfg.StaticPositions,
		AssetsDir:       assetsDir,
		Backend:         cfg.Backend,
		Binary:          cfg.SimulatorBinary,
		Launcher:        newLauncher(),
		Registry:        reg,
		Metrics:         m,
	})
	if err != nil {
		logError(err.Error())
		return 1
	}

	launchCtx, cancelLaunch := ctx, context.CancelFunc(func() {})
	if cfg.LaunchTimeout > 0 {
		launchCtx, cancelLaunch = context.WithTimeout(ctx, time.Duration(cfg.LaunchTimeout)*time.Second)
	}
	err = env.Launch(launchCtx)
	cancelLaunch()
	if err != nil {
		logError(err.Error())
		return 1
	}
	defer func() {
		if err := env.Shutdown(); err != nil {
			logWarn(err.Error())
		}
	}()
	if ctx.Err() != nil {
		logWarn("Interrupted after simulator launch; shutting down")
		return 1
	}

	fmt.Fprintf(os.Stderr, "[%s]\n", name)
	fmt.Fprintf(os.Stderr, "  Scene: %s\n", env.ScenePath())
	fmt.Fprintf(os.Stderr, "  Session: %s\n", env.SessionID())
	if logger := activeLogger(); logger != nil {
		fmt.Fprintf(os.Stderr, "  Log: %s\n", logger.Path())
	}

	te, err := env.GetTaskByName(cfg.Task)
	if err != nil {
		logError(err.Error())
		return 1
	}

	data, err := json.MarshalIndent(te.Summary(), "", "  ")
	if err != nil {
		logError(fmt.Sprintf("encode task summary: %v", err))
		return 1
	}
	fmt.Fprintln(stdout, string(data))

	if !cfg.Hold {
		return 0
	}
	return hold(ctx, cfg, env, te, m)
}

func hold(ctx context.Context, cfg *config.Config, env *environment.Environment, te *environment.TaskEnvironment, m *metrics.Metrics) int {
	if cfg.StatusAddr != "" {
		srv, err := startStatusServer(cfg.StatusAddr, env, te, m)
		if err != nil {
			logError(err.Error())
			return 1
		}
		defer srv.close()
		fmt.Fprintf(os.Stderr, "  Status: http://%s\n", srv.addr())
	}

	logInfo("Holding simulator until interrupted")
	<-ctx.Done()
	logInfo("Hold released")
	return 0
}

func discoverTaskModels(reg *task.Registry, assetsDir string) {
	dir := filepath.Join(assetsDir, environment.TaskModelsDir)
	added, err := task.DiscoverModels(reg, dir)
	if err != nil {
		logWarn(fmt.Sprintf("Task model discovery in %s: %v", dir, err))
	}
	if len(added) > 0 {
		logInfo(fmt.Sprintf("Discovered %d task models in %s", len(added), dir))
	}
}
