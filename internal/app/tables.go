package app

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"rlbench-env/internal/action"
	"rlbench-env/internal/environment"
	"rlbench-env/internal/task"
)

func newTasksCommand() *cobra.Command {
	var assetsDir string
	cmd := &cobra.Command{
		Use:           "tasks",
		Short:         "List the tasks that can be loaded",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if assetsDir == "" {
				assetsDir = environment.DefaultAssetsDir()
			}
			reg := taskRegistry()
			discoverTaskModels(reg, assetsDir)
			return renderTasks(stdout, reg)
		},
	}
	cmd.Flags().StringVar(&assetsDir, "assets-dir", "", "Directory holding task_ttms/ (also via RLBENCH_ASSETS_DIR)")
	return cmd
}

func newModesCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "modes",
		Short:         "List arm action modes and the control flags they set",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderModes(stdout)
		},
	}
}

func renderTasks(w io.Writer, reg *task.Registry) error {
	names := reg.Names()
	if len(names) == 0 {
		fmt.Fprintln(w, "No tasks registered")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Task", "Class")
	for _, n := range names {
		if err := table.Append(n, task.ClassName(n)); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderModes(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Arm Mode", "Control Loop", "Locked At Zero Velocity")
	for _, mode := range action.ArmActionModes() {
		flags, err := action.ArmControlFlags(mode)
		if err != nil {
			return err
		}
		locked := "-"
		if flags.LockedAtZeroVelocity != nil {
			locked = strconv.FormatBool(*flags.LockedAtZeroVelocity)
		}
		if err := table.Append(mode.String(), strconv.FormatBool(flags.ControlLoop), locked); err != nil {
			return err
		}
	}
	return table.Render()
}
