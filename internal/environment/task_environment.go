package environment

import (
	"rlbench-env/internal/action"
	"rlbench-env/internal/config"
	"rlbench-env/internal/robot"
	"rlbench-env/internal/scene"
	"rlbench-env/internal/sim"
	"rlbench-env/internal/task"
)

// TaskEnvironment is the handle for driving one task. Its references stay
// valid until the next GetTask or Shutdown on the Environment that issued
// it.
type TaskEnvironment struct {
	Sim               sim.Handle
	Robot             *robot.Robot
	Scene             *scene.Scene
	Task              task.Task
	ActionMode        action.ActionMode
	DatasetRoot       string
	ObservationConfig config.ObservationConfig
	StaticPositions   bool
	SessionID         string
}

// Summary is the JSON view of a TaskEnvironment.
type Summary struct {
	SessionID         string                   `json:"session_id"`
	Task              string                   `json:"task"`
	TaskClass         string                   `json:"task_class"`
	ArmActionMode     string                   `json:"arm_action_mode"`
	GripperActionMode string                   `json:"gripper_action_mode"`
	DatasetRoot       string                   `json:"dataset_root,omitempty"`
	StaticPositions   bool                     `json:"static_positions"`
	SimulatorPID      int                      `json:"simulator_pid"`
	Arm               string                   `json:"arm"`
	Gripper           string                   `json:"gripper"`
	ObservationConfig config.ObservationConfig `json:"observation_config"`
}

func (te *TaskEnvironment) Summary() Summary {
	s := Summary{
		SessionID:         te.SessionID,
		ArmActionMode:     te.ActionMode.Arm.String(),
		GripperActionMode: te.ActionMode.Gripper.String(),
		DatasetRoot:       te.DatasetRoot,
		StaticPositions:   te.StaticPositions,
		ObservationConfig: te.ObservationConfig,
	}
	if te.Task != nil {
		s.Task = te.Task.Name()
		s.TaskClass = task.ClassName(s.Task)
	}
	if te.Sim != nil {
		s.SimulatorPID = te.Sim.PID()
	}
	if te.Robot != nil {
		if te.Robot.Arm != nil {
			s.Arm = te.Robot.Arm.Name()
		}
		if te.Robot.Gripper != nil {
			s.Gripper = te.Robot.Gripper.Name()
		}
	}
	return s
}
