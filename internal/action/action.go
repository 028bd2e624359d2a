// Package action defines the arm and gripper action modes and the control
// flags each arm mode requires from the simulator.
package action

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognisedActionMode is returned for arm modes outside the known set.
var ErrUnrecognisedActionMode = errors.New("unrecognised action mode")

// ArmActionMode selects how arm commands are interpreted.
type ArmActionMode int

const (
	ArmActionModeUnknown ArmActionMode = iota
	AbsJointVelocity
	DeltaJointVelocity
	AbsJointPosition
	DeltaJointPosition
	AbsJointTorque
	DeltaJointTorque
	AbsEEPose
	DeltaEEPose
	AbsEEVelocity
	DeltaEEVelocity
)

var armModeNames = map[ArmActionMode]string{
	AbsJointVelocity:   "abs_joint_velocity",
	DeltaJointVelocity: "delta_joint_velocity",
	AbsJointPosition:   "abs_joint_position",
	DeltaJointPosition: "delta_joint_position",
	AbsJointTorque:     "abs_joint_torque",
	DeltaJointTorque:   "delta_joint_torque",
	AbsEEPose:          "abs_ee_pose",
	DeltaEEPose:        "delta_ee_pose",
	AbsEEVelocity:      "abs_ee_velocity",
	DeltaEEVelocity:    "delta_ee_velocity",
}

func (m ArmActionMode) String() string {
	if name, ok := armModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("arm_action_mode(%d)", int(m))
}

// ArmActionModes lists every valid arm mode in declaration order.
func ArmActionModes() []ArmActionMode {
	modes := make([]ArmActionMode, 0, len(armModeNames))
	for m := AbsJointVelocity; m <= DeltaEEVelocity; m++ {
		modes = append(modes, m)
	}
	return modes
}

// ParseArmActionMode accepts names like "abs_joint_velocity" or
// "ABS-JOINT-VELOCITY".
func ParseArmActionMode(s string) (ArmActionMode, error) {
	key := normalizeModeName(s)
	for m, name := range armModeNames {
		if name == key {
			return m, nil
		}
	}
	return ArmActionModeUnknown, fmt.Errorf("%w: %q", ErrUnrecognisedActionMode, s)
}

// GripperActionMode selects how gripper commands are interpreted.
type GripperActionMode int

const (
	GripperActionModeUnknown GripperActionMode = iota
	OpenAmount
)

func (m GripperActionMode) String() string {
	if m == OpenAmount {
		return "open_amount"
	}
	return fmt.Sprintf("gripper_action_mode(%d)", int(m))
}

func ParseGripperActionMode(s string) (GripperActionMode, error) {
	if normalizeModeName(s) == "open_amount" {
		return OpenAmount, nil
	}
	return GripperActionModeUnknown, fmt.Errorf("unrecognised gripper action mode %q", s)
}

// ActionMode pairs an arm mode with a gripper mode.
type ActionMode struct {
	Arm     ArmActionMode
	Gripper GripperActionMode
}

func (a ActionMode) String() string {
	return a.Arm.String() + "+" + a.Gripper.String()
}

// ControlFlags are the two arm settings an arm mode needs.
// A nil LockedAtZeroVelocity means the mode leaves the lock untouched.
type ControlFlags struct {
	ControlLoop          bool
	LockedAtZeroVelocity *bool
}

// ArmControlFlags maps an arm mode to the control flags the arm must carry.
//
//	joint velocity             -> loop off, locked at zero velocity
//	joint position, ee pose/vel -> loop on
//	joint torque               -> loop off
func ArmControlFlags(mode ArmActionMode) (ControlFlags, error) {
	switch mode {
	case AbsJointVelocity, DeltaJointVelocity:
		locked := true
		return ControlFlags{ControlLoop: false, LockedAtZeroVelocity: &locked}, nil
	case AbsJointPosition, DeltaJointPosition, AbsEEPose, DeltaEEPose, AbsEEVelocity, DeltaEEVelocity:
		return ControlFlags{ControlLoop: true}, nil
	case AbsJointTorque, DeltaJointTorque:
		return ControlFlags{ControlLoop: false}, nil
	default:
		return ControlFlags{}, fmt.Errorf("%w: %s", ErrUnrecognisedActionMode, mode)
	}
}

func normalizeModeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
