// Package robot drives the arm and gripper objects of the loaded scene
// through the simulator control channel.
package robot

import (
	"fmt"
	"math"

	"rlbench-env/internal/sim"
)

// Scene object names of the fixed rig.
const (
	PandaName        = "Panda"
	PandaGripperName = "PandaGripper"
)

type Arm interface {
	Name() string
	SetControlLoopEnabled(enabled bool) error
	SetMotorLockedAtZeroVelocity(locked bool) error
}

type Gripper interface {
	Name() string
	Actuate(amount, velocity float64) error
}

// Robot is the arm and gripper pair shared by the scene and every task
// environment of one launch.
type Robot struct {
	Arm     Arm
	Gripper Gripper
}

func New(arm Arm, gripper Gripper) *Robot {
	return &Robot{Arm: arm, Gripper: gripper}
}

// Panda is the Franka Emika Panda arm.
type Panda struct {
	caller sim.Caller
	name   string
}

func NewPanda(caller sim.Caller) *Panda {
	return &Panda{caller: caller, name: PandaName}
}

func (p *Panda) Name() string { return p.name }

func (p *Panda) SetControlLoopEnabled(enabled bool) error {
	return call(p.caller, sim.OpSetControlLoopEnabled, p.name, map[string]any{"value": enabled})
}

func (p *Panda) SetMotorLockedAtZeroVelocity(locked bool) error {
	return call(p.caller, sim.OpSetMotorLockedAtZeroVelocity, p.name, map[string]any{"value": locked})
}

// PandaGripper is the two-finger Panda hand.
type PandaGripper struct {
	caller sim.Caller
	name   string
}

func NewPandaGripper(caller sim.Caller) *PandaGripper {
	return &PandaGripper{caller: caller, name: PandaGripperName}
}

func (g *PandaGripper) Name() string { return g.name }

// Actuate moves the fingers toward amount (0 closed, 1 open) at velocity.
func (g *PandaGripper) Actuate(amount, velocity float64) error {
	if math.IsNaN(amount) || amount < 0 || amount > 1 {
		return fmt.Errorf("gripper amount must be within [0, 1], got %v", amount)
	}
	if math.IsNaN(velocity) || math.IsInf(velocity, 0) || velocity <= 0 {
		return fmt.Errorf("gripper velocity must be positive, got %v", velocity)
	}
	return call(g.caller, sim.OpActuate, g.name, map[string]any{"amount": amount, "velocity": velocity})
}

func call(caller sim.Caller, op, object string, args map[string]any) error {
	if caller == nil {
		return fmt.Errorf("%s %s: no simulator connection", op, object)
	}
	_, err := caller.Call(sim.Command{Op: op, Object: object, Args: args})
	return err
}
