// Package scene wraps the loaded scene: the simulator it runs in, the robot
// standing in it and the observation channels it records.
package scene

import (
	"rlbench-env/internal/config"
	"rlbench-env/internal/robot"
	"rlbench-env/internal/sim"
)

type Scene struct {
	sim       sim.Caller
	robot     *robot.Robot
	obsConfig config.ObservationConfig
}

func New(caller sim.Caller, r *robot.Robot, obs config.ObservationConfig) *Scene {
	return &Scene{sim: caller, robot: r, obsConfig: obs}
}

func (s *Scene) Simulator() sim.Caller                       { return s.sim }
func (s *Scene) Robot() *robot.Robot                         { return s.robot }
func (s *Scene) ObservationConfig() config.ObservationConfig { return s.obsConfig }
