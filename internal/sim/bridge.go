package sim

import "strings"

// BridgeBackend runs a standalone bridge executable that hosts the simulator
// and speaks the control protocol on stdio.
type BridgeBackend struct{}

func (BridgeBackend) Name() string                             { return "bridge" }
func (BridgeBackend) Command() string                          { return "rlbench-sim-bridge" }
func (BridgeBackend) Env(opts LaunchOptions) map[string]string { return nil }

func (BridgeBackend) BuildArgs(opts LaunchOptions) []string {
	args := []string{"--scene", strings.TrimSpace(opts.ScenePath)}
	if opts.Headless {
		args = append(args, "--headless")
	}
	return args
}
