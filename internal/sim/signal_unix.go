//go:build unix

package sim

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcess puts the simulator in its own process group so terminal
// signals aimed at this tool do not reach it before Shutdown does.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// sendTermSignal sends SIGTERM for graceful shutdown on Unix.
func sendTermSignal(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	return proc.Signal(syscall.SIGTERM)
}
