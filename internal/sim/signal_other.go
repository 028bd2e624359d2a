//go:build !unix

package sim

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {}

func sendTermSignal(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	return proc.Kill()
}
