package sim

import (
	"os/exec"

	ilogger "rlbench-env/internal/logger"
)

func SetForceKillDelay(seconds int32) (restore func()) {
	prev := forceKillDelay.Load()
	forceKillDelay.Store(seconds)
	return func() { forceKillDelay.Store(prev) }
}

func SetSelectBackendFn(fn func(string) (Backend, error)) (restore func()) {
	prev := selectBackendFn
	if fn != nil {
		selectBackendFn = fn
	} else {
		selectBackendFn = Select
	}
	return func() { selectBackendFn = prev }
}

func SetNewCommandFn(fn func(string, ...string) *exec.Cmd) (restore func()) {
	prev := newCommand
	if fn != nil {
		newCommand = fn
	} else {
		newCommand = exec.Command
	}
	return func() { newCommand = prev }
}

func SetProcessRunningFn(fn func(int) bool) (restore func()) {
	prev := processRunningFn
	if fn != nil {
		processRunningFn = fn
	} else {
		processRunningFn = ilogger.IsProcessRunning
	}
	return func() { processRunningFn = prev }
}
