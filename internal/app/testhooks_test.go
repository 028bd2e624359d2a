package app

import (
	"bytes"
	"context"
	"testing"

	"rlbench-env/internal/sim"
	"rlbench-env/internal/task"
)

type fakeHandle struct {
	calls     []sim.Command
	shutdowns int
	onCall    func(sim.Command)
}

func (h *fakeHandle) Call(c sim.Command) (sim.Reply, error) {
	h.calls = append(h.calls, c)
	if h.onCall != nil {
		h.onCall(c)
	}
	return sim.Reply{ID: c.ID, OK: true}, nil
}

func (h *fakeHandle) SetSimulationTimestep(float64) error { return nil }

func (h *fakeHandle) Shutdown() error {
	h.shutdowns++
	return nil
}

func (h *fakeHandle) PID() int      { return 777 }
func (h *fakeHandle) Running() bool { return h.shutdowns == 0 }

type fakeLauncher struct {
	handle *fakeHandle
	opts   []sim.LaunchOptions
	// waiting, when set, makes Launch behave like a simulator that never
	// reports ready: it is closed once Launch blocks, and Launch returns
	// only when ctx is done.
	waiting chan struct{}
	ctxErr  error
}

func (l *fakeLauncher) Launch(ctx context.Context, opts sim.LaunchOptions) (sim.Handle, error) {
	l.opts = append(l.opts, opts)
	if l.waiting != nil {
		close(l.waiting)
		<-ctx.Done()
		l.ctxErr = ctx.Err()
		return nil, ctx.Err()
	}
	return l.handle, nil
}

// useTestHooks swaps the process-wide hooks for fakes and restores them when
// the test ends.
func useTestHooks(t *testing.T) (*fakeLauncher, *task.Registry, *bytes.Buffer) {
	t.Helper()
	launcher := &fakeLauncher{handle: &fakeHandle{}}
	reg := task.NewRegistry()
	out := &bytes.Buffer{}

	prevLauncher, prevRegistry, prevStdout, prevSignal := newLauncher, taskRegistry, stdout, signalContext
	newLauncher = func() sim.Launcher { return launcher }
	taskRegistry = func() *task.Registry { return reg }
	stdout = out
	t.Cleanup(func() {
		newLauncher, taskRegistry, stdout, signalContext = prevLauncher, prevRegistry, prevStdout, prevSignal
	})
	t.Setenv("RLBENCH_SKIP_LOG_CLEANUP", "1")
	return launcher, reg, out
}
