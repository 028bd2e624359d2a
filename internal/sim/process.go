package sim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ilogger "rlbench-env/internal/logger"
)

// ErrClosed is returned by a Handle after Shutdown.
var ErrClosed = errors.New("simulator handle is shut down")

// LaunchOptions selects the simulator binary and the scene it starts with.
type LaunchOptions struct {
	ScenePath string
	Headless  bool
	Backend   string
	// Binary overrides the backend's default executable.
	Binary string
	Env    map[string]string
}

// Handle is a running simulator.
type Handle interface {
	Caller
	SetSimulationTimestep(seconds float64) error
	Shutdown() error
	PID() int
	Running() bool
}

// Launcher starts simulators.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Handle, error)
}

var (
	newCommand       = exec.Command
	selectBackendFn  = Select
	processRunningFn = ilogger.IsProcessRunning
	// forceKillDelay is the wait, in seconds, before each shutdown escalation
	// step (SIGTERM, then kill).
	forceKillDelay atomic.Int32
)

func init() {
	forceKillDelay.Store(5)
}

// ProcessLauncher starts the simulator as a child process and talks to it
// over its stdin/stdout.
type ProcessLauncher struct{}

// Launch starts the simulator and blocks until it reports the scene is
// loaded or ctx is done. The process is killed if it never becomes ready.
func (ProcessLauncher) Launch(ctx context.Context, opts LaunchOptions) (Handle, error) {
	backend, err := selectBackendFn(opts.Backend)
	if err != nil {
		return nil, err
	}

	command := strings.TrimSpace(opts.Binary)
	if command == "" {
		command = backend.Command()
	}
	args := backend.BuildArgs(opts)

	cmd := newCommand(command, args...)
	cmd.Env = mergeEnv(os.Environ(), backend.Env(opts), opts.Env)
	configureProcess(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("simulator stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("simulator stdout: %w", err)
	}
	stderr := newLogWriter("SIM: ", simLogLineLimit, logInfo)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start simulator %s: %w", command, err)
	}

	h := &processHandle{
		cmd:     cmd,
		stdin:   stdin,
		reader:  bufio.NewReaderSize(stdout, 64*1024),
		stderr:  stderr,
		backend: backend.Name(),
	}
	logInfo(fmt.Sprintf("Simulator started: backend=%s pid=%d scene=%s headless=%v", backend.Name(), h.PID(), opts.ScenePath, opts.Headless))

	// Start-up banners precede the ready message and are only of debug
	// interest.
	ready := make(chan error, 1)
	go func() {
		reply, err := readReply(h.reader, 0, logDebug)
		if err == nil {
			err = reply.Err(Command{Op: "launch", Object: opts.ScenePath})
		}
		ready <- err
	}()

	select {
	case err := <-ready:
		if err != nil {
			h.kill()
			return nil, fmt.Errorf("simulator not ready: %w", err)
		}
	case <-ctx.Done():
		h.kill()
		return nil, fmt.Errorf("waiting for simulator: %w", ctx.Err())
	}

	logInfo(fmt.Sprintf("Simulator ready: pid=%d", h.PID()))
	return h, nil
}

type processHandle struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	reader  *bufio.Reader
	stderr  *logWriter
	backend string
	nextID  uint64
	closed  bool
}

func (h *processHandle) Call(c Command) (Reply, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Reply{}, ErrClosed
	}

	h.nextID++
	c.ID = h.nextID
	if err := writeCommand(h.stdin, c); err != nil {
		return Reply{}, fmt.Errorf("send %s: %w", c.Op, err)
	}
	reply, err := readReply(h.reader, c.ID, logWarn)
	if err != nil {
		return Reply{}, fmt.Errorf("await %s reply: %w", c.Op, err)
	}
	return reply, reply.Err(c)
}

func (h *processHandle) SetSimulationTimestep(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("simulation timestep must be positive, got %v", seconds)
	}
	_, err := h.Call(Command{Op: OpSetSimulationTimestep, Args: map[string]any{"dt": seconds}})
	return err
}

// Shutdown asks the simulator to exit, then escalates to SIGTERM and finally
// kill if it does not exit within forceKillDelay each.
func (h *processHandle) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true

	h.nextID++
	if err := writeCommand(h.stdin, Command{ID: h.nextID, Op: OpShutdown}); err != nil {
		logWarn(fmt.Sprintf("Failed to send shutdown to simulator pid=%d: %v", h.PID(), err))
	}
	_ = h.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	delay := time.Duration(forceKillDelay.Load()) * time.Second
	var err error
	select {
	case err = <-done:
	case <-time.After(delay):
		logWarn(fmt.Sprintf("Simulator pid=%d did not exit after %s; sending SIGTERM", h.PID(), delay))
		_ = sendTermSignal(h.cmd.Process)
		select {
		case <-done:
		case <-time.After(delay):
			logWarn(fmt.Sprintf("Simulator pid=%d ignored SIGTERM; killing", h.PID()))
			_ = h.cmd.Process.Kill()
			<-done
		}
		err = nil
	}
	h.stderr.Flush()

	if err != nil {
		logError(fmt.Sprintf("Simulator pid=%d exited with error: %v", h.PID(), err))
		return fmt.Errorf("simulator exited: %w", err)
	}
	logInfo(fmt.Sprintf("Simulator pid=%d stopped", h.PID()))
	return nil
}

func (h *processHandle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *processHandle) Running() bool {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	return !closed && processRunningFn(h.PID())
}

func (h *processHandle) kill() {
	h.closed = true
	_ = h.stdin.Close()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	_ = h.cmd.Wait()
	h.stderr.Flush()
}

// mergeEnv overlays extra maps onto base ("K=V" entries). Later maps win.
func mergeEnv(base []string, extra ...map[string]string) []string {
	overrides := make(map[string]string)
	for _, m := range extra {
		for k, v := range m {
			overrides[k] = v
		}
	}
	if len(overrides) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
