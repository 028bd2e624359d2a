package logger

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

func pidToInt32(pid int) (int32, bool) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, false
	}
	return int32(pid), true
}

// isProcessRunning reports whether pid names a live, non-zombie process.
// Inspection failures other than "not running" count as running so that
// logs of live processes are never deleted.
func isProcessRunning(pid int) bool {
	pid32, ok := pidToInt32(pid)
	if !ok {
		return false
	}

	exists, err := process.PidExists(pid32)
	if err != nil {
		return !errors.Is(err, process.ErrorProcessNotRunning)
	}
	if !exists {
		return false
	}

	proc, err := process.NewProcess(pid32)
	if err != nil {
		return !errors.Is(err, process.ErrorProcessNotRunning)
	}
	status, err := proc.Status()
	if err != nil {
		return true
	}
	return !slices.Contains(status, process.Zombie)
}

// getProcessStartTime returns the start time of pid, or the zero time when
// it cannot be determined.
func getProcessStartTime(pid int) time.Time {
	pid32, ok := pidToInt32(pid)
	if !ok {
		return time.Time{}
	}

	proc, err := process.NewProcess(pid32)
	if err != nil {
		return time.Time{}
	}

	ms, err := proc.CreateTime()
	if err != nil || ms <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

func IsProcessRunning(pid int) bool { return isProcessRunning(pid) }

func GetProcessStartTime(pid int) time.Time { return getProcessStartTime(pid) }
