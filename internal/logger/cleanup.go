package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// pidReuseAge is how old a log must be before an unknown process start time
// is treated as evidence that the pid was recycled.
const pidReuseAge = 7 * 24 * time.Hour

var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupStats summarises a CleanupOldLogs pass.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

// CleanupOldLogs removes log files left behind by processes that are no
// longer running. Logs of live processes are kept.
func CleanupOldLogs() (CleanupStats, error) { return cleanupOldLogs() }

func cleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats
	tempDir := os.TempDir()

	var matches []string
	for _, prefix := range LogPrefixes() {
		found, err := globLogFiles(filepath.Join(tempDir, prefix+"-*.log"))
		if err != nil {
			logWarn(fmt.Sprintf("cleanupOldLogs: failed to list logs: %v", err))
			return stats, fmt.Errorf("cleanupOldLogs: %w", err)
		}
		matches = append(matches, found...)
	}

	var removeErr error
	for _, path := range matches {
		pid, ok := parsePIDFromLog(path)
		if !ok {
			continue
		}
		stats.Scanned++

		if unsafe, reason := isUnsafeFile(path, tempDir); unsafe {
			logWarn(fmt.Sprintf("cleanupOldLogs: skipping %s: %s", path, reason))
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, filepath.Base(path))
			continue
		}

		if processRunningCheck(pid) && !isPIDReused(path, pid) {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, filepath.Base(path))
			continue
		}

		if err := removeLogFileFn(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				stats.Deleted++
				stats.DeletedFiles = append(stats.DeletedFiles, filepath.Base(path))
				continue
			}
			stats.Errors++
			logWarn(fmt.Sprintf("cleanupOldLogs: failed to remove %s: %v", path, err))
			removeErr = errors.Join(removeErr, fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err))
			continue
		}
		stats.Deleted++
		stats.DeletedFiles = append(stats.DeletedFiles, filepath.Base(path))
	}

	if removeErr != nil {
		return stats, fmt.Errorf("cleanupOldLogs: %w", removeErr)
	}
	return stats, nil
}

// parsePIDFromLog extracts the pid from "<prefix>-<pid>[-suffix].log".
func parsePIDFromLog(path string) (int, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".log") {
		return 0, false
	}
	name = strings.TrimSuffix(name, ".log")

	for _, prefix := range LogPrefixes() {
		rest, found := strings.CutPrefix(name, prefix+"-")
		if !found {
			continue
		}
		digits := rest
		if idx := strings.IndexByte(rest, '-'); idx >= 0 {
			digits = rest[:idx]
		}
		if digits == "" {
			return 0, false
		}
		pid, err := strconv.Atoi(digits)
		if err != nil || pid <= 0 {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}

// isPIDReused reports whether the running process with pid is not the one
// that wrote path.
func isPIDReused(path string, pid int) bool {
	info, err := fileStatFn(path)
	if err != nil {
		return false
	}
	modTime := info.ModTime()

	start := processStartTimeFn(pid)
	if start.IsZero() {
		return time.Since(modTime) > pidReuseAge
	}
	return start.After(modTime)
}

func isUnsafeFile(path string, tempDir string) (bool, string) {
	info, err := fileStatFn(path)
	if err != nil {
		return true, fmt.Sprintf("stat failed: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, "refusing to delete symlink"
	}

	resolved, err := evalSymlinksFn(path)
	if err != nil {
		return true, fmt.Sprintf("path resolution failed: %v", err)
	}
	base := tempDir
	if evalBase, err := filepath.EvalSymlinks(tempDir); err == nil {
		base = evalBase
	}
	base, _ = filepath.Abs(base)
	resolved, _ = filepath.Abs(resolved)

	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return true, "file is outside tempDir"
	}
	return false, ""
}
