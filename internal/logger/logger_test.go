package logger

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func compareCleanupStats(got, want CleanupStats) bool {
	if got.Scanned != want.Scanned || got.Deleted != want.Deleted || got.Kept != want.Kept || got.Errors != want.Errors {
		return false
	}
	return len(got.DeletedFiles) == want.Deleted && len(got.KeptFiles) == want.Kept
}

func TestLoggerCreatesFileWithPID(t *testing.T) {
	tempDir := setTempDirEnv(t, t.TempDir())

	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	expectedPath := filepath.Join(tempDir, fmt.Sprintf("rlbench-env-%d.log", os.Getpid()))
	if logger.Path() != expectedPath {
		t.Fatalf("logger path = %s, want %s", logger.Path(), expectedPath)
	}
	if _, err := os.Stat(expectedPath); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestLoggerWritesJSONLevels(t *testing.T) {
	setTempDirEnv(t, t.TempDir())

	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	logger.Info("info message")
	logger.Warn("warn message")
	logger.Debug("debug message")
	logger.Error("error message")
	logger.Flush()

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	want := map[string]string{
		"info message":  "info",
		"warn message":  "warn",
		"debug message": "debug",
		"error message": "error",
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line struct {
			Level   string `json:"level"`
			Message string `json:"message"`
			PID     int    `json:"pid"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", scanner.Text(), err)
		}
		if line.PID != os.Getpid() {
			t.Fatalf("pid = %d, want %d", line.PID, os.Getpid())
		}
		if level, ok := want[line.Message]; ok {
			if line.Level != level {
				t.Fatalf("level for %q = %q, want %q", line.Message, line.Level, level)
			}
			delete(want, line.Message)
		}
	}
	if len(want) != 0 {
		t.Fatalf("log file missing entries: %v", want)
	}
}

func TestLoggerCloseKeepsFileAndDropsWrites(t *testing.T) {
	setTempDirEnv(t, t.TempDir())

	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("before close")
	logger.Flush()
	logPath := logger.Path()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
	logger.Info("after close")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist after Close: %v", err)
	}
	if strings.Contains(string(data), "after close") {
		t.Fatalf("write after Close reached the file: %s", data)
	}
}

func TestLoggerConcurrentWritesSafe(t *testing.T) {
	setTempDirEnv(t, t.TempDir())

	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	const goroutines = 10
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				logger.Debug(fmt.Sprintf("g%d-%d", id, j))
			}
		}(i)
	}
	wg.Wait()
	logger.Flush()

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		count++
	}
	if count != goroutines*perGoroutine {
		t.Fatalf("unexpected log line count: got %d, want %d", count, goroutines*perGoroutine)
	}
}

func TestActiveLoggerHelpers(t *testing.T) {
	setTempDirEnv(t, t.TempDir())

	LogInfo("no logger installed")

	logger, err := NewLoggerWithSuffix("active")
	if err != nil {
		t.Fatalf("NewLoggerWithSuffix() error = %v", err)
	}
	SetLogger(logger)
	LogWarn("simulator slow to start")
	if ActiveLogger() != logger {
		t.Fatalf("ActiveLogger() did not return the installed logger")
	}
	if got := logger.ExtractRecentErrors(1); len(got) != 1 || got[0] != "simulator slow to start" {
		t.Fatalf("ExtractRecentErrors() = %v", got)
	}
	if err := CloseLogger(); err != nil {
		t.Fatalf("CloseLogger() error = %v", err)
	}
	if ActiveLogger() != nil {
		t.Fatalf("ActiveLogger() should be nil after CloseLogger")
	}
	_ = logger.RemoveLogFile()
}

func TestLoggerCleanupOldLogsRemovesOrphans(t *testing.T) {
	tempDir := setTempDirEnv(t, t.TempDir())

	orphan1 := createTempLog(t, tempDir, "rlbench-env-111.log")
	orphan2 := createTempLog(t, tempDir, "rlbench-env-222-suffix.log")
	running1 := createTempLog(t, tempDir, "rlbench-env-333.log")
	running2 := createTempLog(t, tempDir, "rlbench-env-444-extra-info.log")
	untouched := createTempLog(t, tempDir, "unrelated.log")

	runningPIDs := map[int]bool{333: true, 444: true}
	stubProcessRunning(t, func(pid int) bool { return runningPIDs[pid] })
	stubProcessStartTime(t, func(pid int) time.Time {
		if runningPIDs[pid] {
			return time.Now().Add(-1 * time.Hour)
		}
		return time.Time{}
	})

	stats, err := cleanupOldLogs()
	if err != nil {
		t.Fatalf("cleanupOldLogs() unexpected error: %v", err)
	}
	want := CleanupStats{Scanned: 4, Deleted: 2, Kept: 2}
	if !compareCleanupStats(stats, want) {
		t.Fatalf("cleanup stats mismatch: got %+v, want %+v", stats, want)
	}

	for _, p := range []string{orphan1, orphan2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected orphan %s to be removed, err=%v", p, err)
		}
	}
	for _, p := range []string{running1, running2, untouched} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain, err=%v", p, err)
		}
	}
}

func TestLoggerCleanupOldLogsHandlesRemoveErrors(t *testing.T) {
	tempDir := setTempDirEnv(t, t.TempDir())

	for _, name := range []string{"rlbench-env-.log", "rlbench-env.log", "rlbench-env-foo-bar.txt", "other.log"} {
		createTempLog(t, tempDir, name)
	}
	target := createTempLog(t, tempDir, "rlbench-env-555-extra.log")

	var checked []int
	stubProcessRunning(t, func(pid int) bool {
		checked = append(checked, pid)
		return false
	})
	stubProcessStartTime(t, func(int) time.Time { return time.Time{} })

	removeErr := errors.New("remove failure")
	stubRemoveLogFile(t, func(path string) error {
		if path == target {
			return removeErr
		}
		return os.Remove(path)
	})

	stats, err := cleanupOldLogs()
	if !errors.Is(err, removeErr) {
		t.Fatalf("cleanupOldLogs error = %v, want %v", err, removeErr)
	}
	if stats.Scanned != 1 || stats.Errors != 1 {
		t.Fatalf("cleanup stats mismatch: got %+v", stats)
	}
	if len(checked) != 1 || checked[0] != 555 {
		t.Fatalf("expected only valid PID to be checked, got %v", checked)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected errored file to remain, err=%v", err)
	}
}

func TestLoggerCleanupOldLogsHandlesGlobFailures(t *testing.T) {
	stubProcessRunning(t, func(int) bool {
		t.Fatalf("process check should not run when glob fails")
		return false
	})
	globErr := errors.New("glob failure")
	stubGlobLogFiles(t, func(string) ([]string, error) { return nil, globErr })

	stats, err := cleanupOldLogs()
	if !errors.Is(err, globErr) {
		t.Fatalf("cleanupOldLogs error = %v, want %v", err, globErr)
	}
	if stats.Scanned != 0 || stats.Deleted != 0 || stats.Kept != 0 || stats.Errors != 0 {
		t.Fatalf("cleanup stats mismatch: got %+v, want zero", stats)
	}
}

func TestLoggerIsPIDReusedScenarios(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		statErr   error
		modTime   time.Time
		startTime time.Time
		want      bool
	}{
		{"stat error", errors.New("stat failed"), time.Time{}, time.Time{}, false},
		{"old file unknown start", nil, now.Add(-8 * 24 * time.Hour), time.Time{}, true},
		{"recent file unknown start", nil, now.Add(-2 * time.Hour), time.Time{}, false},
		{"pid reused", nil, now.Add(-2 * time.Hour), now.Add(-30 * time.Minute), true},
		{"pid active", nil, now.Add(-30 * time.Minute), now.Add(-2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubFileStat(t, func(string) (os.FileInfo, error) {
				if tt.statErr != nil {
					return nil, tt.statErr
				}
				return fakeFileInfo{modTime: tt.modTime}, nil
			})
			stubProcessStartTime(t, func(int) time.Time { return tt.startTime })
			if got := isPIDReused("log", 1234); got != tt.want {
				t.Fatalf("isPIDReused() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoggerIsUnsafeFileRejectsSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	stubFileStat(t, func(string) (os.FileInfo, error) {
		return fakeFileInfo{mode: os.ModeSymlink}, nil
	})
	unsafe, reason := isUnsafeFile(filepath.Join(tempDir, "rlbench-env-1.log"), tempDir)
	if !unsafe || reason != "refusing to delete symlink" {
		t.Fatalf("expected symlink to be rejected, got unsafe=%v reason=%q", unsafe, reason)
	}
}

func TestLoggerIsUnsafeFileRejectsOutsideTempDir(t *testing.T) {
	tempDir := t.TempDir()
	otherDir := t.TempDir()
	stubFileStat(t, func(string) (os.FileInfo, error) { return fakeFileInfo{}, nil })
	stubEvalSymlinks(t, func(string) (string, error) {
		return filepath.Join(otherDir, "rlbench-env-9.log"), nil
	})
	unsafe, reason := isUnsafeFile(filepath.Join(otherDir, "rlbench-env-9.log"), tempDir)
	if !unsafe || reason != "file is outside tempDir" {
		t.Fatalf("expected outside file to be rejected, got unsafe=%v reason=%q", unsafe, reason)
	}
}

func TestLoggerParsePIDFromLog(t *testing.T) {
	hugePID := strconv.FormatInt(math.MaxInt64, 10) + "0"
	tests := []struct {
		name string
		pid  int
		ok   bool
	}{
		{"rlbench-env-123.log", 123, true},
		{"rlbench-env-999-extra.log", 999, true},
		{"rlbench-env-.log", 0, false},
		{"invalid-name.log", 0, false},
		{"rlbench-env--5.log", 0, false},
		{"rlbench-env-0.log", 0, false},
		{fmt.Sprintf("rlbench-env-%s.log", hugePID), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePIDFromLog(filepath.Join("/tmp", tt.name))
			if ok != tt.ok {
				t.Fatalf("parsePIDFromLog ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.pid {
				t.Fatalf("pid = %d, want %d", got, tt.pid)
			}
		})
	}
}

func TestLoggerExtractRecentErrorsBounds(t *testing.T) {
	setTempDirEnv(t, t.TempDir())

	logger, err := NewLoggerWithSuffix("bounds")
	if err != nil {
		t.Fatalf("NewLoggerWithSuffix() error = %v", err)
	}
	defer logger.Close()

	logger.Info("started")
	for i := 1; i <= 150; i++ {
		logger.Error(fmt.Sprintf("error-%03d", i))
	}

	if got := logger.ExtractRecentErrors(0); got != nil {
		t.Fatalf("ExtractRecentErrors(0) = %v, want nil", got)
	}
	if got := logger.ExtractRecentErrors(3); len(got) != 3 || got[0] != "error-148" || got[2] != "error-150" {
		t.Fatalf("ExtractRecentErrors(3) = %v", got)
	}
	all := logger.ExtractRecentErrors(500)
	if len(all) != maxErrorEntries {
		t.Fatalf("cached entries = %d, want %d", len(all), maxErrorEntries)
	}
	if all[0] != "error-051" {
		t.Fatalf("oldest cached entry = %q, want error-051", all[0])
	}

	var nilLogger *Logger
	if nilLogger.ExtractRecentErrors(10) != nil || nilLogger.Path() != "" || nilLogger.RemoveLogFile() != nil {
		t.Fatalf("nil logger methods should be no-ops")
	}
}

func TestSanitizeLogSuffixNoDuplicates(t *testing.T) {
	seen := make(map[string]string)
	for _, input := range []string{"task", "task.", ".task", "-task", "task-", "--task--", "reach/target"} {
		result := sanitizeLogSuffix(input)
		if result == "" {
			t.Fatalf("sanitizeLogSuffix(%q) returned empty string", input)
		}
		if prev, exists := seen[result]; exists {
			t.Fatalf("collision detected: %q and %q both produce %q", input, prev, result)
		}
		seen[result] = input
		if strings.ContainsAny(result, "/\\:*?\"<>|") {
			t.Fatalf("sanitizeLogSuffix(%q) = %q contains unsafe characters", input, result)
		}
	}
}

func createTempLog(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
		t.Fatalf("failed to create temp log %s: %v", path, err)
	}
	return path
}

func setTempDirEnv(t *testing.T, dir string) string {
	t.Helper()
	resolved := dir
	if eval, err := filepath.EvalSymlinks(dir); err == nil {
		resolved = eval
	}
	t.Setenv("TMPDIR", resolved)
	t.Setenv("TEMP", resolved)
	t.Setenv("TMP", resolved)
	return resolved
}

func stubProcessRunning(t *testing.T, fn func(int) bool) {
	t.Helper()
	t.Cleanup(SetProcessRunningCheck(fn))
}

func stubProcessStartTime(t *testing.T, fn func(int) time.Time) {
	t.Helper()
	t.Cleanup(SetProcessStartTimeFn(fn))
}

func stubRemoveLogFile(t *testing.T, fn func(string) error) {
	t.Helper()
	t.Cleanup(SetRemoveLogFileFn(fn))
}

func stubGlobLogFiles(t *testing.T, fn func(string) ([]string, error)) {
	t.Helper()
	t.Cleanup(SetGlobLogFilesFn(fn))
}

func stubFileStat(t *testing.T, fn func(string) (os.FileInfo, error)) {
	t.Helper()
	t.Cleanup(SetFileStatFn(fn))
}

func stubEvalSymlinks(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	t.Cleanup(SetEvalSymlinksFn(fn))
}

type fakeFileInfo struct {
	modTime time.Time
	mode    os.FileMode
}

func (f fakeFileInfo) Name() string       { return "fake" }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() os.FileMode  { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() interface{}   { return nil }
