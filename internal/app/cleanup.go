package app

import (
	"fmt"
	"os"
	"sync"

	config "rlbench-env/internal/config"
)

var (
	cleanupLogsFn  = cleanupOldLogs
	cleanupHook    func()
	cleanupHookMu  sync.Mutex
	startupCleanup sync.WaitGroup
)

// scheduleStartupCleanup removes stale logs in the background unless
// RLBENCH_SKIP_LOG_CLEANUP is set. runCleanupHook waits for it.
func scheduleStartupCleanup() {
	if config.EnvFlagEnabled("RLBENCH_SKIP_LOG_CLEANUP") {
		return
	}
	startupCleanup.Add(1)
	go func() {
		defer startupCleanup.Done()
		stats, err := cleanupLogsFn()
		if err != nil {
			logWarn(fmt.Sprintf("Startup log cleanup: %v", err))
			return
		}
		if stats.Deleted > 0 {
			logInfo(fmt.Sprintf("Startup log cleanup removed %d stale log(s)", stats.Deleted))
		}
	}()
}

func runCleanupHook() {
	startupCleanup.Wait()
	cleanupHookMu.Lock()
	hook := cleanupHook
	cleanupHookMu.Unlock()
	if hook != nil {
		hook()
	}
}

func runCleanupMode() int {
	stats, err := cleanupLogsFn()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Cleanup completed")
	fmt.Fprintf(stdout, "Files scanned: %d\n", stats.Scanned)
	fmt.Fprintf(stdout, "Files deleted: %d\n", stats.Deleted)
	for _, f := range stats.DeletedFiles {
		fmt.Fprintf(stdout, "  - %s\n", f)
	}
	fmt.Fprintf(stdout, "Files kept: %d\n", stats.Kept)
	for _, f := range stats.KeptFiles {
		fmt.Fprintf(stdout, "  - %s\n", f)
	}
	if stats.Errors > 0 {
		fmt.Fprintf(stdout, "Deletion errors: %d\n", stats.Errors)
	}
	return 0
}
