package logger

import (
	"os"
	"path/filepath"
	"time"
)

// swapHook installs fn (or def when fn is nil) into *slot and returns a
// function restoring the previous value.
func swapHook[T any](slot *T, fn *T, def T) (restore func()) {
	prev := *slot
	if fn != nil {
		*slot = *fn
	} else {
		*slot = def
	}
	return func() { *slot = prev }
}

func hookArg[T any](fn T, isNil bool) *T {
	if isNil {
		return nil
	}
	return &fn
}

func SetProcessRunningCheck(fn func(int) bool) (restore func()) {
	return swapHook(&processRunningCheck, hookArg(fn, fn == nil), isProcessRunning)
}

func SetProcessStartTimeFn(fn func(int) time.Time) (restore func()) {
	return swapHook(&processStartTimeFn, hookArg(fn, fn == nil), getProcessStartTime)
}

func SetRemoveLogFileFn(fn func(string) error) (restore func()) {
	return swapHook(&removeLogFileFn, hookArg(fn, fn == nil), os.Remove)
}

func SetGlobLogFilesFn(fn func(string) ([]string, error)) (restore func()) {
	return swapHook(&globLogFiles, hookArg(fn, fn == nil), filepath.Glob)
}

func SetFileStatFn(fn func(string) (os.FileInfo, error)) (restore func()) {
	return swapHook(&fileStatFn, hookArg(fn, fn == nil), os.Lstat)
}

func SetEvalSymlinksFn(fn func(string) (string, error)) (restore func()) {
	return swapHook(&evalSymlinksFn, hookArg(fn, fn == nil), filepath.EvalSymlinks)
}
