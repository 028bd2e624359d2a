package logger

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// active is the process-wide logger behind the Log* helpers. A run installs
// one file logger at start-up; packages log through it without holding a
// reference, and logging before SetLogger or after CloseLogger is dropped.
var active atomic.Pointer[Logger]

// SetLogger installs l as the process-wide logger.
func SetLogger(l *Logger) { active.Store(l) }

// CloseLogger detaches and closes the process-wide logger.
func CloseLogger() error {
	l := active.Swap(nil)
	if l == nil {
		return nil
	}
	return l.Close()
}

func ActiveLogger() *Logger { return active.Load() }

func logAt(level zerolog.Level, msg string) {
	if l := active.Load(); l != nil {
		l.write(level, msg)
	}
}

func logWarn(msg string) { logAt(zerolog.WarnLevel, msg) }

// LogDebug records simulator chatter that is only useful when diagnosing a
// launch.
func LogDebug(msg string) { logAt(zerolog.DebugLevel, msg) }
func LogInfo(msg string)  { logAt(zerolog.InfoLevel, msg) }
func LogWarn(msg string)  { logAt(zerolog.WarnLevel, msg) }
func LogError(msg string) { logAt(zerolog.ErrorLevel, msg) }
