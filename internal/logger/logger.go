package logger

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// maxErrorEntries bounds the in-memory cache of WARN/ERROR messages.
const maxErrorEntries = 100

// Logger writes structured JSON lines to a per-process file under the temp dir.
type Logger struct {
	path string
	file *os.File
	zl   zerolog.Logger

	mu           sync.Mutex
	closed       bool
	errorEntries []string
}

// NewLogger creates $TMPDIR/rlbench-env-<pid>.log.
func NewLogger() (*Logger, error) {
	return NewLoggerWithSuffix("")
}

// NewLoggerWithSuffix creates $TMPDIR/rlbench-env-<pid>-<suffix>.log.
func NewLoggerWithSuffix(suffix string) (*Logger, error) {
	name := fmt.Sprintf("%s-%d", PrimaryLogPrefix(), os.Getpid())
	if s := sanitizeLogSuffix(suffix); s != "" {
		name += "-" + s
	}
	path := filepath.Join(os.TempDir(), name+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path is built from pid and sanitized suffix under the temp dir
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	zl := zerolog.New(zerolog.SyncWriter(f)).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()

	return &Logger{path: path, file: f, zl: zl}, nil
}

// Path returns the log file path, or "" for a nil logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Logger) Debug(msg string) { l.write(zerolog.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.write(zerolog.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.write(zerolog.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.write(zerolog.ErrorLevel, msg) }

func (l *Logger) write(level zerolog.Level, msg string) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.zl.WithLevel(level).Msg(msg)

	if level >= zerolog.WarnLevel {
		l.errorEntries = append(l.errorEntries, msg)
		if over := len(l.errorEntries) - maxErrorEntries; over > 0 {
			l.errorEntries = append(l.errorEntries[:0], l.errorEntries[over:]...)
		}
	}
}

// Flush syncs the log file to disk.
func (l *Logger) Flush() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.file.Sync()
}

// Close stops further writes. The file is kept on disk.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// RemoveLogFile deletes the log file. Missing files are not an error.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := removeLogFileFn(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExtractRecentErrors returns up to maxEntries of the most recent WARN/ERROR
// messages in the order they were written.
func (l *Logger) ExtractRecentErrors(maxEntries int) []string {
	if l == nil || maxEntries <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errorEntries) == 0 {
		return nil
	}
	start := 0
	if len(l.errorEntries) > maxEntries {
		start = len(l.errorEntries) - maxEntries
	}
	out := make([]string, len(l.errorEntries)-start)
	copy(out, l.errorEntries[start:])
	return out
}

// sanitizeLogSuffix maps a caller-provided suffix to a filename-safe token.
// Inputs that had to be altered get a short hash so distinct inputs never
// collide on the same file.
func sanitizeLogSuffix(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var sb strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	cleaned := strings.Trim(sb.String(), ".-")
	if cleaned == raw {
		return cleaned
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(raw))
	if cleaned == "" {
		return fmt.Sprintf("%08x", h.Sum32())
	}
	return fmt.Sprintf("%s-%08x", cleaned, h.Sum32())
}
