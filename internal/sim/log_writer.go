package sim

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"
)

// simLogLineLimit caps a single forwarded simulator output line.
const simLogLineLimit = 1000

// logWriter turns the simulator's console output into log entries, one per
// line. ANSI escape sequences and control characters are stripped and lines
// longer than maxLen end in "...".
type logWriter struct {
	prefix string
	maxLen int
	logFn  func(string)

	mu        sync.Mutex
	pending   []byte
	truncated bool
}

func newLogWriter(prefix string, maxLen int, logFn func(string)) *logWriter {
	if maxLen <= 0 {
		maxLen = simLogLineLimit
	}
	if logFn == nil {
		logFn = logInfo
	}
	return &logWriter{prefix: prefix, maxLen: maxLen, logFn: logFn}
}

func (lw *logWriter) Write(p []byte) (int, error) {
	if lw == nil {
		return len(p), nil
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()

	n := len(p)
	for {
		chunk, rest, found := bytes.Cut(p, []byte{'\n'})
		lw.buffer(chunk)
		if !found {
			return n, nil
		}
		lw.emit()
		p = rest
	}
}

// Flush emits a trailing line that had no newline yet.
func (lw *logWriter) Flush() {
	if lw == nil {
		return
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.pending) > 0 || lw.truncated {
		lw.emit()
	}
}

func (lw *logWriter) buffer(b []byte) {
	room := lw.maxLen - len(lw.pending)
	if len(b) > room {
		b = b[:max(room, 0)]
		lw.truncated = true
	}
	lw.pending = append(lw.pending, b...)
}

func (lw *logWriter) emit() {
	line := stripTerminalCodes(string(bytes.TrimRight(lw.pending, "\r")))
	if lw.truncated {
		line = cutRunes(line, lw.maxLen-3) + "..."
	}
	lw.pending = lw.pending[:0]
	lw.truncated = false
	lw.logFn(lw.prefix + line)
}

// cutRunes shortens s to at most n bytes without splitting a rune.
func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// stripTerminalCodes drops CSI escape sequences ("\x1b[...m") and control
// characters other than tab.
func stripTerminalCodes(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return r < 0x20 && r != '\t' }) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			i += 2
			for i < len(s) && (s[i] < 0x40 || s[i] > 0x7e) {
				i++
			}
			continue
		}
		if c < 0x20 && c != '\t' {
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
