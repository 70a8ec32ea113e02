package logging

import (
	"strings"
	"sync"
)

// DefaultCaptureLines is how many lines GlobalLogCapture keeps.
const DefaultCaptureLines = 50

// LogCaptureWriter is a thread-safe writer that keeps the most recent lines.
type LogCaptureWriter struct {
	mu    sync.RWMutex
	lines []string
	limit int
}

// GlobalLogCapture receives INFO+ records from the server logger.
var GlobalLogCapture = NewLogCapture(DefaultCaptureLines)

// NewLogCapture returns a writer holding at most limit lines.
func NewLogCapture(limit int) *LogCaptureWriter {
	if limit <= 0 {
		limit = 1
	}
	return &LogCaptureWriter{limit: limit}
}

// Write implements io.Writer. Each call is treated as one record.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
	if over := len(w.lines) - w.limit; over > 0 {
		w.lines = append(w.lines[:0:0], w.lines[over:]...)
	}
	return len(p), nil
}

// GetLastLine returns the most recent log line.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}

// Lines returns a copy of the retained lines, oldest first.
func (w *LogCaptureWriter) Lines() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.lines...)
}
