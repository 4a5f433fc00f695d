// Package runlog owns the append-only execution log: one flat text file
// that every run appends to and nothing ever rewrites or rotates.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log appends timestamped lines to a single shared file. The file is opened
// with O_APPEND so interleaved runs append whole lines rather than clobber
// each other; there is no further lock discipline, matching the execution
// model of one run at a time.
type Log struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (creating if needed) the log file at path for appending.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening execution log: %w", err)
	}
	return &Log{f: f}, nil
}

// Printf appends one timestamped line.
func (l *Log) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.f, "%s %s\n", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
}

// Writer exposes the underlying append-only file so the structured logger
// can tee its output into the execution log.
func (l *Log) Writer() io.Writer { return appendWriter{l} }

// Close closes the log file.
func (l *Log) Close() error { return l.f.Close() }

// appendWriter serializes raw writes through the log's mutex so structured
// log lines and Printf lines do not interleave mid-line.
type appendWriter struct{ l *Log }

func (w appendWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	return w.l.f.Write(p)
}
