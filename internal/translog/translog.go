package translog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	fileTimeLayout = "2006-01-02_15-04-05"
	lineTimeLayout = "2006-01-02 15:04:05"
)

// File is an append-only transcript log for one recognizer run.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// New creates the log directory if needed and opens a fresh log file named
// after the current time, writing a header line.
func New(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("log_%s.txt", now.Format(fileTimeLayout)))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	lf := &File{path: path, f: f}
	lf.writeLine(fmt.Sprintf("===== Sanyou AI log %s =====", now.Format(fileTimeLayout)))

	return lf, nil
}

// Path returns the log file path.
func (l *File) Path() string {
	return l.path
}

// WriteLine appends one timestamped line. Writes are best effort: a full
// disk must not take the recognizer down, so errors are swallowed.
func (l *File) WriteLine(line string) {
	l.writeLine(line)
}

func (l *File) writeLine(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return
	}
	ts := time.Now().Format(lineTimeLayout)
	fmt.Fprintf(l.f, "[%s] %s\n", ts, line)
}

// Close flushes and closes the file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
