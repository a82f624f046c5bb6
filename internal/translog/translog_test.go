package translog

import (
	"os"
	"strings"
	"testing"
)

func TestNewCreatesFileWithHeader(t *testing.T) {
	dir := t.TempDir()

	lf, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}
	defer lf.Close()

	if lf.Path() == "" {
		t.Fatal("Expected a non-empty log path")
	}

	data, err := os.ReadFile(lf.Path())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "Sanyou AI log") {
		t.Errorf("Expected header line, got %q", string(data))
	}
}

func TestWriteLineIsTimestamped(t *testing.T) {
	dir := t.TempDir()

	lf, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	lf.WriteLine("[RU] привет")
	if err := lf.Close(); err != nil {
		t.Fatalf("Failed to close log: %v", err)
	}

	data, err := os.ReadFile(lf.Path())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header plus one line, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "[") || !strings.Contains(lines[1], "[RU] привет") {
		t.Errorf("Expected timestamped transcript line, got %q", lines[1])
	}
}

func TestWriteAfterCloseIsIgnored(t *testing.T) {
	dir := t.TempDir()

	lf, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}
	lf.Close()

	// Must not panic or error.
	lf.WriteLine("ignored")
}
