package transport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/improv/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewCapture_LogsPath(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	dir := filepath.Join(t.TempDir(), "nested")
	capture, err := NewCapture(dir)
	if err != nil {
		t.Fatalf("NewCapture() error = %v", err)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("capture directory not created: %v", err)
	}
	if !strings.HasPrefix(capture.Path(), dir) || filepath.Ext(capture.Path()) != ".jsonl" {
		t.Errorf("Path() = %q, want a .jsonl file in %q", capture.Path(), dir)
	}

	entries := logs.FilterMessage("Capturing frames").All()
	if len(entries) != 1 {
		t.Fatalf("logged %q %d times, want once", "Capturing frames", len(entries))
	}
	if got := entries[0].ContextMap()["file"]; got != capture.Path() {
		t.Errorf("logged file = %v, want %q", got, capture.Path())
	}
}

func TestReadCapture_Missing(t *testing.T) {
	if _, err := ReadCapture(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Error("ReadCapture() of a missing file succeeded")
	}
}
