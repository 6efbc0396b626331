package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "", "unknown"} {
		logger, err := NewLogger(level, "")
		if err != nil {
			t.Fatalf("level %q: unexpected error: %v", level, err)
		}
		if logger == nil {
			t.Fatalf("level %q: expected logger", level)
		}
	}
}

func TestNewLoggerWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncd.log")
	logger, err := NewLogger("info", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("file sink check")
	logger.Sync() //nolint:errcheck

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file read failed: %v", err)
	}
	if !strings.Contains(string(content), "file sink check") {
		t.Fatalf("expected message in log file, got %q", string(content))
	}
}
