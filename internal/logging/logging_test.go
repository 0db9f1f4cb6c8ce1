package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "runwatch.log")
	logger, err := New("debug", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "INFO", "debug", "warn", "error"} {
		if _, err := ParseLevel(in); err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := New("loud", ""); err == nil {
		t.Fatalf("expected New to reject unknown level")
	}
}
