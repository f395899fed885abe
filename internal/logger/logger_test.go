package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_FileSink(t *testing.T) {
	dir := t.TempDir()

	log, err := New("info", dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debugw("hidden", "k", 1)
	log.Infow("entry created", "slug", "royal-vegas")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "casinodir.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"slug":"royal-vegas"`) {
		t.Fatalf("log file missing structured field: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatal("debug event written at info level")
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New("loud", ""); err == nil {
		t.Fatal("expected error")
	}
}
