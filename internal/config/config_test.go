package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Color != ColorAuto {
		t.Errorf("expected default color %q, got %q", ColorAuto, cfg.Color)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "color: never\noutput_dir: /tmp/out\njobs: 4\nsymbol_blocklist:\n  - memcpy\n  - strlen\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Color != ColorNever {
		t.Errorf("color: got %q, want %q", cfg.Color, ColorNever)
	}
	if cfg.Jobs != 4 {
		t.Errorf("jobs: got %d, want 4", cfg.Jobs)
	}
	if !cfg.Blocked("memcpy") {
		t.Error("expected memcpy to be blocked")
	}
	if cfg.Blocked("strcasecmp") {
		t.Error("strcasecmp should not be blocked")
	}
}
