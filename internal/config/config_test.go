package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planta.yaml")
	os.WriteFile(path, []byte("port: 8123\ncompany_name: Taller Norte\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8123 {
		t.Errorf("expected port 8123, got %d", cfg.Port)
	}
	if cfg.CompanyName != "Taller Norte" {
		t.Errorf("expected Taller Norte, got %s", cfg.CompanyName)
	}
	// Untouched keys keep defaults.
	if cfg.DataDir != "data" || cfg.SessionHours != 24 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planta.yaml")
	os.WriteFile(path, []byte("port: [not a number"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("malformed YAML should error")
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planta.yaml")
	os.WriteFile(path, []byte("port: 8123\ndata_dir: /srv/planta\n"), 0644)

	t.Setenv("PLANTA_PORT", "8999")
	t.Setenv("PLANTA_DATA_DIR", "/tmp/planta")
	t.Setenv("PLANTA_SESSION_HOURS", "0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8999 {
		t.Errorf("env should win over YAML, got %d", cfg.Port)
	}
	if cfg.DataDir != "/tmp/planta" {
		t.Errorf("env should win over YAML, got %s", cfg.DataDir)
	}
	// Non-positive session hours are ignored.
	if cfg.SessionHours != 24 {
		t.Errorf("expected default session hours, got %d", cfg.SessionHours)
	}
}
