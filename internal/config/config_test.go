package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Service.LogLevel != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.Service.LogLevel)
	}
	if cfg.Backend.BaseURL != "http://localhost:8080" {
		t.Fatalf("backend url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 15*time.Second {
		t.Fatalf("timeout = %s", cfg.Backend.Timeout)
	}
	if cfg.History.Size != 10 {
		t.Fatalf("history size = %d", cfg.History.Size)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Port != 8090 {
		t.Fatalf("http config = %+v", cfg.HTTP)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `backend:
  base_url: http://dialer.internal:9000
  timeout: 5s
queue:
  poll_interval: 10s
http:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Backend.BaseURL != "http://dialer.internal:9000" {
		t.Fatalf("backend url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Fatalf("timeout = %s", cfg.Backend.Timeout)
	}
	if cfg.Queue.PollInterval != 10*time.Second {
		t.Fatalf("poll interval = %s", cfg.Queue.PollInterval)
	}
	if cfg.HTTP.Enabled {
		t.Fatal("http should be disabled")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
