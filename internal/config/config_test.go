package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := `agents = ["frontend", "backend"]`
	if err := os.WriteFile(filepath.Join(tmpDir, "drover.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if len(cfg.Agents) != 2 {
		t.Errorf("Agents = %v, want 2 entries", cfg.Agents)
	}
	if cfg.HeartbeatTimeout() != 300*time.Second {
		t.Errorf("HeartbeatTimeout = %v, want 300s", cfg.HeartbeatTimeout())
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RestartCooldown() != 300*time.Second {
		t.Errorf("RestartCooldown = %v, want 300s", cfg.RestartCooldown())
	}
	if cfg.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d, want 65536", cfg.MaxMessageSize)
	}
	if cfg.CleanupSchedule != "@hourly" {
		t.Errorf("CleanupSchedule = %q, want @hourly", cfg.CleanupSchedule)
	}
}

func TestLoadOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
agents = ["a"]
heartbeat_timeout_seconds = 60
max_retries = 5
max_message_size = 1024

[tmux]
session_prefix = "herd-"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "drover.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.HeartbeatTimeout() != time.Minute {
		t.Errorf("HeartbeatTimeout = %v, want 1m", cfg.HeartbeatTimeout())
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.Tmux.SessionPrefix != "herd-" {
		t.Errorf("SessionPrefix = %q, want herd-", cfg.Tmux.SessionPrefix)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load should fail without drover.toml")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `agents = [`},
		{"zero heartbeat", `heartbeat_timeout_seconds = 0`},
		{"negative retries", `max_retries = -1`},
		{"zero message size", `max_message_size = 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, "drover.toml"), []byte(tt.content), 0644); err != nil {
				t.Fatalf("WriteFile error: %v", err)
			}
			if _, err := Load(tmpDir); err == nil {
				t.Error("Load should reject invalid config")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Agents = []string{"frontend", "backend", "docs"}
	cfg.MaxRetries = 4

	if err := Save(tmpDir, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(loaded.Agents) != 3 {
		t.Errorf("Agents = %v, want 3 entries", loaded.Agents)
	}
	if loaded.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", loaded.MaxRetries)
	}
}
