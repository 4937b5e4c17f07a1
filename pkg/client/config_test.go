// Copyright 2024-2026 Aiku AI

package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if cfg.BaseURL != "https://api.upryzing.app" {
		t.Errorf("BaseURL: got %q, want %q", cfg.BaseURL, "https://api.upryzing.app")
	}
	if !cfg.AutoReconnect {
		t.Error("AutoReconnect should default to true")
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval: got %s, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.PongTimeout != 10*time.Second {
		t.Errorf("PongTimeout: got %s, want 10s", cfg.PongTimeout)
	}
	if cfg.Partials || cfg.SyncUnreads {
		t.Error("Partials and SyncUnreads should default to false")
	}
	if err := cfg.PostProcess(); err != nil {
		t.Errorf("PostProcess of the default config: %v", err)
	}
}

func TestConfigUnmarshalYAML(t *testing.T) {
	t.Parallel()
	input := `
base_url: https://chat.example.com
partials: true
heartbeat_interval: 5s
request_rate: 2.5
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL: got %q", cfg.BaseURL)
	}
	if !cfg.Partials {
		t.Error("Partials: got false, want true")
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval: got %s, want 5s", cfg.HeartbeatInterval)
	}
	if cfg.RequestRate != 2.5 {
		t.Errorf("RequestRate: got %v, want 2.5", cfg.RequestRate)
	}
}

func TestConfigLoadEnv(t *testing.T) {
	t.Setenv("UPRYZING_BASE_URL", "https://env.example.com")
	t.Setenv("UPRYZING_SYNC_UNREADS", "true")
	t.Setenv("UPRYZING_PONG_TIMEOUT", "3s")

	cfg := DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL: got %q", cfg.BaseURL)
	}
	if !cfg.SyncUnreads {
		t.Error("SyncUnreads: got false, want true")
	}
	if cfg.PongTimeout != 3*time.Second {
		t.Errorf("PongTimeout: got %s, want 3s", cfg.PongTimeout)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval: got %s, want the default", cfg.HeartbeatInterval)
	}
}

func TestConfigLoadEnvInvalid(t *testing.T) {
	t.Setenv("UPRYZING_REQUEST_BURST", "many")

	cfg := DefaultConfig()
	if err := cfg.LoadEnv(); err == nil {
		t.Error("LoadEnv should fail for a non-numeric burst")
	}
}

func TestConfigPostProcessInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }},
		{"malformed base url", func(c *Config) { c.BaseURL = "not a url" }},
		{"malformed ws url", func(c *Config) { c.WebSocketURL = "::" }},
		{"negative rate", func(c *Config) { c.RequestRate = -1 }},
		{"negative heartbeat", func(c *Config) { c.HeartbeatInterval = -time.Second }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.modify(&cfg)
			if err := cfg.PostProcess(); err == nil {
				t.Error("PostProcess should fail")
			}
		})
	}
}

func TestConfigPostProcessPongTimeout(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.PongTimeout = 0
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	if cfg.PongTimeout != cfg.HeartbeatInterval {
		t.Errorf("PongTimeout: got %s, want %s", cfg.PongTimeout, cfg.HeartbeatInterval)
	}
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	input := "base_url: https://chat.example.com\nsync_unreads: true\n"
	if err := os.WriteFile(path, []byte(input), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL: got %q", cfg.BaseURL)
	}
	if !cfg.SyncUnreads {
		t.Error("SyncUnreads: got false, want true")
	}
	if cfg.HeartbeatInterval != 30*time.Second || cfg.RequestBurst != 10 {
		t.Errorf("defaults not filled: heartbeat %s burst %d", cfg.HeartbeatInterval, cfg.RequestBurst)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig should fail for a missing file")
	}
}
