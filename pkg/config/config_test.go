package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
	if cfg.Server.Address != "0.0.0.0:8080" {
		t.Errorf("unexpected default address %q", cfg.Server.Address)
	}
	if cfg.Capture.Interval != 33*time.Millisecond {
		t.Errorf("unexpected default capture interval %v", cfg.Capture.Interval)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty secret",
			mutate: func(c *Config) { c.Auth.Secret = "" },
		},
		{
			name:   "quality above 100",
			mutate: func(c *Config) { c.Capture.Quality = 101 },
		},
		{
			name:   "zero downscale",
			mutate: func(c *Config) { c.Capture.Downscale = 0 },
		},
		{
			name:   "unknown capture backend",
			mutate: func(c *Config) { c.Capture.Backend = "vnc" },
		},
		{
			name:   "unknown filter",
			mutate: func(c *Config) { c.Capture.Filter = "bicubic" },
		},
		{
			name:   "secret with newline",
			mutate: func(c *Config) { c.Auth.Secret = "abc\n" },
		},
		{
			name:   "address without port",
			mutate: func(c *Config) { c.Server.Address = "0.0.0.0" },
		},
		{
			name:   "http relay url",
			mutate: func(c *Config) { c.Agent.RelayURL = "http://relay:8080/" },
		},
		{
			name:   "origin with scheme",
			mutate: func(c *Config) { c.Session.AllowedOrigins = []string{"https://desk.example"} },
		},
		{
			name:   "zero error delay",
			mutate: func(c *Config) { c.Capture.ErrorDelay = 0 },
		},
		{
			name:   "zero bus capacity",
			mutate: func(c *Config) { c.Capture.BusCapacity = 0 },
		},
		{
			name:   "unknown input backend",
			mutate: func(c *Config) { c.Input.Backend = "xdotool" },
		},
		{
			name:   "pong timeout not above ping interval",
			mutate: func(c *Config) { c.Session.PongTimeout = c.Session.PingInterval },
		},
		{
			name: "redis enabled without address",
			mutate: func(c *Config) {
				c.Relay.Redis.Enabled = true
				c.Relay.Redis.Address = ""
			},
		},
		{
			name:   "reconnect max below delay",
			mutate: func(c *Config) { c.Agent.ReconnectMax = c.Agent.ReconnectDelay / 2 },
		},
		{
			name: "tracing sample rate above 1",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 2
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Relay.QueueSize != 256 {
		t.Errorf("expected default queue size, got %d", cfg.Relay.QueueSize)
	}
}

func TestLoad_FileOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: "127.0.0.1:9999"
auth:
  secret: "from-file"
capture:
  downscale: 1
  quality: 60
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DESKRELAY_AUTH_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:9999" {
		t.Errorf("address = %q, want 127.0.0.1:9999", cfg.Server.Address)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("secret = %q, want env override", cfg.Auth.Secret)
	}
	if cfg.Capture.Downscale != 1 || cfg.Capture.Quality != 60 {
		t.Errorf("capture overrides not applied: %+v", cfg.Capture)
	}
	// untouched sections keep their defaults
	if cfg.Capture.Interval != 33*time.Millisecond {
		t.Errorf("interval = %v, want default", cfg.Capture.Interval)
	}
}

func TestLoad_InvalidFileIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  quality: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid quality")
	}
}

func TestLoadFirst_SkipsMissingPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "second.yaml")
	if err := os.WriteFile(path, []byte("relay:\n  queue_size: 8\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, used, err := LoadFirst(filepath.Join(dir, "first.yaml"), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != path {
		t.Errorf("used = %q, want %q", used, path)
	}
	if cfg.Relay.QueueSize != 8 {
		t.Errorf("queue size = %d, want 8", cfg.Relay.QueueSize)
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("shipped config does not load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Capture != def.Capture {
		t.Errorf("capture = %+v, want %+v", cfg.Capture, def.Capture)
	}
	if cfg.Agent != def.Agent {
		t.Errorf("agent = %+v, want %+v", cfg.Agent, def.Agent)
	}
}
