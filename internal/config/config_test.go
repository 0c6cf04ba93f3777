package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
feed:
  page_size: 5
  timeout: 15s
discord:
  webhook_url: https://discord.com/api/webhooks/1/abc
  rate_per_sec: 2
monitor:
  schedule: "*/10 * * * *"
cursor:
  driver: file
  path: ./state/cursor.txt
logging:
  level: debug
  console: true
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.PageSize != 5 || cfg.Feed.Timeout != "15s" {
		t.Fatalf("feed = %+v", cfg.Feed)
	}
	if cfg.Discord.RatePerSec != 2 {
		t.Fatalf("discord = %+v", cfg.Discord)
	}
	if cfg.Monitor.Schedule != "*/10 * * * *" {
		t.Fatalf("schedule = %q", cfg.Monitor.Schedule)
	}
	if cfg.Cursor.Path != "./state/cursor.txt" {
		t.Fatalf("cursor = %+v", cfg.Cursor)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"discord": {"webhook_url": "https://discord.com/api/webhooks/1/abc"}}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
discord:
  webhook_url: https://discord.com/api/webhooks/1/abc
  webook_token: oops
`)

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json", `{"discord": {}}{"discord": {}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(WebhookEnvVar, "https://discord.com/api/webhooks/2/env")
	path := writeConfig(t, "config.yaml", `
discord:
  webhook_url: https://discord.com/api/webhooks/1/file
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.WebhookURL != "https://discord.com/api/webhooks/2/env" {
		t.Fatalf("webhook = %q, want env value", cfg.Discord.WebhookURL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Discord: DiscordConfig{WebhookURL: "https://discord.com/api/webhooks/1/abc"}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{
			name:    "missing webhook",
			mutate:  func(c *Config) { c.Discord.WebhookURL = "" },
			wantErr: WebhookEnvVar,
		},
		{
			name:    "non-url webhook",
			mutate:  func(c *Config) { c.Discord.WebhookURL = "definitely not a url" },
			wantErr: "http",
		},
		{
			name:    "page size out of range",
			mutate:  func(c *Config) { c.Feed.PageSize = 100 },
			wantErr: "page_size",
		},
		{
			name:    "bad feed timeout",
			mutate:  func(c *Config) { c.Feed.Timeout = "soon" },
			wantErr: "feed.timeout",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Discord.RatePerSec = -1 },
			wantErr: "rate_per_sec",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 10s "); err != nil || d.Seconds() != 10 {
		t.Fatalf("ParseDurationField = (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v), want (0, nil)", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("expected error for garbage duration")
	}
}
