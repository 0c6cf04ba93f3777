package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// WebhookEnvVar overrides discord.webhook_url when set.
// Keeping the secret out of the config file is the recommended setup.
const WebhookEnvVar = "DISCORD_WEBHOOK_URL"

type Config struct {
	Feed    FeedConfig    `json:"feed"`
	Discord DiscordConfig `json:"discord"`
	Monitor MonitorConfig `json:"monitor"`
	Cursor  CursorConfig  `json:"cursor"`
	Logging LoggingConfig `json:"logging"`
}

// FeedConfig controls the Hacktivity feed client.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type FeedConfig struct {
	// Endpoint defaults to the public Hacktivity GraphQL endpoint.
	Endpoint string `json:"endpoint,omitempty"`
	// PageSize is the number of most-recent disclosures fetched per cycle (1..25).
	PageSize int `json:"page_size,omitempty"`
	// Timeout bounds the fetch HTTP call.
	Timeout string `json:"timeout,omitempty"`
}

// DiscordConfig controls webhook delivery.
type DiscordConfig struct {
	// WebhookURL is the mandatory sink secret. The DISCORD_WEBHOOK_URL
	// environment variable takes precedence when set.
	WebhookURL string `json:"webhook_url,omitempty"`
	// Timeout bounds a single delivery POST.
	Timeout string `json:"timeout,omitempty"`
	// RatePerSec caps outbound deliveries so a disclosure burst cannot
	// trip Discord's webhook limits. 0 means the default (1/s).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// MonitorConfig controls the poll loop.
type MonitorConfig struct {
	// Schedule is either a cron expression ("*/10 * * * *", "@every 10m")
	// or a plain interval duration ("10m"). Defaults to "10m".
	Schedule string `json:"schedule,omitempty"`
}

// CursorConfig controls cursor persistence.
//
// Driver values:
//   - "file": single small text file, atomic replace (default)
//   - "sqlite": SQLite database file (optional build tag)
type CursorConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

const (
	DefaultEndpoint = "https://hackerone.com/graphql"
	DefaultPageSize = 10
	DefaultTimeout  = 10 * time.Second
	DefaultSchedule = "10m"
	DefaultCursor   = "./last_disclosed_id.txt"
)

// ApplyEnv overlays environment values onto the parsed config.
// Env wins over file so systemd drop-ins can rotate the secret
// without touching the config file.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(WebhookEnvVar)); v != "" {
		c.Discord.WebhookURL = v
	}
}

// Validate checks the config before the loop starts.
// Any error returned here is fatal (ConfigError in the design notes).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.WebhookURL) == "" {
		return fmt.Errorf("discord.webhook_url is required (set it in the config file or via %s)", WebhookEnvVar)
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Discord.WebhookURL), "http") {
		return fmt.Errorf("discord.webhook_url must be an http(s) URL")
	}
	if c.Feed.PageSize < 0 || c.Feed.PageSize > 25 {
		return fmt.Errorf("feed.page_size must be in 1..25 (or omitted)")
	}
	if _, err := ParseDurationField("feed.timeout", c.Feed.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("discord.timeout", c.Discord.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("cursor.busy_timeout", c.Cursor.BusyTimeout); err != nil {
		return err
	}
	if c.Discord.RatePerSec < 0 {
		return fmt.Errorf("discord.rate_per_sec must be >= 0")
	}
	return nil
}
