// Package config builds the explicit configuration value the rest of the
// process is constructed from.
//
// DESIGN: Environment-first with defaults for every key, so the watcher runs
// with no configuration at all. An optional YAML file (POOLWATCH_CONFIG)
// overrides the environment-derived values and supports ${VAR:-default}
// expansion. The Config value is created once in main and passed into each
// component constructor; nothing reads globals at use time except the live
// maintenance switch, which is deliberately re-read per check.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for every tunable.
const (
	DefaultLogFile            = "/var/log/nginx/access.log"
	DefaultErrorRateThreshold = 2.0
	DefaultWindowSize         = 200
	DefaultAlertCooldownSec   = 300
	DefaultActivePool         = "blue"
	DefaultPollIntervalSec    = 1
	DefaultNotifyTimeoutSec   = 10
)

// Config holds all poolwatch configuration.
type Config struct {
	LogFile            string  `yaml:"log_file"`
	SlackWebhookURL    string  `yaml:"slack_webhook_url"`
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"` // percent
	WindowSize         int     `yaml:"window_size"`
	AlertCooldownSec   int     `yaml:"alert_cooldown_sec"`
	ActivePool         string  `yaml:"active_pool"`
	MaintenanceMode    bool    `yaml:"maintenance_mode"`
	// WarmupSize is the minimum number of windowed observations before the
	// error-rate threshold is evaluated; 0 means the window must be full.
	WarmupSize       int           `yaml:"warmup_size"`
	PollIntervalSec  int           `yaml:"poll_interval_sec"`
	ReplayExisting   bool          `yaml:"replay_existing"`
	NotifyTimeoutSec int           `yaml:"notify_timeout_sec"`
	AlertHistoryDSN  string        `yaml:"alert_history_dsn"`
	Logging          LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds diagnostics output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		LogFile:            getenv("LOG_FILE", DefaultLogFile),
		SlackWebhookURL:    os.Getenv("SLACK_WEBHOOK_URL"),
		ErrorRateThreshold: getenvFloat("ERROR_RATE_THRESHOLD", DefaultErrorRateThreshold),
		WindowSize:         getenvInt("WINDOW_SIZE", DefaultWindowSize),
		AlertCooldownSec:   getenvInt("ALERT_COOLDOWN_SEC", DefaultAlertCooldownSec),
		ActivePool:         getenv("ACTIVE_POOL", DefaultActivePool),
		MaintenanceMode:    getenvBool("MAINTENANCE_MODE", false),
		WarmupSize:         getenvInt("WARMUP_SIZE", 0),
		PollIntervalSec:    getenvInt("POLL_INTERVAL_SEC", DefaultPollIntervalSec),
		ReplayExisting:     getenvBool("REPLAY_EXISTING", true),
		NotifyTimeoutSec:   getenvInt("NOTIFY_TIMEOUT_SEC", DefaultNotifyTimeoutSec),
		AlertHistoryDSN:    os.Getenv("ALERT_HISTORY_DSN"),
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
			Output: getenv("LOG_OUTPUT", "stderr"),
		},
	}
}

// LoadFile overlays the environment-derived configuration with a YAML file.
// The file contents support ${VAR} and ${VAR:-default} expansion.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes on top of the
// environment-derived defaults.
func LoadFromBytes(data []byte) (Config, error) {
	expanded := ExpandEnvWithDefaults(string(data))

	cfg := Load()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// Resolve returns the effective configuration: the YAML file named by
// POOLWATCH_CONFIG when set, plain environment loading otherwise.
func Resolve() (Config, error) {
	if path := os.Getenv("POOLWATCH_CONFIG"); path != "" {
		return LoadFile(path)
	}
	return Load(), nil
}

// Validate rejects combinations the core cannot run with. Called once at
// startup; a failure here is fatal, outside the processing loop.
func (c Config) Validate() error {
	if c.LogFile == "" {
		return fmt.Errorf("config: log_file is required")
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("config: window_size must be >= 1, got %d", c.WindowSize)
	}
	if c.WarmupSize < 0 || c.WarmupSize > c.WindowSize {
		return fmt.Errorf("config: warmup_size %d out of range for window_size %d", c.WarmupSize, c.WindowSize)
	}
	if c.ErrorRateThreshold < 0 || c.ErrorRateThreshold > 100 {
		return fmt.Errorf("config: error_rate_threshold %.2f out of range", c.ErrorRateThreshold)
	}
	if c.AlertCooldownSec < 0 {
		return fmt.Errorf("config: alert_cooldown_sec must be >= 0, got %d", c.AlertCooldownSec)
	}
	if c.PollIntervalSec < 1 {
		return fmt.Errorf("config: poll_interval_sec must be >= 1, got %d", c.PollIntervalSec)
	}
	if c.NotifyTimeoutSec < 1 {
		return fmt.Errorf("config: notify_timeout_sec must be >= 1, got %d", c.NotifyTimeoutSec)
	}
	return nil
}

// AlertCooldown returns the cooldown as a duration.
func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownSec) * time.Second
}

// PollInterval returns the tail poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// NotifyTimeout returns the outbound notification timeout as a duration.
func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSec) * time.Second
}

// MaintenanceActive reports whether maintenance mode is on right now.
// The MAINTENANCE_MODE environment variable is re-read on every call so
// operators can toggle suppression without restarting; the value captured
// at load time is the fallback when the variable is unset.
func (c Config) MaintenanceActive() bool {
	if v := os.Getenv("MAINTENANCE_MODE"); v != "" {
		return parseBool(v)
	}
	return c.MaintenanceMode
}

// expansion pattern matches ${VAR:-default} or ${VAR}.
var envExpandRe = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// ExpandEnvWithDefaults expands environment variables with support for
// default values: ${VAR} and ${VAR:-default}.
func ExpandEnvWithDefaults(s string) string {
	return envExpandRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envExpandRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return parseBool(v)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
