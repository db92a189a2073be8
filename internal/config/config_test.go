package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolwatch/poolwatch/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "/var/log/nginx/access.log", cfg.LogFile)
	assert.Empty(t, cfg.SlackWebhookURL)
	assert.Equal(t, 2.0, cfg.ErrorRateThreshold)
	assert.Equal(t, 200, cfg.WindowSize)
	assert.Equal(t, 300, cfg.AlertCooldownSec)
	assert.Equal(t, "blue", cfg.ActivePool)
	assert.False(t, cfg.MaintenanceMode)
	assert.Equal(t, 0, cfg.WarmupSize)
	assert.True(t, cfg.ReplayExisting)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 300*time.Second, cfg.AlertCooldown())
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/T000/B000")
	t.Setenv("ERROR_RATE_THRESHOLD", "5.5")
	t.Setenv("WINDOW_SIZE", "50")
	t.Setenv("ALERT_COOLDOWN_SEC", "60")
	t.Setenv("ACTIVE_POOL", "green")
	t.Setenv("MAINTENANCE_MODE", "true")
	t.Setenv("REPLAY_EXISTING", "false")

	cfg := config.Load()
	assert.Equal(t, "https://hooks.example.com/T000/B000", cfg.SlackWebhookURL)
	assert.Equal(t, 5.5, cfg.ErrorRateThreshold)
	assert.Equal(t, 50, cfg.WindowSize)
	assert.Equal(t, 60, cfg.AlertCooldownSec)
	assert.Equal(t, "green", cfg.ActivePool)
	assert.True(t, cfg.MaintenanceMode)
	assert.False(t, cfg.ReplayExisting)
}

func TestLoad_UnparsableValuesFallBack(t *testing.T) {
	t.Setenv("ERROR_RATE_THRESHOLD", "not-a-number")
	t.Setenv("WINDOW_SIZE", "many")

	cfg := config.Load()
	assert.Equal(t, 2.0, cfg.ErrorRateThreshold)
	assert.Equal(t, 200, cfg.WindowSize)
}

func TestLoadFromBytes_YAMLOverlaysEnv(t *testing.T) {
	t.Setenv("WINDOW_SIZE", "50")

	data := []byte(`
error_rate_threshold: 3.5
active_pool: green
logging:
  level: debug
`)
	cfg, err := config.LoadFromBytes(data)
	require.NoError(t, err)

	// YAML values win, env-derived values fill the gaps.
	assert.Equal(t, 3.5, cfg.ErrorRateThreshold)
	assert.Equal(t, "green", cfg.ActivePool)
	assert.Equal(t, 50, cfg.WindowSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_POOL", "green")
	os.Unsetenv("TEST_MISSING_WEBHOOK")

	data := []byte(`
active_pool: ${TEST_POOL}
slack_webhook_url: ${TEST_MISSING_WEBHOOK:-https://fallback.example.com}
`)
	cfg, err := config.LoadFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "green", cfg.ActivePool)
	assert.Equal(t, "https://fallback.example.com", cfg.SlackWebhookURL)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolve_UsesConfigFileWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poolwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_size: 42\n"), 0644))
	t.Setenv("POOLWATCH_CONFIG", path)

	cfg, err := config.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.WindowSize)
}

func TestValidate(t *testing.T) {
	base := config.Load()

	bad := base
	bad.WindowSize = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.WarmupSize = base.WindowSize + 1
	assert.Error(t, bad.Validate())

	bad = base
	bad.ErrorRateThreshold = 101
	assert.Error(t, bad.Validate())

	bad = base
	bad.AlertCooldownSec = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.LogFile = ""
	assert.Error(t, bad.Validate())

	bad = base
	bad.PollIntervalSec = 0
	assert.Error(t, bad.Validate())
}

func TestMaintenanceActive_LiveToggle(t *testing.T) {
	os.Unsetenv("MAINTENANCE_MODE")
	cfg := config.Load()
	assert.False(t, cfg.MaintenanceActive())

	// Toggled in the environment after load: picked up without a restart.
	t.Setenv("MAINTENANCE_MODE", "true")
	assert.True(t, cfg.MaintenanceActive())

	t.Setenv("MAINTENANCE_MODE", "false")
	assert.False(t, cfg.MaintenanceActive())
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("TEST_EXPAND_VAR", "hello")

	assert.Equal(t, "hello", config.ExpandEnvWithDefaults("${TEST_EXPAND_VAR}"))
	assert.Equal(t, "hello", config.ExpandEnvWithDefaults("${TEST_EXPAND_VAR:-fallback}"))
	assert.Equal(t, "fallback", config.ExpandEnvWithDefaults("${TEST_EXPAND_UNSET:-fallback}"))
	assert.Equal(t, "", config.ExpandEnvWithDefaults("${TEST_EXPAND_UNSET}"))
	assert.Equal(t, "plain", config.ExpandEnvWithDefaults("plain"))
}
