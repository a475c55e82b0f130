package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apbeeper.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, config.Tracking.PanelInterval.Duration)
	assert.Equal(t, time.Hour, config.Tracking.CleanupInterval.Duration)
	assert.Equal(t, 24*time.Hour, config.Tracking.StaleMaxAge.Duration)
	assert.Equal(t, 2*time.Minute, config.Twitch.Interval.Duration)
	assert.Equal(t, 10*time.Second, config.MainCycle.Duration)
	assert.Equal(t, 3000, config.Health.Port)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
main_cycle = "5s"

[discord]
token = "file-token"
client_id = "123"

[tracking]
stale_max_age = "1h"
match_policy = "strict"

[log]
level = "debug"
`)
	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, config.MainCycle.Duration)
	assert.Equal(t, time.Hour, config.Tracking.StaleMaxAge.Duration)
	assert.Equal(t, "strict", config.Tracking.MatchPolicy)
	assert.Equal(t, "debug", config.Log.Level)
	// Untouched values keep their defaults
	assert.Equal(t, 5*time.Minute, config.Tracking.PanelInterval.Duration)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, `main_cycle = "soon"`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `[discord`))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	config := Default()
	env := map[string]string{
		"DISCORD_TOKEN":         "env-token",
		"CLIENT_ID":             "456",
		"DATABASE_URL":          "postgres://localhost/apbeeper",
		"PORT":                  "8080",
		"HEALTH_CHECK_ENABLED":  "false",
		"STALE_SESSION_MAX_AGE": "90m",
		"LOG_LEVEL":             "",
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
	require.NoError(t, config.applyEnv(lookup))
	assert.Equal(t, "env-token", config.Discord.Token)
	assert.Equal(t, "456", config.Discord.ClientId)
	assert.Equal(t, "postgres://localhost/apbeeper", config.Database.Url)
	assert.Equal(t, 8080, config.Health.Port)
	assert.False(t, config.Health.Enabled)
	assert.Equal(t, 90*time.Minute, config.Tracking.StaleMaxAge.Duration)
	assert.Equal(t, "info", config.Log.Level)

	env["PORT"] = "http"
	assert.Error(t, config.applyEnv(lookup))
}

func TestValidate(t *testing.T) {
	config := Default()
	assert.Error(t, config.Validate())

	config.Discord.Token = "your_discord_bot_token_here"
	config.Discord.ClientId = "123"
	assert.Error(t, config.Validate())

	config.Discord.Token = "real"
	assert.NoError(t, config.Validate())

	config.Tracking.MatchPolicy = "fuzzy"
	assert.Error(t, config.Validate())
	config.Tracking.MatchPolicy = "strict"

	config.Tracking.PanelInterval = Duration{0}
	assert.Error(t, config.Validate())
	config.Tracking.PanelInterval = Duration{time.Minute}

	config.Log.Level = "loud"
	assert.Error(t, config.Validate())
}

func TestTwitchEnabled(t *testing.T) {
	config := Default()
	assert.False(t, config.TwitchEnabled())
	config.Twitch.ClientId = "id"
	config.Twitch.ClientSecret = "your_twitch_client_secret"
	assert.False(t, config.TwitchEnabled())
	config.Twitch.ClientSecret = "secret"
	assert.True(t, config.TwitchEnabled())
}
