package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 20, cfg.RateLimit.PerMinute)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, StateDriverMemory, cfg.State.Driver)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[telegram]
bot_token = "123:abc"
api_url = "http://127.0.0.1:8081"
local_files = true

[rate_limit]
per_minute = 60

[state]
driver = "sqlite"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "http://127.0.0.1:8081", cfg.Telegram.APIURL)
	assert.True(t, cfg.Telegram.LocalFiles)
	assert.Equal(t, DefaultPollTimeout, cfg.Telegram.PollTimeout)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.Equal(t, DefaultRateBurst, cfg.RateLimit.Burst)
	assert.Equal(t, StateDriverSQLite, cfg.State.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.State.SQLitePath)
}

func TestLoadInvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[telegram\nbot_token ="), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
