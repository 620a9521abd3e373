package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Settings.CacheTTL.Std())
	assert.Equal(t, 3*time.Second, cfg.Settings.FetchTimeout.Std())
	assert.True(t, cfg.Settings.CacheEnabled)
	assert.False(t, cfg.Commissions.NegativeOnRefund)
	assert.Equal(t, 7*24*time.Hour, cfg.Commissions.ApprovalDelay.Std())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"server": {"port": 9090},
		"settings": {"cache_ttl": "2m"},
		"commissions": {"negative_on_refund": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("SETTINGS_FETCH_TIMEOUT", "500ms")
	t.Setenv("COMMISSIONS_APPROVAL_DELAY", "not-a-duration")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Settings.CacheTTL.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Settings.FetchTimeout.Std())
	assert.True(t, cfg.Commissions.NegativeOnRefund)
	// invalid env values keep the previous value
	assert.Equal(t, 7*24*time.Hour, cfg.Commissions.ApprovalDelay.Std())
}

func TestLoadConfigInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Settings.CacheTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.DBName = ""
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "pm", Password: "secret", Host: "db", Port: 5432, DBName: "paymang", SSLMode: "disable"}
	assert.Equal(t, "postgres://pm:secret@db:5432/paymang?sslmode=disable", db.GetDatabaseURL())
}
