package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/deskbridge/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DESKBRIDGE_GRAPH_CLIENT_ID",
		"DESKBRIDGE_TOKEN_STORE",
		"DESKBRIDGE_UPDATER_ENDPOINT",
		"DESKBRIDGE_WS_ADDR",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
app_id = "calendar-shell"

[graph]
client_id = "11111111-2222-3333-4444-555555555555"
timeout_seconds = 30

[tokens]
store = "keyring"

[updater]
endpoint = "https://updates.example.com/{{target}}/{{current_version}}"
timeout_seconds = 5

[bridge]
websocket_addr = "127.0.0.1:17650"
allowed_origins = ["tauri://localhost"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := config.LoadFrom(configPath)
	require.NoError(t, err)

	assert.Equal(t, "calendar-shell", cfg.AppIDOrDefault())
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", cfg.Graph.ClientID)
	assert.Equal(t, 30*time.Second, cfg.GraphTimeout())
	assert.Equal(t, "keyring", cfg.TokenStoreOrDefault())
	assert.Equal(t, "https://updates.example.com/{{target}}/{{current_version}}", cfg.Updater.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.UpdaterTimeout())
	assert.Equal(t, "127.0.0.1:17650", cfg.Bridge.WebSocketAddr)
	assert.Equal(t, []string{"tauri://localhost"}, cfg.Bridge.AllowedOrigins)
}

func TestLoad_EnvVarsTakePrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[graph]
client_id = "from-file"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	t.Setenv("DESKBRIDGE_GRAPH_CLIENT_ID", "from-env")
	t.Setenv("DESKBRIDGE_TOKEN_STORE", "keyring")
	t.Setenv("DESKBRIDGE_WS_ADDR", "127.0.0.1:9999")

	cfg, err := config.LoadFrom(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Graph.ClientID)
	assert.Equal(t, "keyring", cfg.Tokens.Store)
	assert.Equal(t, "127.0.0.1:9999", cfg.Bridge.WebSocketAddr)
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	clearEnv(t)
	t.Setenv("DESKBRIDGE_UPDATER_ENDPOINT", "https://updates.example.com/latest.json")

	cfg, err := config.LoadFrom("/nonexistent/path/config.toml")
	require.NoError(t, err, "missing file should not be an error")
	assert.Equal(t, "https://updates.example.com/latest.json", cfg.Updater.Endpoint)
}

func TestLoad_InvalidTOMLIsError(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[graph\nclient_id ="), 0600))

	_, err := config.LoadFrom(configPath)
	assert.Error(t, err)
}

func TestConfig_Defaults(t *testing.T) {
	var cfg config.Config
	assert.Equal(t, config.DefaultAppID, cfg.AppIDOrDefault())
	assert.Equal(t, 15*time.Second, cfg.GraphTimeout())
	assert.Equal(t, 30*time.Second, cfg.UpdaterTimeout())
	assert.Equal(t, "organizations", cfg.TenantOrDefault())
	assert.Equal(t, "file", cfg.TokenStoreOrDefault())
}

func TestAppConfigDir_EndsWithAppID(t *testing.T) {
	assert.Equal(t, "shell", filepath.Base(config.AppConfigDir("shell")))
	assert.Equal(t, "shell", filepath.Base(config.AppCacheDir("shell")))
}
