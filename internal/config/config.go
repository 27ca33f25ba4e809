package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultAppID names the per-user config and cache directories.
const DefaultAppID = "deskbridge"

// GraphConfig holds Microsoft Graph OAuth settings.
type GraphConfig struct {
	ClientID       string `toml:"client_id"`
	AuthorityURL   string `toml:"authority_url"`
	Tenant         string `toml:"tenant"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TokensConfig selects where Graph tokens are persisted.
type TokensConfig struct {
	Store string `toml:"store"` // "file" or "keyring"
}

// UpdaterConfig holds the update manifest endpoint.
type UpdaterConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// BridgeConfig holds transport settings for the command bridge.
type BridgeConfig struct {
	WebSocketAddr  string   `toml:"websocket_addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Config holds all deskbridge configuration.
type Config struct {
	AppID   string        `toml:"app_id"`
	Graph   GraphConfig   `toml:"graph"`
	Tokens  TokensConfig  `toml:"tokens"`
	Updater UpdaterConfig `toml:"updater"`
	Bridge  BridgeConfig  `toml:"bridge"`
}

const (
	defaultGraphTimeout   = 15 * time.Second
	defaultUpdaterTimeout = 30 * time.Second
	defaultTenant         = "organizations"
	defaultTokenStore     = "file"
)

// AppIDOrDefault returns AppID if set, otherwise DefaultAppID.
func (c Config) AppIDOrDefault() string {
	if c.AppID != "" {
		return c.AppID
	}
	return DefaultAppID
}

// GraphTimeout returns the configured HTTP timeout for identity-provider calls.
func (c Config) GraphTimeout() time.Duration {
	if c.Graph.TimeoutSeconds > 0 {
		return time.Duration(c.Graph.TimeoutSeconds) * time.Second
	}
	return defaultGraphTimeout
}

// UpdaterTimeout returns the HTTP timeout for update manifest requests.
func (c Config) UpdaterTimeout() time.Duration {
	if c.Updater.TimeoutSeconds > 0 {
		return time.Duration(c.Updater.TimeoutSeconds) * time.Second
	}
	return defaultUpdaterTimeout
}

// TenantOrDefault returns the Graph tenant, "organizations" when unset.
func (c Config) TenantOrDefault() string {
	if c.Graph.Tenant != "" {
		return c.Graph.Tenant
	}
	return defaultTenant
}

// TokenStoreOrDefault returns the token store kind, "file" when unset.
func (c Config) TokenStoreOrDefault() string {
	if c.Tokens.Store != "" {
		return c.Tokens.Store
	}
	return defaultTokenStore
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values:
//   - DESKBRIDGE_GRAPH_CLIENT_ID  overrides graph.client_id
//   - DESKBRIDGE_TOKEN_STORE      overrides tokens.store
//   - DESKBRIDGE_UPDATER_ENDPOINT overrides updater.endpoint
//   - DESKBRIDGE_WS_ADDR          overrides bridge.websocket_addr
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// AppConfigDir returns the per-user configuration directory for appID.
// It falls back to a directory under the system temp dir when the user
// config location cannot be determined.
func AppConfigDir(appID string) string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, appID)
}

// AppCacheDir returns the per-user cache directory for appID, with the same
// temp dir fallback as AppConfigDir.
func AppCacheDir(appID string) string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, appID)
}

// DefaultConfigPath returns the default path for the deskbridge config file.
func DefaultConfigPath() string {
	return filepath.Join(AppConfigDir(DefaultAppID), "config.toml")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DESKBRIDGE_GRAPH_CLIENT_ID"); v != "" {
		cfg.Graph.ClientID = v
	}
	if v := os.Getenv("DESKBRIDGE_TOKEN_STORE"); v != "" {
		cfg.Tokens.Store = v
	}
	if v := os.Getenv("DESKBRIDGE_UPDATER_ENDPOINT"); v != "" {
		cfg.Updater.Endpoint = v
	}
	if v := os.Getenv("DESKBRIDGE_WS_ADDR"); v != "" {
		cfg.Bridge.WebSocketAddr = v
	}
}
