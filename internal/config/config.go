// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for watchsync. It supports a
// three-layer override chain: defaults -> config file -> environment ->
// CLI flags.
package config

import "time"

// Config is the top-level structure parsed from the TOML file.
type Config struct {
	// ServerURL is the watchlist backend root, e.g. "https://watch.example.com".
	ServerURL string `toml:"server_url"`
	// Account is the login the token belongs to. Informational.
	Account string `toml:"account"`

	Auth    AuthConfig    `toml:"auth"`
	Sync    SyncConfig    `toml:"sync"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
}

// AuthConfig points the device-code login flow at the service's OAuth
// endpoints. Defaults derive from server_url.
type AuthConfig struct {
	ClientID      string   `toml:"client_id"`
	AuthURL       string   `toml:"auth_url"`
	TokenURL      string   `toml:"token_url"`
	DeviceAuthURL string   `toml:"device_auth_url"`
	Scopes        []string `toml:"scopes"`
}

// SyncConfig controls the offline pipeline: how often the daemon drains the
// pending queue, how often connectivity is probed, and where the
// notification hub listens.
type SyncConfig struct {
	DrainInterval string `toml:"drain_interval"`
	ProbeInterval string `toml:"probe_interval"`
	NotifyListen  string `toml:"notify_listen"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout string `toml:"timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	ServerURL  string // --server flag
}

// Default values.
const (
	defaultDrainInterval = 5 * time.Minute
	defaultProbeInterval = 30 * time.Second
	defaultNotifyListen  = "127.0.0.1:8477"
	defaultTimeout       = 30 * time.Second
	defaultLogLevel      = "info"
	defaultClientID      = "watchsync-cli"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			DrainInterval: defaultDrainInterval.String(),
			ProbeInterval: defaultProbeInterval.String(),
			NotifyListen:  defaultNotifyListen,
		},
		Network: NetworkConfig{
			Timeout: defaultTimeout.String(),
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		Auth: AuthConfig{
			ClientID: defaultClientID,
		},
	}
}

// Resolved is the effective configuration after parsing, validation, and
// overrides: durations parsed, paths computed, auth endpoints defaulted.
type Resolved struct {
	ServerURL string
	Account   string

	ClientID      string
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
	Scopes        []string

	DrainInterval time.Duration
	ProbeInterval time.Duration
	NotifyListen  string
	Timeout       time.Duration
	LogLevel      string

	TokenPath string
	StatePath string
}
