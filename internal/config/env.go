package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "WATCHSYNC_CONFIG"
	EnvServerURL = "WATCHSYNC_SERVER_URL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // WATCHSYNC_CONFIG: override config file path
	ServerURL  string // WATCHSYNC_SERVER_URL: override backend root
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerURL:  os.Getenv(EnvServerURL),
	}
}
