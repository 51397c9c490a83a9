package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file and returns the resulting Config.
// Unknown keys are fatal — silently ignoring a typo in a config file leads
// to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.ServerURL != "" {
		cfg.ServerURL = env.ServerURL
	}

	if cli.ServerURL != "" {
		cfg.ServerURL = cli.ServerURL
	}

	return resolve(cfg)
}

// resolve validates a parsed Config and computes the effective values.
func resolve(cfg *Config) (*Resolved, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server_url is not set (config file, WATCHSYNC_SERVER_URL, or --server)")
	}

	base, err := url.Parse(cfg.ServerURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server_url %q is not a valid URL", cfg.ServerURL)
	}

	drain, err := parseInterval("sync.drain_interval", cfg.Sync.DrainInterval, defaultDrainInterval)
	if err != nil {
		return nil, err
	}

	probe, err := parseInterval("sync.probe_interval", cfg.Sync.ProbeInterval, defaultProbeInterval)
	if err != nil {
		return nil, err
	}

	timeout, err := parseInterval("network.timeout", cfg.Network.Timeout, defaultTimeout)
	if err != nil {
		return nil, err
	}

	switch cfg.Logging.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("logging.log_level %q is not one of debug, info, warn, error", cfg.Logging.LogLevel)
	}

	r := &Resolved{
		ServerURL:     strings.TrimRight(cfg.ServerURL, "/"),
		Account:       cfg.Account,
		ClientID:      cfg.Auth.ClientID,
		AuthURL:       cfg.Auth.AuthURL,
		TokenURL:      cfg.Auth.TokenURL,
		DeviceAuthURL: cfg.Auth.DeviceAuthURL,
		Scopes:        cfg.Auth.Scopes,
		DrainInterval: drain,
		ProbeInterval: probe,
		NotifyListen:  cfg.Sync.NotifyListen,
		Timeout:       timeout,
		LogLevel:      cfg.Logging.LogLevel,
		TokenPath:     TokenPath(),
		StatePath:     StatePath(),
	}

	if r.NotifyListen == "" {
		r.NotifyListen = defaultNotifyListen
	}

	// Auth endpoints default to conventional paths under the server root.
	if r.AuthURL == "" {
		r.AuthURL = r.ServerURL + "/oauth/authorize"
	}

	if r.TokenURL == "" {
		r.TokenURL = r.ServerURL + "/oauth/token"
	}

	if r.DeviceAuthURL == "" {
		r.DeviceAuthURL = r.ServerURL + "/oauth/device"
	}

	return r, nil
}

func parseInterval(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a duration (e.g. \"30s\", \"5m\")", name, value)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}

	return d, nil
}
