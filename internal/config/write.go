package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the default config file content written on first login.
// Settings are present as commented-out defaults so users can discover every
// option without reading docs. Written once, never regenerated.
const configTemplate = `# watchsync configuration

server_url = %q
account = %q

# [sync]
# drain_interval = "5m"
# probe_interval = "30s"
# notify_listen = "127.0.0.1:8477"

# [network]
# timeout = "30s"

# [logging]
# log_level = "info"
`

// EnsureDefaultConfig writes the starter config file on first login if no
// config file exists yet. An existing file is never touched.
func EnsureDefaultConfig(path, serverURL, account string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := fmt.Sprintf(configTemplate, serverURL, account)
	if err := os.WriteFile(path, []byte(content), configFilePermissions); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}

	return nil
}
