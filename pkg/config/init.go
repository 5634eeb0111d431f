package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileHeader is prepended to generated configuration files.
const configFileHeader = `# ConnWatch Configuration File
#
# This file was generated by 'connwatch init'. Every value shown is the
# default; uncommenting is not required, and any key can be overridden with
# an environment variable: CONNWATCH_<SECTION>_<KEY>
# (e.g. CONNWATCH_LOGGING_LEVEL=DEBUG, CONNWATCH_SYSLOG_PORT=5515).
#
# Retention policy, local networks, classification rules, and HA grouping
# are runtime settings managed through the API, not this file.

`

// InitConfig creates a default configuration file at the default location.
// Returns the path of the created file.
//
// Fails if the file already exists, unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a default configuration file at the given path.
//
// Fails if the file already exists, unless force is true.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := GetDefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	content := append([]byte(configFileHeader), data...)
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
