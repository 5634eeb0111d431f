package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Struct-level `validate` tags cover ranges and enumerations; cross-field
// rules that tags cannot express are checked explicitly afterwards.
//
// Validate does not mutate the configuration: normalization (log level
// casing, default filling) is ApplyDefaults' job.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}

	if cfg.Ingest.SpoolDir == "" {
		return fmt.Errorf("ingest spool_dir cannot be empty")
	}

	return nil
}
