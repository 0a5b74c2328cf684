// Package config provides configuration management for vigil.
//
// Configuration is a YAML file with policy, runner, history, telemetry and
// schedule sections. Every field has a default, so an empty file (or no
// file at all) is a valid configuration.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("vigil.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("vigil.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention VIGIL_SECTION_FIELD:
//
//   - VIGIL_POLICY_SEARCH_PATHS overrides policy.search_paths (comma separated)
//   - VIGIL_HISTORY_SQLITE_DRIVER overrides history.sqlite.driver
//   - VIGIL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
//  1. Default values
//  2. YAML configuration file
//  3. Environment variables
//
// There is no process-wide configuration. Commands load a *Config once and
// pass the relevant sections to each component.
package config
