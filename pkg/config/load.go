package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. Unknown keys are rejected. An empty path returns the
// default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies VIGIL_SECTION_FIELD environment overrides.
//
// The loading sequence is:
// 1. Load YAML from file on top of the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, val string) error
}

func stringVar(set func(*Config, string)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		set(cfg, val)
		return nil
	}
}

func boolVar(set func(*Config, bool)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		set(cfg, b)
		return nil
	}
}

func intVar(set func(*Config, int)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		set(cfg, i)
		return nil
	}
}

func durationVar(set func(*Config, time.Duration)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		set(cfg, d)
		return nil
	}
}

func floatVar(set func(*Config, float64)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		set(cfg, f)
		return nil
	}
}

var envOverrides = []envOverride{
	// Policy overrides
	{"VIGIL_POLICY_SEARCH_PATHS", stringVar(func(c *Config, v string) { c.Policy.SearchPaths = splitList(v) })},
	{"VIGIL_POLICY_WATCH", boolVar(func(c *Config, v bool) { c.Policy.Watch = v })},
	{"VIGIL_POLICY_GIT_ENABLED", boolVar(func(c *Config, v bool) { c.Policy.Git.Enabled = v })},
	{"VIGIL_POLICY_GIT_REPOSITORY", stringVar(func(c *Config, v string) { c.Policy.Git.Repository = v })},
	{"VIGIL_POLICY_GIT_BRANCH", stringVar(func(c *Config, v string) { c.Policy.Git.Branch = v })},
	{"VIGIL_POLICY_GIT_PATH", stringVar(func(c *Config, v string) { c.Policy.Git.Path = v })},
	{"VIGIL_POLICY_GIT_TOKEN", stringVar(func(c *Config, v string) { c.Policy.Git.Auth.Token = v })},
	{"VIGIL_POLICY_GIT_SSH_KEY_PASSPHRASE", stringVar(func(c *Config, v string) { c.Policy.Git.Auth.SSHKeyPassphrase = v })},
	{"VIGIL_POLICY_VALIDATION_STRICT", boolVar(func(c *Config, v bool) { c.Policy.Validation.Strict = v })},

	// Runner overrides
	{"VIGIL_RUNNER_RULE_TIMEOUT", durationVar(func(c *Config, v time.Duration) { c.Runner.RuleTimeout = v })},
	{"VIGIL_RUNNER_MAX_RULES", intVar(func(c *Config, v int) { c.Runner.MaxRules = v })},
	{"VIGIL_RUNNER_ENABLE_TRACE", boolVar(func(c *Config, v bool) { c.Runner.EnableTrace = v })},

	// History overrides
	{"VIGIL_HISTORY_ENABLED", boolVar(func(c *Config, v bool) { c.History.Enabled = v })},
	{"VIGIL_HISTORY_BACKEND", stringVar(func(c *Config, v string) { c.History.Backend = v })},
	{"VIGIL_HISTORY_SQLITE_PATH", stringVar(func(c *Config, v string) { c.History.SQLite.Path = v })},
	{"VIGIL_HISTORY_SQLITE_DRIVER", stringVar(func(c *Config, v string) { c.History.SQLite.Driver = v })},
	{"VIGIL_HISTORY_RETENTION_DAYS", intVar(func(c *Config, v int) { c.History.Retention.Days = v })},

	// Telemetry overrides
	{"VIGIL_TELEMETRY_LOGGING_LEVEL", stringVar(func(c *Config, v string) { c.Telemetry.Logging.Level = v })},
	{"VIGIL_TELEMETRY_LOGGING_FORMAT", stringVar(func(c *Config, v string) { c.Telemetry.Logging.Format = v })},
	{"VIGIL_TELEMETRY_METRICS_ENABLED", boolVar(func(c *Config, v bool) { c.Telemetry.Metrics.Enabled = v })},
	{"VIGIL_TELEMETRY_METRICS_LISTEN_ADDRESS", stringVar(func(c *Config, v string) { c.Telemetry.Metrics.ListenAddress = v })},
	{"VIGIL_TELEMETRY_TRACING_ENABLED", boolVar(func(c *Config, v bool) { c.Telemetry.Tracing.Enabled = v })},
	{"VIGIL_TELEMETRY_TRACING_ENDPOINT", stringVar(func(c *Config, v string) { c.Telemetry.Tracing.Endpoint = v })},
	{"VIGIL_TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(func(c *Config, v float64) { c.Telemetry.Tracing.SampleRatio = v })},
}

// applyEnvOverrides applies VIGIL_SECTION_FIELD overrides. A value that
// cannot be parsed is an error rather than being ignored.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	var errs []FieldError
	for _, o := range envOverrides {
		val, ok := lookup(o.name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(cfg, val); err != nil {
			errs = append(errs, FieldError{Field: o.name, Message: fmt.Sprintf("invalid value %q: %v", val, err)})
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
