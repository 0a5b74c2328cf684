package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ErrInvalidConfig is matched by every ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "history.sqlite.driver").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Unwrap returns ErrInvalidConfig.
func (e ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate validates the entire configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateRunner(&cfg.Runner)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSchedule(&cfg.Schedule)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	for i, p := range cfg.SearchPaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("policy.search_paths[%d]", i),
				Message: "search path cannot be empty",
			})
		}
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{Field: "policy.watch_debounce", Message: "must not be negative"})
	}

	if cfg.Git.Enabled {
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.repository",
				Message: "repository is required when git is enabled",
			})
		}
		if cfg.Git.Branch == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.branch",
				Message: "branch is required when git is enabled",
			})
		}
		switch cfg.Git.Auth.Type {
		case "none", "":
		case "token":
			if cfg.Git.Auth.Token == "" {
				errs = append(errs, FieldError{Field: "policy.git.auth.token", Message: "token is required for token auth"})
			}
		case "ssh":
			if cfg.Git.Auth.SSHKeyPath == "" {
				errs = append(errs, FieldError{Field: "policy.git.auth.ssh_key_path", Message: "ssh_key_path is required for ssh auth"})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "policy.git.auth.type",
				Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token', or 'ssh'", cfg.Git.Auth.Type),
			})
		}
		if cfg.Git.Poll.Interval < 0 {
			errs = append(errs, FieldError{Field: "policy.git.poll.interval", Message: "must not be negative"})
		}
		if cfg.Git.Clone.Depth < 0 {
			errs = append(errs, FieldError{Field: "policy.git.clone.depth", Message: "must not be negative"})
		}
	}

	return errs
}

func validateRunner(cfg *RunnerConfig) []FieldError {
	var errs []FieldError
	if cfg.RuleTimeout < 0 {
		errs = append(errs, FieldError{Field: "runner.rule_timeout", Message: "must not be negative"})
	}
	if cfg.MaxRules < 0 {
		errs = append(errs, FieldError{Field: "runner.max_rules", Message: "must not be negative"})
	}
	if cfg.CacheSize < 0 {
		errs = append(errs, FieldError{Field: "runner.cache_size", Message: "must not be negative"})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "history.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "history.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3' or 'sqlite'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "history.sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "history.sqlite.max_idle_conns", Message: "cannot exceed max_open_conns"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "history.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite' or 'memory'", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{Field: "history.recorder.async_buffer", Message: "must not be negative"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "history.retention.days", Message: "must not be negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "history.retention.max_records", Message: "must not be negative"})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "history.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with '/'"})
		}
		for i := 1; i < len(cfg.Metrics.RuleDurationBuckets); i++ {
			if cfg.Metrics.RuleDurationBuckets[i] <= cfg.Metrics.RuleDurationBuckets[i-1] {
				errs = append(errs, FieldError{Field: "telemetry.metrics.rule_duration_buckets", Message: "buckets must be strictly increasing"})
				break
			}
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		switch cfg.Tracing.Exporter {
		case "otlp":
			if cfg.Tracing.Endpoint == "" {
				errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required for the otlp exporter"})
			}
		case "stdout":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("invalid exporter %q: must be 'otlp' or 'stdout'", cfg.Tracing.Exporter),
			})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: "path must start with '/'"})
		}
		if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "path must start with '/'"})
		}
	}

	return errs
}

func validateSchedule(cfg *ScheduleConfig) []FieldError {
	var errs []FieldError
	names := make(map[string]bool, len(cfg.Jobs))

	for i, job := range cfg.Jobs {
		prefix := fmt.Sprintf("schedule.jobs[%d]", i)
		if job.Policy == "" {
			errs = append(errs, FieldError{Field: prefix + ".policy", Message: "policy is required"})
		}
		if job.Stats == "" {
			errs = append(errs, FieldError{Field: prefix + ".stats", Message: "stats file is required"})
		}
		if _, err := cron.ParseStandard(job.Cron); err != nil {
			errs = append(errs, FieldError{Field: prefix + ".cron", Message: fmt.Sprintf("invalid cron expression %q: %v", job.Cron, err)})
		}
		if job.Name != "" {
			if names[job.Name] {
				errs = append(errs, FieldError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate job name %q", job.Name)})
			}
			names[job.Name] = true
		}
	}

	return errs
}
