package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if got := cfg.Policy.SearchPaths; len(got) != 1 || got[0] != DefaultPolicySearchPath {
		t.Errorf("SearchPaths = %v", got)
	}
	if !cfg.History.Enabled || !cfg.History.SQLite.WALMode || cfg.History.SQLite.Driver != "sqlite3" {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.History.Retention.Days != DefaultRetentionDays {
		t.Errorf("Retention.Days = %d", cfg.History.Retention.Days)
	}
	if cfg.Runner.RuleTimeout != time.Second || cfg.Runner.MaxRules != 1000 {
		t.Errorf("Runner = %+v", cfg.Runner)
	}
	if !cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Tracing.Enabled {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg
	ApplyDefaults(cfg)
	if cfg.Runner != before.Runner || cfg.History.SQLite != before.History.SQLite {
		t.Errorf("ApplyDefaults changed an already defaulted config")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
policy:
  search_paths: [audit/policies, shared]
  watch: true
runner:
  rule_timeout: 250ms
history:
  enabled: false
  sqlite:
    driver: sqlite
    wal_mode: false
  retention:
    days: 0
telemetry:
  logging:
    level: debug
    format: json
schedule:
  jobs:
    - cron: "*/5 * * * *"
      policy: orders
      stats: stats/orders.yaml
      environment: prod
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if got := strings.Join(cfg.Policy.SearchPaths, ","); got != "audit/policies,shared" || !cfg.Policy.Watch {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.Runner.RuleTimeout != 250*time.Millisecond || cfg.Runner.MaxRules != DefaultRunnerMaxRules {
		t.Errorf("Runner = %+v", cfg.Runner)
	}
	if cfg.History.Enabled || cfg.History.SQLite.WALMode || cfg.History.SQLite.Driver != "sqlite" {
		t.Errorf("explicit false/driver not kept: %+v", cfg.History)
	}
	if cfg.History.Retention.Days != 0 {
		t.Errorf("Retention.Days = %d, want explicit 0 kept", cfg.History.Retention.Days)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
	}
	if len(cfg.Schedule.Jobs) != 1 || cfg.Schedule.Jobs[0].Name != "orders" {
		t.Errorf("Jobs = %+v", cfg.Schedule.Jobs)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		invalid bool
	}{
		{"unknown key", "runner:\n  bogus: 1\n", "field bogus not found", false},
		{"bad yaml", "runner: [", "failed to parse", false},
		{"bad driver", "history:\n  sqlite:\n    driver: postgres\n", "history.sqlite.driver", true},
		{"bad backend", "history:\n  backend: s3\n", "history.backend", true},
		{"bad level", "telemetry:\n  logging:\n    level: loud\n", "telemetry.logging.level", true},
		{"bad prune schedule", "history:\n  retention:\n    prune_schedule: every day\n", "prune_schedule", true},
		{"negative timeout", "runner:\n  rule_timeout: -1s\n", "runner.rule_timeout", true},
		{"git without repository", "policy:\n  git:\n    enabled: true\n", "policy.git.repository", true},
		{"token auth without token", "policy:\n  git:\n    enabled: true\n    repository: x\n    auth:\n      type: token\n", "policy.git.auth.token", true},
		{"job without stats", "schedule:\n  jobs:\n    - cron: '@hourly'\n      policy: p\n", "schedule.jobs[0].stats", true},
		{"job bad cron", "schedule:\n  jobs:\n    - cron: nope\n      policy: p\n      stats: s\n", "schedule.jobs[0].cron", true},
		{"duplicate jobs", "schedule:\n  jobs:\n    - {cron: '@hourly', policy: p, stats: s}\n    - {cron: '@daily', policy: p, stats: s}\n", "duplicate job name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
			if errors.Is(err, ErrInvalidConfig) != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = %v, want %v", !tt.invalid, tt.invalid)
			}
		})
	}
}

func TestLoadConfig_MissingFileAndEmptyPath(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig(missing) succeeded")
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") failed: %v", err)
	}
	if cfg.History.Backend != DefaultHistoryBackend {
		t.Errorf("Backend = %q", cfg.History.Backend)
	}

	empty := writeConfig(t, "")
	if _, err := LoadConfig(empty); err != nil {
		t.Errorf("LoadConfig(empty file) failed: %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  logging:\n    level: warn\n")

	t.Setenv("VIGIL_TELEMETRY_LOGGING_LEVEL", "debug")
	t.Setenv("VIGIL_POLICY_SEARCH_PATHS", " a, b ,,c")
	t.Setenv("VIGIL_HISTORY_SQLITE_DRIVER", "sqlite")
	t.Setenv("VIGIL_RUNNER_RULE_TIMEOUT", "2s")
	t.Setenv("VIGIL_HISTORY_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Level = %q, want env value", cfg.Telemetry.Logging.Level)
	}
	if got := strings.Join(cfg.Policy.SearchPaths, "|"); got != "a|b|c" {
		t.Errorf("SearchPaths = %q", got)
	}
	if cfg.History.SQLite.Driver != "sqlite" || cfg.History.Enabled || cfg.Runner.RuleTimeout != 2*time.Second {
		t.Errorf("overrides not applied: %+v %+v", cfg.History, cfg.Runner)
	}
}

func TestLoadConfigWithEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("VIGIL_RUNNER_MAX_RULES", "many")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "VIGIL_RUNNER_MAX_RULES" {
		t.Errorf("Errors = %+v", verr.Errors)
	}
}

func TestValidationError_Format(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if one.Error() != "configuration validation failed: a: bad" {
		t.Errorf("single = %q", one.Error())
	}
	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(two.Error(), "2 errors") || !strings.Contains(two.Error(), "  - b: worse") {
		t.Errorf("multiple = %q", two.Error())
	}
}
