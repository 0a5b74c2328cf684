package config

import "time"

// Config is the root configuration structure for vigil.
type Config struct {
	// Policy controls where policies are found and how they are watched.
	Policy PolicyConfig `yaml:"policy"`

	// Runner contains audit runner limits.
	Runner RunnerConfig `yaml:"runner"`

	// History contains audit history storage, recording and retention.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Schedule contains the audits run by "vigil schedule".
	Schedule ScheduleConfig `yaml:"schedule"`
}

// PolicyConfig contains configuration for policy resolution.
type PolicyConfig struct {
	// SearchPaths are directories searched, in order, for named policies.
	// Default: ["policies"]
	SearchPaths []string `yaml:"search_paths"`

	// Watch enables automatic reloading when policy files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is how long file events are coalesced before a reload.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Git configures an optional policy repository whose checkout is
	// appended to SearchPaths.
	Git GitPolicyConfig `yaml:"git"`

	// Validation contains policy lint settings.
	Validation PolicyValidationConfig `yaml:"validation"`
}

// GitPolicyConfig configures Git-based policy loading.
type GitPolicyConfig struct {
	// Enabled determines if the repository is used.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS, SSH or a local path).
	// Example: "https://github.com/company/data-policies.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository to policy files.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// Poll configures change detection for long-running commands.
	Poll GitPollConfig `yaml:"poll"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	// Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	// Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitPollConfig configures change detection.
type GitPollConfig struct {
	// Interval between pulls. Zero disables polling.
	// Default: 0
	Interval time.Duration `yaml:"interval"`

	// Timeout for Git operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local checkout before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`
}

// PolicyValidationConfig contains configuration for policy linting.
type PolicyValidationConfig struct {
	// Strict treats lint warnings as errors.
	// Default: false
	Strict bool `yaml:"strict"`
}

// RunnerConfig contains audit runner settings.
type RunnerConfig struct {
	// RuleTimeout bounds a single rule evaluation. Zero disables it.
	// Default: 1s
	RuleTimeout time.Duration `yaml:"rule_timeout"`

	// MaxRules is the largest policy the runner accepts.
	// Default: 1000
	MaxRules int `yaml:"max_rules"`

	// EnableTrace attaches an evaluation trace to every result.
	// Default: false
	EnableTrace bool `yaml:"enable_trace"`

	// CacheSize is the number of parsed conditions kept in the AST cache.
	// Default: 1024
	CacheSize int `yaml:"cache_size"`
}

// HistoryConfig contains audit history configuration.
type HistoryConfig struct {
	// Enabled controls whether audit runs are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is the storage backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains history recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write queue.
	// Default: 100
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single history write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains history retention configuration.
type RetentionConfig struct {
	// Days is the number of days to keep history. 0 keeps it forever.
	// Default: 90
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for automatic pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete exports records to JSON before deleting them.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the number of stored records. 0 is unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health endpoint configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console" (text without timestamps).
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress serves Path during "vigil schedule".
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "vigil"
	Namespace string `yaml:"namespace"`

	// RuleDurationBuckets are histogram buckets for rule evaluation (seconds).
	// Default: [0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1]
	RuleDurationBuckets []float64 `yaml:"rule_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of runs traced when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter is "otlp" or "stdout".
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "vigil"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health endpoint configuration for "vigil schedule".
type HealthConfig struct {
	// Enabled controls whether health endpoints are served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the liveness probe path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness probe path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ScheduleConfig lists the audits run on a schedule.
type ScheduleConfig struct {
	// Jobs are the scheduled audits.
	Jobs []ScheduleJob `yaml:"jobs"`
}

// ScheduleJob is one scheduled audit.
type ScheduleJob struct {
	// Name identifies the job in logs and metrics. Defaults to Policy.
	Name string `yaml:"name"`

	// Cron is a standard five-field cron expression or descriptor.
	Cron string `yaml:"cron"`

	// Policy is the policy name or path.
	Policy string `yaml:"policy"`

	// Stats is the statistics file audited by the job.
	Stats string `yaml:"stats"`

	// Environment and Dataset select overlays.
	Environment string `yaml:"environment"`
	Dataset     string `yaml:"dataset"`
}
