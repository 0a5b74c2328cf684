package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicySearchPath    = "policies"
	DefaultPolicyWatchDebounce = 100 * time.Millisecond
	DefaultGitBranch           = "main"
	DefaultGitAuthType         = "none"
	DefaultGitPollTimeout      = 30 * time.Second
	DefaultGitCloneDepth       = 1

	// Runner defaults
	DefaultRunnerRuleTimeout = time.Second
	DefaultRunnerMaxRules    = 1000
	DefaultRunnerCacheSize   = 1024

	// History defaults
	DefaultHistoryEnabled         = true
	DefaultHistoryBackend         = "sqlite"
	DefaultSQLitePath             = "data/history.db"
	DefaultSQLiteDriver           = "sqlite3"
	DefaultSQLiteMaxOpenConns     = 10
	DefaultSQLiteMaxIdleConns     = 5
	DefaultSQLiteWALMode          = true
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultRecorderAsyncBuffer    = 100
	DefaultRecorderWriteTimeout   = 5 * time.Second
	DefaultRetentionDays          = 90
	DefaultRetentionPruneSchedule = "0 3 * * *"
	DefaultRetentionArchivePath   = "data/archives/"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "vigil"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.1
	DefaultTracingExporter      = "otlp"
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "vigil"
	DefaultTracingInsecure      = true
	DefaultTracingTimeout       = 10 * time.Second
	DefaultHealthEnabled        = true
	DefaultHealthLivenessPath   = "/health"
	DefaultHealthReadinessPath  = "/ready"
	DefaultHealthCheckTimeout   = 5 * time.Second
)

// DefaultRuleDurationBuckets are the default rule evaluation histogram buckets.
var DefaultRuleDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

// DefaultConfig returns a configuration with every default set. Boolean
// defaults that are true can only be expressed here, so LoadConfig decodes
// the file on top of DefaultConfig.
func DefaultConfig() *Config {
	cfg := &Config{
		History: HistoryConfig{
			Enabled: DefaultHistoryEnabled,
			SQLite:  SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Insecure: DefaultTracingInsecure},
			Health:  HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	cfg.History.Retention.Days = DefaultRetentionDays
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for fields that have zero values.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	// Policy defaults
	if len(cfg.Policy.SearchPaths) == 0 {
		cfg.Policy.SearchPaths = []string{DefaultPolicySearchPath}
	}
	if cfg.Policy.WatchDebounce == 0 {
		cfg.Policy.WatchDebounce = DefaultPolicyWatchDebounce
	}
	if cfg.Policy.Git.Branch == "" {
		cfg.Policy.Git.Branch = DefaultGitBranch
	}
	if cfg.Policy.Git.Auth.Type == "" {
		cfg.Policy.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Policy.Git.Poll.Timeout == 0 {
		cfg.Policy.Git.Poll.Timeout = DefaultGitPollTimeout
	}
	if cfg.Policy.Git.Clone.Depth == 0 {
		cfg.Policy.Git.Clone.Depth = DefaultGitCloneDepth
	}

	// Runner defaults
	if cfg.Runner.RuleTimeout == 0 {
		cfg.Runner.RuleTimeout = DefaultRunnerRuleTimeout
	}
	if cfg.Runner.MaxRules == 0 {
		cfg.Runner.MaxRules = DefaultRunnerMaxRules
	}
	if cfg.Runner.CacheSize == 0 {
		cfg.Runner.CacheSize = DefaultRunnerCacheSize
	}

	// History defaults
	if cfg.History.Backend == "" {
		cfg.History.Backend = DefaultHistoryBackend
	}
	if cfg.History.SQLite.Path == "" {
		cfg.History.SQLite.Path = DefaultSQLitePath
	}
	if cfg.History.SQLite.Driver == "" {
		cfg.History.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.History.SQLite.MaxOpenConns == 0 {
		cfg.History.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.History.SQLite.MaxIdleConns == 0 {
		cfg.History.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.History.SQLite.BusyTimeout == 0 {
		cfg.History.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.History.Recorder.AsyncBuffer == 0 {
		cfg.History.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if cfg.History.Recorder.WriteTimeout == 0 {
		cfg.History.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if cfg.History.Retention.PruneSchedule == "" {
		cfg.History.Retention.PruneSchedule = DefaultRetentionPruneSchedule
	}
	if cfg.History.Retention.ArchivePath == "" {
		cfg.History.Retention.ArchivePath = DefaultRetentionArchivePath
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RuleDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RuleDurationBuckets = append([]float64(nil), DefaultRuleDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 && cfg.Telemetry.Tracing.Sampler == "ratio" {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Schedule defaults
	for i := range cfg.Schedule.Jobs {
		if cfg.Schedule.Jobs[i].Name == "" {
			cfg.Schedule.Jobs[i].Name = cfg.Schedule.Jobs[i].Policy
		}
	}
}
