package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/vigil/pkg/cli"
	"mercator-hq/vigil/pkg/config"
	"mercator-hq/vigil/pkg/history"
	"mercator-hq/vigil/pkg/history/recorder"
	"mercator-hq/vigil/pkg/history/retention"
	"mercator-hq/vigil/pkg/history/storage"
	"mercator-hq/vigil/pkg/policy/engine"
	"mercator-hq/vigil/pkg/policy/git"
	"mercator-hq/vigil/pkg/policy/manager"
	"mercator-hq/vigil/pkg/policy/model"
	"mercator-hq/vigil/pkg/profile"
	"mercator-hq/vigil/pkg/rules/eval"
	"mercator-hq/vigil/pkg/rules/parser"
	"mercator-hq/vigil/pkg/telemetry/logging"
	"mercator-hq/vigil/pkg/telemetry/metrics"
	"mercator-hq/vigil/pkg/telemetry/tracing"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	policies *manager.Manager
	repo     *git.Repository    // nil unless policy.git.enabled
	metrics  *metrics.Collector // nil when metrics are disabled
	tracer   *tracing.Tracer
}

// systemErrorCode is the exit code for audits that could not run.
var systemErrorCode = model.DefaultExitCodes()[model.ExitKeySystemError]

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Telemetry.Logging.Format = logFormat
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	parser.DefaultCache.SetLimit(cfg.Runner.CacheSize)

	loaderCfg := manager.DefaultLoaderConfig()
	loaderCfg.SearchPaths = cfg.Policy.SearchPaths
	loaderCfg.WatchDebounce = cfg.Policy.WatchDebounce

	a := &app{
		cfg:      cfg,
		logger:   logger,
		policies: manager.NewManager(loaderCfg, logger),
	}

	if cfg.Policy.Git.Enabled {
		repo, err := git.NewRepository(&cfg.Policy.Git, logger)
		if err != nil {
			return nil, cli.NewConfigError("policy.git", err.Error())
		}
		if err := repo.Sync(ctx); err != nil {
			return nil, fmt.Errorf("failed to sync policy repository: %w", err)
		}
		a.repo = repo
		a.policies.AddSearchPath(repo.PolicyPath())
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		if err := a.metrics.RegisterParseCache(parser.DefaultCache); err != nil {
			return nil, fmt.Errorf("failed to register cache metrics: %w", err)
		}
	}

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	logger.Debug("vigil initialized",
		"search_paths", a.policies.SearchPaths(),
		"git", cfg.Policy.Git.Enabled,
		"metrics", cfg.Telemetry.Metrics.Enabled,
		"tracing", a.tracer.Enabled(),
	)
	return a, nil
}

// close flushes pending spans.
func (a *app) close() {
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		a.logger.Warn("failed to shut down tracer", "error", err)
	}
}

func (a *app) newRunner() (*engine.Runner, error) {
	rc := engine.DefaultRunnerConfig().
		WithRuleTimeout(a.cfg.Runner.RuleTimeout).
		WithTrace(a.cfg.Runner.EnableTrace).
		WithMaxRules(a.cfg.Runner.MaxRules)

	opts := []engine.Option{engine.WithTracer(a.tracer)}
	if a.metrics != nil {
		opts = append(opts, engine.WithMetrics(a.metrics))
	}
	return engine.NewRunner(rc, eval.New(nil, nil), a.logger, opts...)
}

func (a *app) openStorage() (history.Storage, error) {
	switch a.cfg.History.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		sc := a.cfg.History.SQLite
		return storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         sc.Path,
			Driver:       sc.Driver,
			MaxOpenConns: sc.MaxOpenConns,
			MaxIdleConns: sc.MaxIdleConns,
			WALMode:      sc.WALMode,
			BusyTimeout:  sc.BusyTimeout,
		}, a.logger)
	}
	return nil, cli.NewConfigError("history.backend", fmt.Sprintf("unsupported backend %q", a.cfg.History.Backend))
}

func (a *app) newRecorder(store history.Storage) *recorder.Recorder {
	return recorder.New(store, &recorder.Config{
		Enabled:      a.cfg.History.Enabled,
		AsyncBuffer:  a.cfg.History.Recorder.AsyncBuffer,
		WriteTimeout: a.cfg.History.Recorder.WriteTimeout,
	}, a.logger)
}

func (a *app) newPruner(store history.Storage, retentionDays int) *retention.Pruner {
	rc := a.cfg.History.Retention
	return retention.NewPruner(store, &retention.Config{
		RetentionDays:       retentionDays,
		PruneSchedule:       rc.PruneSchedule,
		ArchiveBeforeDelete: rc.ArchiveBeforeDelete,
		ArchivePath:         rc.ArchivePath,
		MaxRecords:          rc.MaxRecords,
	}, a.logger)
}

// policyVersion is the checked out commit for git policies and the
// content hash of the loaded policy files otherwise.
func (a *app) policyVersion() string {
	if a.repo != nil {
		if commit, err := a.repo.HeadCommit(); err == nil {
			return commit.SHA
		}
	}
	return a.policies.Registry().Version()
}

// auditRequest describes one audit run.
type auditRequest struct {
	Job         string
	Policy      string
	Stats       string
	Environment string
	Dataset     string
	DryRun      bool
}

// dryRunResolver forces report-only enforcement on resolved policies.
type dryRunResolver struct {
	engine.PolicyResolver
}

func (r dryRunResolver) GetPolicy(ctx context.Context, nameOrPath, environment, dataset string) (*model.AuditPolicy, error) {
	p, err := r.PolicyResolver.GetPolicy(ctx, nameOrPath, environment, dataset)
	if err != nil {
		return nil, err
	}
	return p.AsDryRun(), nil
}

// audit loads the statistics, resolves the policy and runs it. The
// result is given a run ID but not recorded.
func (a *app) audit(ctx context.Context, runner *engine.Runner, req auditRequest) (*engine.Result, error) {
	ctx = tracing.ExtractEnv(ctx, os.Getenv)
	ctx = logging.WithPolicy(ctx, req.Policy)
	if req.Job != "" {
		ctx = logging.WithJob(ctx, req.Job)
	}

	// Without an explicit dataset the statistics name one, defaulting
	// to the file's base name, so dataset overlays still apply.
	var stats eval.ProfilingContext
	if req.Stats != "" {
		cache, err := profile.LoadFile(req.Stats)
		if err != nil {
			return nil, fmt.Errorf("failed to load statistics: %w", err)
		}
		stats = cache
		if req.Dataset == "" {
			req.Dataset = cache.Dataset()
		}
	}

	ctx, span := a.tracer.Start(ctx, "vigil.audit", trace.WithAttributes(
		tracing.RunAttributes(req.Policy, req.Environment, req.Dataset, req.Job, req.DryRun)...,
	))
	defer span.End()

	var resolver engine.PolicyResolver = a.policies
	if req.DryRun {
		resolver = dryRunResolver{resolver}
	}

	res, err := engine.Audit(ctx, resolver, runner, engine.AuditRequest{
		Policy:      req.Policy,
		Environment: req.Environment,
		Dataset:     req.Dataset,
		Stats:       stats,
	})
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}

	res.RunID = uuid.New().String()
	span.SetAttributes(tracing.ResultAttributes(res.RunID, res.Success, res.ExitCode, len(res.Violations), res.TerminatedEarly)...)

	a.logger.InfoContext(logging.WithRunID(ctx, res.RunID), "audit completed",
		"success", res.Success,
		"exit_code", res.ExitCode,
		"violations", len(res.Violations),
		"dry_run", res.DryRun,
	)
	return res, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func commandOutput(cmd *cobra.Command) io.Writer {
	if cmd != nil {
		return cmd.OutOrStdout()
	}
	return os.Stdout
}
