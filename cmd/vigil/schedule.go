package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mercator-hq/vigil/pkg/config"
	"mercator-hq/vigil/pkg/history"
	"mercator-hq/vigil/pkg/history/recorder"
	"mercator-hq/vigil/pkg/policy/engine"
	"mercator-hq/vigil/pkg/policy/git"
	"mercator-hq/vigil/pkg/telemetry/health"
	"mercator-hq/vigil/pkg/telemetry/logging"
)

// Job run statuses reported to metrics, in addition to the engine's run
// outcomes.
const jobStatusError = "error"

var scheduleFlags struct {
	once bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the configured audits on their cron schedules",
	Long: `Run every job in schedule.jobs on its cron expression until interrupted.

While running, the command:
  - records each run in the audit history
  - serves Prometheus metrics and health probes on telemetry.metrics.listen_address
  - pulls the git policy repository every policy.git.poll.interval and
    reloads policies, rolling back commits whose policies fail validation
  - reloads policies when files change if policy.watch is set
  - prunes the history on history.retention.prune_schedule

Examples:
  # Run until SIGINT or SIGTERM
  vigil schedule --config vigil.yaml

  # Run every job once and exit
  vigil schedule --config vigil.yaml --once`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleFlags.once, "once", false, "run every job once, then exit")
}

// scheduler runs audit jobs and tracks their outcome.
type scheduler struct {
	app    *app
	runner *engine.Runner
	rec    *recorder.Recorder

	mu      sync.Mutex
	lastRun time.Time
}

func jobName(job config.ScheduleJob) string {
	if job.Name != "" {
		return job.Name
	}
	return job.Policy
}

// runJob runs one job and queues its result for recording.
func (s *scheduler) runJob(ctx context.Context, job config.ScheduleJob) error {
	name := jobName(job)
	logger := s.app.logger

	res, err := s.app.audit(ctx, s.runner, auditRequest{
		Job:         name,
		Policy:      job.Policy,
		Stats:       job.Stats,
		Environment: job.Environment,
		Dataset:     job.Dataset,
	})
	now := time.Now()

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	jobCtx := logging.WithJob(ctx, name)
	if err != nil {
		s.recordJob(name, jobStatusError, now)
		logger.ErrorContext(jobCtx, "scheduled audit failed", "error", err)
		return fmt.Errorf("job %s: %w", name, err)
	}

	status := engine.RunSuccess
	switch {
	case res.DryRun:
		status = engine.RunDryRun
	case !res.Success:
		status = engine.RunFailure
	}
	s.recordJob(name, status, now)

	if err := s.rec.Enqueue(res, s.app.policyVersion()); err != nil {
		logger.WarnContext(logging.WithRunID(jobCtx, res.RunID), "failed to queue audit record", "error", err)
	}
	return nil
}

func (s *scheduler) recordJob(name, status string, at time.Time) {
	if s.app.metrics != nil {
		s.app.metrics.RecordJobRun(name, status, at)
	}
}

func (s *scheduler) lastRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	jobs := a.cfg.Schedule.Jobs
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs configured in schedule.jobs")
	}

	runner, err := a.newRunner()
	if err != nil {
		return err
	}
	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()
	rec := a.newRecorder(store)
	defer rec.Close()

	s := &scheduler{app: a, runner: runner, rec: rec}

	if scheduleFlags.once {
		var errs []error
		for _, job := range jobs {
			errs = append(errs, s.runJob(ctx, job))
		}
		return errors.Join(errs...)
	}

	c := cron.New()
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.Cron, func() { _ = s.runJob(ctx, job) }); err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", jobName(job), err)
		}
	}

	srv, err := a.startServer(ctx, s, store)
	if err != nil {
		return err
	}
	if srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if a.repo != nil && a.cfg.Policy.Git.Poll.Interval > 0 {
		poller := git.NewPoller(a.repo, a.cfg.Policy.Git.Poll.Interval, func(string) error {
			a.policies.Reload()
			err := a.checkPolicies(ctx)
			a.recordReload("git", err)
			return err
		}, a.logger)
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("failed to start policy poller: %w", err)
		}
		defer poller.Stop()
	}

	if a.cfg.Policy.Watch {
		go func() {
			err := a.policies.Watch(ctx, func() { a.recordReload("file", nil) })
			if err != nil && ctx.Err() == nil {
				a.logger.Warn("policy watcher stopped", "error", err)
			}
		}()
	}

	if a.cfg.History.Enabled {
		pruner := a.newPruner(store, a.cfg.History.Retention.Days)
		if err := pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start history retention: %w", err)
		}
		defer pruner.Stop()
	}

	c.Start()
	a.logger.Info("scheduler started", "jobs", len(jobs))

	<-ctx.Done()
	a.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

func (a *app) recordReload(source string, err error) {
	if a.metrics != nil {
		a.metrics.RecordPolicyReload(source, err)
	}
}

// startServer serves metrics and health probes. It returns nil when both
// are disabled. The returned server's Addr is the bound address.
func (a *app) startServer(ctx context.Context, s *scheduler, store history.Storage) (*http.Server, error) {
	metricsCfg := a.cfg.Telemetry.Metrics
	healthCfg := a.cfg.Telemetry.Health
	if !metricsCfg.Enabled && !healthCfg.Enabled {
		return nil, nil
	}

	mux := http.NewServeMux()
	if a.metrics != nil {
		mux.Handle(metricsCfg.Path, a.metrics.Handler())
	}
	if healthCfg.Enabled {
		checker := health.New(healthCfg.CheckTimeout)
		checker.RegisterCheck("policies", health.PolicyCheck(func() int {
			names, err := a.policies.ListPolicies()
			if err != nil {
				return 0
			}
			return len(names)
		}))
		checker.RegisterCheck("history", health.StorageCheck(store))
		if maxAge := maxJobInterval(a.cfg.Schedule.Jobs); maxAge > 0 {
			checker.RegisterCheck("jobs", health.FreshnessCheck("job run", s.lastRunTime, 2*maxAge))
		}
		if a.repo != nil && a.cfg.Policy.Git.Poll.Interval > 0 {
			checker.RegisterCheck("git", health.FreshnessCheck("policy pull", func() time.Time {
				return a.repo.Stats().LastPull
			}, 3*a.cfg.Policy.Git.Poll.Interval))
		}
		health.Mount(mux, &healthCfg, checker, health.VersionInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		})
	}

	ln, err := net.Listen("tcp", metricsCfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", metricsCfg.ListenAddress, err)
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("telemetry server failed", "error", err)
		}
	}()
	a.logger.Info("telemetry server listening", "address", srv.Addr)
	return srv, nil
}

// maxJobInterval returns the longest gap between two runs of any job,
// measured from now.
func maxJobInterval(jobs []config.ScheduleJob) time.Duration {
	var longest time.Duration
	now := time.Now()
	for _, job := range jobs {
		sched, err := cron.ParseStandard(job.Cron)
		if err != nil {
			continue
		}
		first := sched.Next(now)
		if gap := sched.Next(first).Sub(first); gap > longest {
			longest = gap
		}
	}
	return longest
}
