package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/vigil/pkg/config"
)

// ScheduleMetrics tracks scheduled jobs and policy reloads.
type ScheduleMetrics struct {
	jobRuns      *prometheus.CounterVec
	jobLastRun   *prometheus.GaugeVec
	reloadsTotal *prometheus.CounterVec
}

// NewScheduleMetrics creates and registers scheduler metrics.
func NewScheduleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ScheduleMetrics {
	sm := &ScheduleMetrics{
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "schedule",
				Name:      "job_runs_total",
				Help:      "Total number of scheduled job runs by status",
			},
			[]string{"job", "status"},
		),
		jobLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "schedule",
				Name:      "job_last_run_timestamp_seconds",
				Help:      "Unix time of the most recent run of each job",
			},
			[]string{"job"},
		),
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "policy",
				Name:      "reloads_total",
				Help:      "Total number of policy reloads by source and status",
			},
			[]string{"source", "status"},
		),
	}

	registry.MustRegister(sm.jobRuns, sm.jobLastRun, sm.reloadsTotal)
	return sm
}

// RecordJobRun records a job execution.
func (sm *ScheduleMetrics) RecordJobRun(job, status string, at time.Time) {
	sm.jobRuns.WithLabelValues(job, status).Inc()
	sm.jobLastRun.WithLabelValues(job).Set(float64(at.Unix()))
}

// RecordReload records a policy reload.
func (sm *ScheduleMetrics) RecordReload(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	sm.reloadsTotal.WithLabelValues(source, status).Inc()
}
