package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/vigil/pkg/config"
)

// AuditMetrics tracks rule evaluations and audit runs.
type AuditMetrics struct {
	ruleEvaluations *prometheus.CounterVec
	ruleDuration    *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	violationsTotal *prometheus.CounterVec
	lastExitCode    *prometheus.GaugeVec
	failFastTotal   *prometheus.CounterVec
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		ruleEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations by outcome",
			},
			[]string{"policy", "rule", "outcome"},
		),
		ruleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "rule_duration_seconds",
				Help:      "Duration of rule evaluation in seconds",
				Buckets:   cfg.RuleDurationBuckets,
			},
			[]string{"policy"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "runs_total",
				Help:      "Total number of audit runs by outcome",
			},
			[]string{"policy", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "run_duration_seconds",
				Help:      "Duration of audit runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
			},
			[]string{"policy"},
		),
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "violations_total",
				Help:      "Total number of rule violations",
			},
			[]string{"policy"},
		),
		lastExitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "last_exit_code",
				Help:      "Exit code of the most recent audit run",
			},
			[]string{"policy"},
		),
		failFastTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "audit",
				Name:      "fail_fast_total",
				Help:      "Total number of runs terminated early by a fail-fast rule",
			},
			[]string{"policy", "rule"},
		),
	}

	registry.MustRegister(
		am.ruleEvaluations,
		am.ruleDuration,
		am.runsTotal,
		am.runDuration,
		am.violationsTotal,
		am.lastExitCode,
		am.failFastTotal,
	)
	return am
}

// RecordRule records one rule evaluation.
func (am *AuditMetrics) RecordRule(policy, rule, outcome string, duration time.Duration) {
	am.ruleEvaluations.WithLabelValues(policy, rule, outcome).Inc()
	am.ruleDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// RecordRun records a finished audit run.
func (am *AuditMetrics) RecordRun(policy, outcome string, exitCode, violations int, duration time.Duration) {
	am.runsTotal.WithLabelValues(policy, outcome).Inc()
	am.runDuration.WithLabelValues(policy).Observe(duration.Seconds())
	am.violationsTotal.WithLabelValues(policy).Add(float64(violations))
	am.lastExitCode.WithLabelValues(policy).Set(float64(exitCode))
}

// RecordFailFast records a fail-fast termination.
func (am *AuditMetrics) RecordFailFast(policy, rule string) {
	am.failFastTotal.WithLabelValues(policy, rule).Inc()
}
