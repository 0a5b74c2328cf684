// Package metrics provides Prometheus metrics for vigil.
//
// # Metrics
//
// Audit metrics, recorded by the audit runner through Collector:
//
//   - vigil_audit_rule_evaluations_total{policy,rule,outcome}
//   - vigil_audit_rule_duration_seconds{policy}
//   - vigil_audit_runs_total{policy,outcome}
//   - vigil_audit_run_duration_seconds{policy}
//   - vigil_audit_violations_total{policy}
//   - vigil_audit_last_exit_code{policy}
//   - vigil_audit_fail_fast_total{policy,rule}
//
// Scheduler and policy source metrics:
//
//   - vigil_schedule_job_runs_total{job,status}
//   - vigil_schedule_job_last_run_timestamp_seconds{job}
//   - vigil_policy_reloads_total{source,status}
//
// Parse cache metrics, read from the cache on each scrape:
//
//   - vigil_parse_cache_hits_total, vigil_parse_cache_misses_total,
//     vigil_parse_cache_entries
//
// The rule label is capped by a cardinality limiter; rules beyond the cap
// are reported as "other".
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	runner, _ := engine.NewRunner(runnerCfg, nil, logger, engine.WithMetrics(collector))
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
