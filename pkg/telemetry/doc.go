// Package telemetry groups vigil's observability packages.
//
//   - logging: slog loggers with secret redaction and context fields
//   - metrics: Prometheus metrics for audit runs and the scheduler
//   - tracing: OpenTelemetry spans for audit runs
//   - health: liveness and readiness probes for "vigil schedule"
package telemetry
