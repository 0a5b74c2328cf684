package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for audit spans.
const (
	AttrPolicy          = "vigil.policy"
	AttrEnvironment     = "vigil.environment"
	AttrDataset         = "vigil.dataset"
	AttrDryRun          = "vigil.dry_run"
	AttrJob             = "vigil.job"
	AttrRunID           = "vigil.run_id"
	AttrExitCode        = "vigil.exit_code"
	AttrViolations      = "vigil.violations"
	AttrSuccess         = "vigil.success"
	AttrTerminatedEarly = "vigil.terminated_early"
)

// RunAttributes describes an audit request. Empty environment, dataset
// and job are omitted.
func RunAttributes(policy, environment, dataset, job string, dryRun bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPolicy, policy),
		attribute.Bool(AttrDryRun, dryRun),
	}
	if environment != "" {
		attrs = append(attrs, attribute.String(AttrEnvironment, environment))
	}
	if dataset != "" {
		attrs = append(attrs, attribute.String(AttrDataset, dataset))
	}
	if job != "" {
		attrs = append(attrs, attribute.String(AttrJob, job))
	}
	return attrs
}

// ResultAttributes describes an audit outcome.
func ResultAttributes(runID string, success bool, exitCode, violations int, terminatedEarly bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Bool(AttrSuccess, success),
		attribute.Int(AttrExitCode, exitCode),
		attribute.Int(AttrViolations, violations),
		attribute.Bool(AttrTerminatedEarly, terminatedEarly),
	}
}
