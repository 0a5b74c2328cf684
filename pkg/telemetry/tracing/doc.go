// Package tracing provides OpenTelemetry tracing for audit runs.
//
// New builds a Tracer from telemetry.tracing. When tracing is disabled the
// Tracer is a noop with negligible overhead. When enabled, spans are
// batched to an OTLP gRPC collector or written to stdout.
//
// The audit runner starts an "audit.run" span per run and an "audit.rule"
// span per rule. The CLI wraps them in a "vigil.audit" span carrying the
// attributes from RunAttributes.
//
// # Sampling
//
// Three strategies are supported, each wrapped in ParentBased:
//   - always: sample every run
//   - never: sample nothing
//   - ratio: sample sample_ratio of runs by trace ID
//
// # Propagation
//
// Audits launched by CI pipelines can join the pipeline's trace. ExtractEnv
// reads W3C trace context from the TRACEPARENT and TRACESTATE environment
// variables; InjectEnv writes the current context for child processes.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx = tracing.ExtractEnv(ctx, os.Getenv)
//	runner, _ := engine.NewRunner(runnerCfg, nil, logger, engine.WithTracer(tracer))
package tracing
