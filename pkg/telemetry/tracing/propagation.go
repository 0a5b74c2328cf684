package tracing

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/propagation"
)

// Environment variables carrying W3C trace context between processes.
const (
	EnvTraceParent = "TRACEPARENT"
	EnvTraceState  = "TRACESTATE"
)

var envKeys = map[string]string{
	"traceparent": EnvTraceParent,
	"tracestate":  EnvTraceState,
}

// ExtractEnv returns ctx with the remote span context found in the
// environment, read through getenv. ctx is returned unchanged when no
// valid context is set.
func ExtractEnv(ctx context.Context, getenv func(string) string) context.Context {
	carrier := propagation.MapCarrier{}
	for header, env := range envKeys {
		if v := getenv(env); v != "" {
			carrier.Set(header, v)
		}
	}
	if len(carrier) == 0 {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, carrier)
}

// InjectEnv returns the trace context of ctx as NAME=value pairs for a
// child process environment. It returns nil when ctx has no span.
func InjectEnv(ctx context.Context) []string {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	var env []string
	for header, name := range envKeys {
		if v := carrier.Get(header); v != "" {
			env = append(env, name+"="+v)
		}
	}
	sort.Strings(env)
	return env
}
