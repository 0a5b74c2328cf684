package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/vigil/pkg/config"
	"mercator-hq/vigil/pkg/policy/engine"
)

var _ engine.SpanStarter = (*Tracer)(nil)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{"nil config", nil, true},
		{"disabled", &config.TracingConfig{}, false},
		{"otlp", &config.TracingConfig{Enabled: true, Sampler: "always", Exporter: "otlp", Endpoint: "localhost:4317", Insecure: true}, false},
		{"stdout", &config.TracingConfig{Enabled: true, Sampler: "never", Exporter: "stdout"}, false},
		{"ratio", &config.TracingConfig{Enabled: true, Sampler: "ratio", SampleRatio: 0.5, Exporter: "stdout"}, false},
		{"bad ratio", &config.TracingConfig{Enabled: true, Sampler: "ratio", SampleRatio: 1.5, Exporter: "stdout"}, true},
		{"bad sampler", &config.TracingConfig{Enabled: true, Sampler: "sometimes", Exporter: "stdout"}, true},
		{"bad exporter", &config.TracingConfig{Enabled: true, Sampler: "always", Exporter: "zipkin"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test", WithoutGlobal(), WithWriter(&bytes.Buffer{}))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("Enabled() = %v", tracer.Enabled())
			}
			if err := tracer.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatal(err)
	}
	ctx, span := tracer.Start(context.Background(), "audit.run")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := New(&config.TracingConfig{Enabled: true, Sampler: SamplerAlways}, "1.2.3",
		WithExporter(exporter), WithoutGlobal())
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	ctx, parent := tracer.Start(context.Background(), "vigil.audit",
		trace.WithAttributes(RunAttributes("orders", "prod", "", "nightly", true)...))
	_, child := tracer.Start(ctx, "audit.run")
	SetStatus(child, errors.New("boom"))
	child.End()
	parent.SetAttributes(ResultAttributes("run-1", true, 0, 2, false)...)
	SetStatus(parent, nil)
	parent.End()

	if TraceID(ctx) == "" {
		t.Error("TraceID() is empty inside a sampled span")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	runSpan, auditSpan := spans[0], spans[1]
	if runSpan.Parent.SpanID() != auditSpan.SpanContext.SpanID() {
		t.Error("audit.run is not a child of vigil.audit")
	}
	if runSpan.Status.Code != codes.Error || len(runSpan.Events) != 1 {
		t.Errorf("child status = %+v, events = %d", runSpan.Status, len(runSpan.Events))
	}
	if auditSpan.Status.Code != codes.Ok {
		t.Errorf("parent status = %+v", auditSpan.Status)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range auditSpan.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrPolicy].AsString() != "orders" || attrs[AttrJob].AsString() != "nightly" {
		t.Errorf("attributes = %v", auditSpan.Attributes)
	}
	if _, ok := attrs[AttrDataset]; ok {
		t.Error("empty dataset attribute was set")
	}
	if attrs[AttrViolations].AsInt64() != 2 {
		t.Errorf("violations = %v", attrs[AttrViolations])
	}

	found := false
	for _, kv := range auditSpan.Resource.Attributes() {
		if kv.Key == "service.version" && kv.Value.AsString() == "1.2.3" {
			found = true
		}
	}
	if !found {
		t.Error("service.version missing from resource")
	}
}

func TestTracer_NeverSamples(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, _ := New(&config.TracingConfig{Enabled: true, Sampler: SamplerNever}, "test",
		WithExporter(exporter), WithoutGlobal())
	_, span := tracer.Start(context.Background(), "audit.run")
	span.End()

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("never sampler exported %d spans", n)
	}
}

func TestTracer_StdoutExporter(t *testing.T) {
	buf := &bytes.Buffer{}
	tracer, err := New(&config.TracingConfig{Enabled: true, Sampler: SamplerAlways, Exporter: ExporterStdout}, "test",
		WithWriter(buf), WithoutGlobal())
	if err != nil {
		t.Fatal(err)
	}
	_, span := tracer.Start(context.Background(), "audit.run")
	span.End()
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"audit.run"`) {
		t.Errorf("stdout exporter output missing span:\n%s", buf.String())
	}
}

func TestPropagation(t *testing.T) {
	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	env := map[string]string{EnvTraceParent: parent}

	ctx := ExtractEnv(context.Background(), func(k string) string { return env[k] })
	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("TraceID() = %q", got)
	}
	if !trace.SpanContextFromContext(ctx).IsRemote() {
		t.Error("extracted span context is not remote")
	}

	injected := InjectEnv(ctx)
	if len(injected) != 1 || injected[0] != EnvTraceParent+"="+parent {
		t.Errorf("InjectEnv() = %v", injected)
	}

	empty := ExtractEnv(context.Background(), func(string) string { return "" })
	if TraceID(empty) != "" || InjectEnv(empty) != nil {
		t.Error("empty environment produced a trace context")
	}
}

func TestTracer_JoinsEnvTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, _ := New(&config.TracingConfig{Enabled: true, Sampler: SamplerNever}, "test",
		WithExporter(exporter), WithoutGlobal())

	// ParentBased follows the sampled flag of the remote parent.
	ctx := ExtractEnv(context.Background(), func(k string) string {
		if k == EnvTraceParent {
			return "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
		}
		return ""
	})
	_, span := tracer.Start(ctx, "vigil.audit")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].SpanContext.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("spans = %d", len(spans))
	}
}
