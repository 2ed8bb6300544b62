package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/crankstress/internal/config"
)

func TestRunStampedOnExportedSpans(t *testing.T) {
	res, err := newResource("stress-ci", Run{ID: "01JABCDEF", Target: "10.0.0.9", Workers: 4, OutputDir: "results"})
	if err != nil {
		t.Fatalf("newResource() error = %v", err)
	}
	exporter := tracetest.NewInMemoryExporter()
	p := newProvider(res, sdktrace.WithSyncer(exporter), newSampler(1))
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.Tracer().Start(context.Background(), "orchestrate")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Resource.Attributes() {
		got[kv.Key] = kv.Value
	}
	want := map[attribute.Key]attribute.Value{
		"service.name":           attribute.StringValue("stress-ci"),
		"service.instance.id":    attribute.StringValue("01JABCDEF"),
		"crankstress.run_id":     attribute.StringValue("01JABCDEF"),
		"crankstress.target":     attribute.StringValue("10.0.0.9"),
		"crankstress.workers":    attribute.IntValue(4),
		"crankstress.output_dir": attribute.StringValue("results"),
	}
	for k, v := range want {
		if got[k].Type() != v.Type() || got[k].Emit() != v.Emit() {
			t.Errorf("resource %s = %v, want %v", k, got[k].Emit(), v.Emit())
		}
	}
	if spans[0].InstrumentationScope.Name != instrumentationName {
		t.Errorf("scope = %q, want %q", spans[0].InstrumentationScope.Name, instrumentationName)
	}
}

func TestRunAttributesOmitEmpty(t *testing.T) {
	attrs := Run{Workers: 2}.attributes()
	keys := map[attribute.Key]bool{}
	for _, kv := range attrs {
		keys[kv.Key] = true
	}
	for _, k := range []attribute.Key{"crankstress.target", "crankstress.output_dir", "service.instance.id"} {
		if keys[k] {
			t.Errorf("attribute %s set for an empty value", k)
		}
	}
	if !keys["crankstress.workers"] {
		t.Error("crankstress.workers missing")
	}
}

func TestServiceName(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
		env  string
		want string
	}{
		{name: "flag", cfg: config.TracingConfig{ServiceName: "nightly"}, env: "from-env", want: "nightly"},
		{name: "environment", env: "from-env", want: "from-env"},
		{name: "default", want: defaultServiceName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_SERVICE_NAME", tt.env)
			if got := serviceName(tt.cfg); got != tt.want {
				t.Errorf("serviceName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := newSampler(tt.rate).Description(); got != tt.want {
			t.Errorf("newSampler(%g) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
