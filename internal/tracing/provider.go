// Package tracing exports the spans of a stress run over OTLP and hands the
// W3C trace context to worker processes.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/crankstress/internal/config"
)

const (
	instrumentationName = "crankstress"
	defaultServiceName  = "crankstress"
)

// Run identifies the stress run every exported span belongs to.
type Run struct {
	ID        string
	Target    string
	Workers   int
	OutputDir string
}

func (r Run) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("crankstress.run_id", r.ID),
		attribute.Int("crankstress.workers", r.Workers),
	}
	if r.ID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(r.ID))
	}
	if r.Target != "" {
		attrs = append(attrs, attribute.String("crankstress.target", r.Target))
	}
	if r.OutputDir != "" {
		attrs = append(attrs, attribute.String("crankstress.output_dir", r.OutputDir))
	}
	return attrs
}

// Provider owns the tracer provider of one run.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init builds the provider for run. Without an OTLP endpoint, from cfg or
// OTEL_EXPORTER_OTLP_ENDPOINT, spans go to a no-op tracer. cfg is expected to
// have passed config.Validate.
func Init(ctx context.Context, cfg config.TracingConfig, run Run) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	res, err := newResource(serviceName(cfg), run)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	exporter, err := newExporter(ctx, cfg, endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	p := newProvider(res, sdktrace.WithBatcher(exporter), newSampler(cfg.SampleRate))
	p.propagate = cfg.ShouldPropagate()
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func newProvider(res *resource.Resource, export sdktrace.TracerProviderOption, sampler sdktrace.Sampler) *Provider {
	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName)}
}

func serviceName(cfg config.TracingConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return defaultServiceName
}

// newResource describes the process and the run. Merging with the default
// resource keeps the OTEL_RESOURCE_ATTRIBUTES and SDK attributes.
func newResource(service string, run Run) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{semconv.ServiceName(service)}, run.attributes()...)
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// newSampler maps a 0..1 rate to a sampler.
func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the run's tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether workers get TRACEPARENT in their environment.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func newExporter(ctx context.Context, cfg config.TracingConfig, endpoint string) (sdktrace.SpanExporter, error) {
	switch protocol := strings.ToLower(cfg.Protocol); protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
