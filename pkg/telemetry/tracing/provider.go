package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"kairo-hq/guardrails/pkg/config"
)

// ScopeName is the instrumentation scope of every span this module starts.
const ScopeName = "kairo-hq/guardrails"

// Sampler names accepted in telemetry.tracing.sampler.
const (
	SamplerAlways      = "always"
	SamplerNever       = "never"
	SamplerRatio       = "ratio"
	SamplerParentRatio = "parent_ratio"
)

var samplers = map[string]func(ratio float64) sdktrace.Sampler{
	SamplerAlways:      func(float64) sdktrace.Sampler { return sdktrace.AlwaysSample() },
	SamplerNever:       func(float64) sdktrace.Sampler { return sdktrace.NeverSample() },
	SamplerRatio:       sdktrace.TraceIDRatioBased,
	SamplerParentRatio: func(r float64) sdktrace.Sampler { return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(r)) },
}

// Provider owns the process tracer. A disabled provider hands out a noop
// tracer and has nothing to flush.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Option customizes New.
type Option func(*settings)

type settings struct {
	exporter sdktrace.SpanExporter
	version  string
}

// WithExporter replaces the OTLP exporter, typically with an in-memory one.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(s *settings) { s.exporter = exp }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(s *settings) { s.version = version }
}

// New builds the provider described by cfg. When tracing is enabled the
// provider becomes the global one and W3C trace context propagation is
// installed, so verifier requests carry the check's trace.
func New(ctx context.Context, cfg *config.TracingConfig, opts ...Option) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New("tracing config is nil")
	}
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(ScopeName)}, nil
	}

	s := settings{version: "dev"}
	for _, opt := range opts {
		opt(&s)
	}

	sampler, err := newSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		if s.exporter, err = newOTLPExporter(ctx, cfg); err != nil {
			return nil, err
		}
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(s.version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(s.exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{sdk: sdk, tracer: sdk.Tracer(ScopeName)}, nil
}

func newSampler(name string, ratio float64) (sdktrace.Sampler, error) {
	build, ok := samplers[name]
	if !ok {
		return nil, fmt.Errorf("unknown sampler %q (valid: always, never, ratio, parent_ratio)", name)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %g", ratio)
	}
	return build(ratio), nil
}

func newOTLPExporter(ctx context.Context, cfg *config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.OTLP.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.OTLP.Timeout))
	}
	exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", cfg.Endpoint, err)
	}
	return exp, nil
}

// Tracer is handed to checker.WithTracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Flush exports every ended span now.
func (p *Provider) Flush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter. Call it once on exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracing: %w", err)
	}
	return nil
}
