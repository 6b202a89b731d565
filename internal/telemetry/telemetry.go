// Package telemetry initializes the OpenTelemetry tracer and meter
// providers the instrumentor runs on.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tsuiseki/internal/config"
	"github.com/ashita-ai/tsuiseki/internal/model"
)

const scopeName = "github.com/ashita-ai/tsuiseki"

// Providers bundles the tracer and meter providers built at setup time.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Init builds a tracer provider over the given exporters plus any extra
// span processors, and a meter provider when metrics are enabled. The
// providers are installed globally so instrumented libraries that consult
// otel.GetTracerProvider parent correctly.
func Init(ctx context.Context, cfg config.Config, exporters []sdktrace.SpanExporter, processors []sdktrace.SpanProcessor) (*Providers, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.WorkflowName),
			semconv.ServiceVersionKey.String(model.SDKVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
		))
	}
	for _, proc := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(proc))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	p := &Providers{TracerProvider: tp}

	if cfg.MetricsEnabled && cfg.OTLPEndpoint != "" {
		metricOpts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
		}
		p.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.MeterProvider)
	}

	return p, nil
}

// Tracer returns the instrumentor's tracer.
func (p *Providers) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(scopeName, trace.WithInstrumentationVersion(model.SDKVersion))
}

// Meter returns the instrumentor's meter, a no-op when metrics are off.
func (p *Providers) Meter() metric.Meter {
	if p.MeterProvider == nil {
		return noop.NewMeterProvider().Meter(scopeName)
	}
	return p.MeterProvider.Meter(scopeName)
}

// ForceFlush drains pending spans, for callers that need traces on disk
// before the process continues.
func (p *Providers) ForceFlush(ctx context.Context) error {
	if err := p.TracerProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("telemetry: flush spans: %w", err)
	}
	return nil
}

// Shutdown flushes and stops both providers concurrently.
func (p *Providers) Shutdown(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
		}
		return nil
	})
	if p.MeterProvider != nil {
		mp := p.MeterProvider
		g.Go(func() error {
			if err := mp.Shutdown(ctx); err != nil {
				return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
