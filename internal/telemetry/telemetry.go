// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const ServiceName = "local-library"

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

// Setup exports spans over OTLP/HTTP to endpoint. An empty endpoint leaves
// the global no-op provider in place.
func Setup(ctx context.Context, endpoint, env string) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	if strings.HasPrefix(endpoint, "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(ServiceName),
		semconv.DeploymentEnvironmentKey.String(env),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := Provider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	log.Printf("[Telemetry] exporting traces to %s", endpoint)
	return tp.Shutdown, nil
}

// Provider builds an SDK tracer provider and makes it the global one.
func Provider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp
}
