package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Share of root traces kept. Every ingestion run opens a span per repository call.
const TRACE_SAMPLE_RATIO = 0.1

type ServiceInfo struct {
	Name       string
	Version    string
	InstanceID string
}

type shutdownFunc func(context.Context) error

// Stop providers in reverse order of creation, joining their errors
func shutdownAll(funcs []shutdownFunc) shutdownFunc {
	return func(ctx context.Context) error {
		var err error
		for i := len(funcs) - 1; i >= 0; i-- {
			err = errors.Join(err, funcs[i](ctx))
		}
		return err
	}
}

// Install the global propagator, meter provider and tracer provider, exporting over OTLP/gRPC.
//
// Globals are only replaced when every exporter could be created. Call the returned function on
// shutdown to flush pending telemetry.
func SetupOTelSDK(ctx context.Context, service ServiceInfo) (func(context.Context) error, error) {
	res, err := newResource(service)
	if err != nil {
		return nil, err
	}

	meterProvider, err := newMeterProvider(ctx, res)
	if err != nil {
		return nil, err
	}

	tracerProvider, err := newTracerProvider(ctx, res)
	if err != nil {
		return nil, errors.Join(err, meterProvider.Shutdown(ctx))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	return shutdownAll([]shutdownFunc{meterProvider.Shutdown, tracerProvider.Shutdown}), nil
}

func newResource(service ServiceInfo) (*resource.Resource, error) {
	attributes := []attribute.KeyValue{semconv.ServiceName(service.Name)}
	if service.Version != "" {
		attributes = append(attributes, semconv.ServiceVersion(service.Version))
	}
	if service.InstanceID != "" {
		attributes = append(attributes, semconv.ServiceInstanceID(service.InstanceID))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(resource.Default().SchemaURL(), attributes...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource) (*metric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	), nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(TRACE_SAMPLE_RATIO))),
	), nil
}
