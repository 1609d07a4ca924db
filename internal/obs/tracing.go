package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// InitLocal installs local SDK tracer/meter providers with no network
// exporter: there is no collector endpoint in this module's configuration
// surface, so spans and metrics stay in-process against the real SDK
// types (sdktrace.TracerProvider, metric.MeterProvider) rather than an
// OTLP exporter. Returns a shutdown func.
func InitLocal(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns a tracer scoped to the given component.
func Tracer(component string) trace.Tracer {
	return otel.Tracer("ptolemies/" + component)
}

// StartSpan starts a named span on the given component's tracer; callers
// defer span.End().
func StartSpan(ctx context.Context, component, name string) (context.Context, trace.Span) {
	return Tracer(component).Start(ctx, name)
}

// since converts an elapsed duration to fractional milliseconds for
// histogram recording.
func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
