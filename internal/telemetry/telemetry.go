// Package telemetry wires OpenTelemetry into taskmill. It is off unless
// TM_OTEL_ENABLED=true, in which case spans go to stdout and metrics go to
// stdout (TM_OTEL_STDOUT=true), an OTLP/HTTP collector
// (OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT), or
// stdout as the fallback when neither is set.
package telemetry

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const defaultScope = "github.com/taskmill/taskmill"

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry is active (TM_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("TM_OTEL_ENABLED") == "true"
}

// Init installs the global trace and meter providers. Disabled runs get
// no-op providers so instrumented call sites cost nothing.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("telemetry: stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
	)
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	readers, err := metricReaders(ctx)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	return nil
}

// metricReaders builds one periodic reader per configured metric sink. A
// metrics-specific OTLP endpoint wins over the shared one; an enabled run
// with nothing configured still reports to stdout.
func metricReaders(ctx context.Context) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	wantStdout := os.Getenv("TM_OTEL_STDOUT") == "true"
	endpoint := cmp.Or(
		os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	)

	if wantStdout || endpoint == "" {
		r, err := stdoutReader()
		if err != nil {
			return nil, err
		}
		readers = append(readers, r)
	}
	if endpoint != "" {
		exp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(30*time.Second)))
	}
	return readers, nil
}

func stdoutReader() (sdkmetric.Reader, error) {
	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("stdout metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)), nil
}

// Tracer returns a tracer for name, defaulting to the module-wide scope.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(cmp.Or(name, defaultScope))
}

// Meter returns a meter for name, defaulting to the module-wide scope.
func Meter(name string) metric.Meter {
	return otel.Meter(cmp.Or(name, defaultScope))
}

// Shutdown flushes and stops every installed provider. Safe to call more
// than once; the CLI runs it after every command.
func Shutdown(ctx context.Context) {
	fns := shutdownFns
	shutdownFns = nil
	for _, fn := range fns {
		_ = fn(ctx)
	}
}
