// Package telemetry traces and meters migration runs with OpenTelemetry.
//
// It is off unless Options.Enabled is set; while off, the global providers
// are no-ops and WrapDestination returns destinations unwrapped.
//
// Exporters:
//   - stdout: pretty-printed spans and periodic metric dumps (Options.Stdout)
//   - OTLP/HTTP: any collector, e.g. Jaeger or Grafana Tempo (Options.Endpoint)
//
// Enabled without either exporter means stdout.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const defaultScope = "github.com/steveyegge/trackmigrate"

// Options selects what Init installs.
type Options struct {
	Enabled     bool
	Stdout      bool
	Endpoint    string // OTLP/HTTP host:port for traces and metrics
	ServiceName string
	Version     string
}

var (
	enabled  atomic.Bool
	shutdown []func(context.Context) error
)

// Enabled reports whether Init installed real providers.
func Enabled() bool {
	return enabled.Load()
}

// Init installs the global tracer and meter providers.
func Init(ctx context.Context, opts Options) error {
	if !opts.Enabled {
		enabled.Store(false)
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.Version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	stdout := opts.Stdout || opts.Endpoint == ""

	tp, err := newTracerProvider(ctx, res, stdout, opts.Endpoint)
	if err != nil {
		return fmt.Errorf("telemetry traces: %w", err)
	}
	mp, err := newMeterProvider(ctx, res, stdout, opts.Endpoint)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry metrics: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	shutdown = append(shutdown, tp.Shutdown, mp.Shutdown)
	enabled.Store(true)
	return nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, stdout bool, endpoint string) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	if endpoint != "" {
		exp, err := newOTLPTraceExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, stdout bool, endpoint string) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))))
	}
	if endpoint != "" {
		exp, err := newOTLPMetricExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer for scope, or for the module when scope is "".
func Tracer(scope string) trace.Tracer {
	if scope == "" {
		scope = defaultScope
	}
	return otel.Tracer(scope)
}

// Meter returns a meter for scope, or for the module when scope is "".
func Meter(scope string) metric.Meter {
	if scope == "" {
		scope = defaultScope
	}
	return otel.Meter(scope)
}

// Shutdown flushes pending spans and metrics and stops the providers.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdown {
		errs = append(errs, fn(ctx))
	}
	shutdown = nil
	enabled.Store(false)
	return errors.Join(errs...)
}
