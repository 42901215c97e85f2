package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gootel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petal-labs/sfmctools/tool"
)

const instrumentationName = "github.com/petal-labs/sfmctools"

// Options configures Setup.
type Options struct {
	ServiceName string
	// OTLPEndpoint is a full OTLP/HTTP URL, e.g. http://localhost:4318.
	// Empty disables export.
	OTLPEndpoint string
	// Exporter overrides the OTLP span exporter; used by tests.
	Exporter sdktrace.SpanExporter
	// MetricReader overrides the periodic OTLP metric reader; used by tests.
	MetricReader sdkmetric.Reader
}

// ShutdownFunc flushes and stops telemetry.
type ShutdownFunc func(context.Context) error

// Setup installs a ToolObserver as the process-wide tool observer. When
// export is configured, spans and metrics flow through SDK providers that are
// also registered globally.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	serviceName := strings.TrimSpace(opts.ServiceName)
	if serviceName == "" {
		serviceName = "sfmctools"
	}
	endpoint := strings.TrimSpace(opts.OTLPEndpoint)
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	exporter := opts.Exporter
	if exporter == nil && endpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
		}
		exporter = exp
	}

	reader := opts.MetricReader
	if reader == nil && endpoint != "" {
		exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	}

	var stops []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		tool.SetObserver(nil)
		var errs []error
		for _, stop := range stops {
			errs = append(errs, stop(ctx))
		}
		return errors.Join(errs...)
	}

	if exporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		gootel.SetTracerProvider(tp)
		stops = append(stops, tp.Shutdown)
	}
	if reader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
		gootel.SetMeterProvider(mp)
		stops = append(stops, mp.Shutdown)
	}

	observer, err := NewToolObserver(
		gootel.GetMeterProvider().Meter(instrumentationName),
		gootel.GetTracerProvider().Tracer(instrumentationName),
	)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("creating tool observer: %w", err)
	}
	tool.SetObserver(observer)
	return shutdown, nil
}
