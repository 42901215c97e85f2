// Package otel records tool invocation telemetry into OpenTelemetry.
package otel

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/sfmctools/tool"
)

// Instrument names.
const (
	MetricInvocations = "sfmctools.tool.invocations"
	MetricFailures    = "sfmctools.tool.failures"
	MetricLatency     = "sfmctools.tool.latency"
	SpanInvoke        = "tool.invoke"
)

// ToolObserver records adapter invocation outcomes into OpenTelemetry.
type ToolObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewToolObserver creates a tool observer bound to the provided meter/tracer.
// A nil tracer disables spans.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		MetricFailures,
		metric.WithDescription("Number of tool invocations folded into an error value"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// ObserveInvoke records one invocation result.
func (o *ToolObserver) ObserveInvoke(observation tool.InvokeObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.String("method", observation.Method),
		attribute.Bool("success", observation.Success),
	}
	if observation.StatusCode != 0 {
		attrs = append(attrs, attribute.String("status_code", strconv.Itoa(observation.StatusCode)))
	}
	if observation.FaultKind != "" {
		attrs = append(attrs, attribute.String("error_code", string(observation.FaultKind)))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	if !observation.Success {
		o.failures.Add(ctx, 1, options)
	}
	duration := time.Duration(observation.DurationMS) * time.Millisecond
	o.latency.Record(ctx, duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	end := time.Now()
	_, span := o.tracer.Start(ctx, SpanInvoke,
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(end.Add(-duration)),
	)
	if observation.RequestID != "" {
		span.SetAttributes(attribute.String("request_id", observation.RequestID))
	}
	if !observation.Success {
		span.SetStatus(codes.Error, string(observation.FaultKind))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

var _ tool.Observer = (*ToolObserver)(nil)
