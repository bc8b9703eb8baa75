package config

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	logMsgSpanFinished   = "span finished"
	logMsgMetricRecorded = "metric recorded"
	logAttrSpan          = "span"
	logAttrTraceID       = "trace_id"
	logAttrStatus        = "status"
	logAttrDurationMS    = "duration_ms"
	logAttrMetric        = "metric"
	logAttrDataPoints    = "data_points"

	attrServiceName = "service.name"
)

// ObservabilityProviders holds the OpenTelemetry providers of one entityq invocation.
// Finished spans are written to the logger as they end; metrics are written once on Shutdown.
type ObservabilityProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider

	reader *sdkmetric.ManualReader
	logger *slog.Logger
}

// NewObservabilityProviders creates tracer and meter providers reporting to logger.
func NewObservabilityProviders(serviceName string, logger *slog.Logger) *ObservabilityProviders {
	res := resource.NewSchemaless(attribute.String(attrServiceName, serviceName))
	reader := sdkmetric.NewManualReader()

	return &ObservabilityProviders{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(spanLogExporter{logger: logger}),
			sdktrace.WithResource(res),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
		reader: reader,
		logger: logger,
	}
}

// Shutdown logs the collected metrics and shuts both providers down.
func (p *ObservabilityProviders) Shutdown(ctx context.Context) error {
	var resourceMetrics metricdata.ResourceMetrics

	collectErr := p.reader.Collect(ctx, &resourceMetrics)
	if collectErr == nil {
		for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
			for _, m := range scopeMetrics.Metrics {
				p.logger.InfoContext(ctx, logMsgMetricRecorded, logAttrMetric, m.Name, logAttrDataPoints, dataPointCount(m.Data))
			}
		}
	}

	return errors.Join(collectErr, p.TracerProvider.Shutdown(ctx), p.MeterProvider.Shutdown(ctx))
}

func dataPointCount(data metricdata.Aggregation) int {
	switch d := data.(type) {
	case metricdata.Histogram[float64]:
		return len(d.DataPoints)
	case metricdata.Sum[int64]:
		return len(d.DataPoints)
	case metricdata.Gauge[float64]:
		return len(d.DataPoints)
	default:
		return 0
	}
}

// spanLogExporter writes every ended span as one log record.
type spanLogExporter struct {
	logger *slog.Logger
}

func (e spanLogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		args := []any{
			logAttrSpan, span.Name(),
			logAttrTraceID, span.SpanContext().TraceID().String(),
			logAttrStatus, span.Status().Code.String(),
			logAttrDurationMS, span.EndTime().Sub(span.StartTime()).Milliseconds(),
		}

		for _, kv := range span.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}

		e.logger.InfoContext(ctx, logMsgSpanFinished, args...)
	}

	return nil
}

func (e spanLogExporter) Shutdown(context.Context) error {
	return nil
}
