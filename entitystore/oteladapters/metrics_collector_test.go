package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/oteladapters"
)

func newMetricsCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	byName := make(map[string]metricdata.Metrics)
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			byName[m.Name] = m
		}
	}

	return byName
}

func Test_MetricsCollector_RecordDuration_InSeconds(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()
	labels := map[string]string{"operation": "enumerate", "status": "success"}

	// act
	collector.RecordDuration("entitystore_query_duration_seconds", 150*time.Millisecond, labels)
	collector.RecordDurationContext(context.Background(), "entitystore_query_duration_seconds", 50*time.Millisecond, labels)

	// assert
	metrics := collect(t, reader)
	histogram, ok := metrics["entitystore_query_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(2), dataPoint.Count)
	assert.InDelta(t, 0.2, dataPoint.Sum, 0.001)
	assert.Equal(t, "s", metrics["entitystore_query_duration_seconds"].Unit)

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "enumerate"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter_PerLabelSet(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()

	// act
	collector.IncrementCounter("entitystore_errors_total", map[string]string{"operation": "enumerate"})
	collector.IncrementCounter("entitystore_errors_total", map[string]string{"operation": "enumerate"})
	collector.IncrementCounterContext(context.Background(), "entitystore_errors_total", map[string]string{"operation": "commit"})

	// assert
	sum, ok := collect(t, reader)["entitystore_errors_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)
	assert.True(t, sum.IsMonotonic)

	counts := make(map[string]int64)
	for _, dataPoint := range sum.DataPoints {
		operation, _ := dataPoint.Attributes.Value("operation")
		counts[operation.AsString()] = dataPoint.Value
	}

	assert.Equal(t, map[string]int64{"enumerate": 2, "commit": 1}, counts)
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// arrange
	collector, reader := newMetricsCollector()
	labels := map[string]string{"operation": "enumerate"}

	// act
	collector.RecordValue("entitystore_rows_fetched", 3, labels)
	collector.RecordValueContext(context.Background(), "entitystore_rows_fetched", 7, labels)

	// assert
	gauge, ok := collect(t, reader)["entitystore_rows_fetched"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 7, gauge.DataPoints[0].Value, 0)
}
