package testdoubles

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

// MetricsCollectorSpy captures metrics calls for testing.
// It implements entitystore.ContextualMetricsCollector, so the context-aware calls are captured as well.
type MetricsCollectorSpy struct {
	mu       sync.Mutex
	records  []SpyMetricRecord
	contexts int
}

// SpyMetricRecord represents one recorded metric call. Kind is "duration", "counter", or "value".
type SpyMetricRecord struct {
	Kind     string
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "duration", Metric: metric, Duration: duration, Labels: labels}, false)
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "counter", Metric: metric, Labels: labels}, false)
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "value", Metric: metric, Value: value, Labels: labels}, false)
}

func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "duration", Metric: metric, Duration: duration, Labels: labels}, true)
}

func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "counter", Metric: metric, Labels: labels}, true)
}

func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: "value", Metric: metric, Value: value, Labels: labels}, true)
}

func (s *MetricsCollectorSpy) record(record SpyMetricRecord, withContext bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// copy labels to avoid external modifications
	record.Labels = maps.Clone(record.Labels)
	s.records = append(s.records, record)

	if withContext {
		s.contexts++
	}
}

// GetRecords returns a copy of all records for the given kind and metric name.
func (s *MetricsCollectorSpy) GetRecords(kind, metric string) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []SpyMetricRecord
	for _, record := range s.records {
		if record.Kind == kind && record.Metric == metric {
			records = append(records, record)
		}
	}

	return records
}

// ContextualCallCount returns how many calls used the context-aware methods.
func (s *MetricsCollectorSpy) ContextualCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.contexts
}

// HasRecord checks if a record of kind and metric exists whose labels contain all the given labels.
func (s *MetricsCollectorSpy) HasRecord(kind, metric string, labels map[string]string) bool {
	for _, record := range s.GetRecords(kind, metric) {
		if containsLabels(record.Labels, labels) {
			return true
		}
	}

	return false
}

// Reset clears all captured records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.contexts = 0
}

func containsLabels(actual, expected map[string]string) bool {
	for key, value := range expected {
		if actual[key] != value {
			return false
		}
	}

	return true
}

var _ entitystore.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
