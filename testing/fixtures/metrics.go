package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MetricReader pairs a meter provider with a manual reader for assertions.
type MetricReader struct {
	Provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// NewMetricReader returns an in-memory meter provider that is shut down with the test.
func NewMetricReader(t *testing.T) *MetricReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return &MetricReader{Provider: provider, reader: reader}
}

// Collect returns the current metrics snapshot.
func (m *MetricReader) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, m.reader.Collect(context.Background(), &rm))
	return rm
}

// Find returns the metric with the given name, or false.
func (m *MetricReader) Find(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()
	rm := m.Collect(t)
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name == name {
				return metric, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// Int64Sum returns the total of an int64 counter or up-down counter whose data
// points carry every attribute in match. Missing metrics sum to zero.
func (m *MetricReader) Int64Sum(t *testing.T, name string, match ...attribute.KeyValue) int64 {
	t.Helper()
	metric, ok := m.Find(t, name)
	if !ok {
		return 0
	}
	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		if hasAttributes(dp.Attributes, match) {
			total += dp.Value
		}
	}
	return total
}

// HistogramCount returns the number of recorded values across all data points.
func (m *MetricReader) HistogramCount(t *testing.T, name string, match ...attribute.KeyValue) uint64 {
	t.Helper()
	metric, ok := m.Find(t, name)
	if !ok {
		return 0
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", name)

	var count uint64
	for _, dp := range hist.DataPoints {
		if hasAttributes(dp.Attributes, match) {
			count += dp.Count
		}
	}
	return count
}

func hasAttributes(set attribute.Set, match []attribute.KeyValue) bool {
	for _, kv := range match {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}
