// Package tracking owns the OpenTelemetry instruments recorded by the cache,
// retry and httpclient packages.
package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MeterName is the instrumentation scope of every fetchkit instrument.
	MeterName = "go-fetchkit"

	metricCacheHit      = "cache.hit"
	metricCacheMiss     = "cache.miss"
	metricCacheEntries  = "cache.entries"
	metricRetryAttempts = "retry.attempts"
	metricRetryExhaust  = "retry.exhausted"
	metricClientLatency = "http.client.request.duration"

	attrCacheName     = "cache.name"
	attrOutcome       = "outcome"
	attrRequestMethod = "http.request.method"
	attrStatusCode    = "http.response.status_code"
	attrErrorType     = "error.type"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var clientDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
}

// Metric creation failures never break the caller; the instrument stays nil.
func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to initialize metric %s: %v\n", name, err)
	}
}

func meter(mp metric.MeterProvider) metric.Meter {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return mp.Meter(MeterName)
}

// CacheMetrics records lookups against one named cache.
type CacheMetrics struct {
	hits    metric.Int64Counter
	misses  metric.Int64Counter
	entries metric.Int64UpDownCounter
	attrs   metric.MeasurementOption
}

// NewCacheMetrics creates the cache instruments. A nil provider uses the global one.
func NewCacheMetrics(mp metric.MeterProvider, cacheName string) *CacheMetrics {
	m := meter(mp)
	cm := &CacheMetrics{
		attrs: metric.WithAttributeSet(attribute.NewSet(attribute.String(attrCacheName, cacheName))),
	}

	var err error
	cm.hits, err = m.Int64Counter(metricCacheHit,
		metric.WithDescription("Cache lookups served from a stored entry"),
		metric.WithUnit("{lookup}"))
	logMetricError(metricCacheHit, err)

	cm.misses, err = m.Int64Counter(metricCacheMiss,
		metric.WithDescription("Cache lookups that invoked the producer"),
		metric.WithUnit("{lookup}"))
	logMetricError(metricCacheMiss, err)

	cm.entries, err = m.Int64UpDownCounter(metricCacheEntries,
		metric.WithDescription("Entries currently stored"),
		metric.WithUnit("{entry}"))
	logMetricError(metricCacheEntries, err)

	return cm
}

func (cm *CacheMetrics) RecordHit(ctx context.Context) {
	if cm != nil && cm.hits != nil {
		cm.hits.Add(ctx, 1, cm.attrs)
	}
}

func (cm *CacheMetrics) RecordMiss(ctx context.Context) {
	if cm != nil && cm.misses != nil {
		cm.misses.Add(ctx, 1, cm.attrs)
	}
}

// AddEntries adjusts the stored entry count by delta.
func (cm *CacheMetrics) AddEntries(ctx context.Context, delta int64) {
	if cm != nil && cm.entries != nil && delta != 0 {
		cm.entries.Add(ctx, delta, cm.attrs)
	}
}

// RetryMetrics records attempts made by a retry policy.
type RetryMetrics struct {
	attempts  metric.Int64Counter
	exhausted metric.Int64Counter
}

// NewRetryMetrics creates the retry instruments. A nil provider uses the global one.
func NewRetryMetrics(mp metric.MeterProvider) *RetryMetrics {
	m := meter(mp)
	rm := &RetryMetrics{}

	var err error
	rm.attempts, err = m.Int64Counter(metricRetryAttempts,
		metric.WithDescription("Operation attempts by outcome"),
		metric.WithUnit("{attempt}"))
	logMetricError(metricRetryAttempts, err)

	rm.exhausted, err = m.Int64Counter(metricRetryExhaust,
		metric.WithDescription("Operations that failed on every permitted attempt"),
		metric.WithUnit("{operation}"))
	logMetricError(metricRetryExhaust, err)

	return rm
}

// RecordAttempt counts one attempt, tagged success or failure.
func (rm *RetryMetrics) RecordAttempt(ctx context.Context, err error) {
	if rm == nil || rm.attempts == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	rm.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

func (rm *RetryMetrics) RecordExhausted(ctx context.Context) {
	if rm != nil && rm.exhausted != nil {
		rm.exhausted.Add(ctx, 1)
	}
}

// ClientMetrics records outbound request latency.
type ClientMetrics struct {
	duration metric.Float64Histogram
}

// NewClientMetrics creates the client histogram. A nil provider uses the global one.
func NewClientMetrics(mp metric.MeterProvider) *ClientMetrics {
	m := meter(mp)
	h, err := m.Float64Histogram(metricClientLatency,
		metric.WithDescription("Duration of outbound HTTP calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(clientDurationBuckets...))
	logMetricError(metricClientLatency, err)
	return &ClientMetrics{duration: h}
}

// RecordCall records one call. statusCode is 0 when no response was received;
// errorType is empty on success.
func (cm *ClientMetrics) RecordCall(ctx context.Context, method string, statusCode int, errorType string, elapsed time.Duration) {
	if cm == nil || cm.duration == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(attrRequestMethod, method)}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, statusCode))
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errorType))
	}
	cm.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}
