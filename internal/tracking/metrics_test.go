package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaborage/go-fetchkit/testing/fixtures"
)

const testCacheName = "users"

func TestCacheMetrics(t *testing.T) {
	mr := fixtures.NewMetricReader(t)
	cm := NewCacheMetrics(mr.Provider, testCacheName)
	ctx := context.Background()

	cm.RecordMiss(ctx)
	cm.AddEntries(ctx, 1)
	cm.RecordHit(ctx)
	cm.RecordHit(ctx)

	name := attribute.String(attrCacheName, testCacheName)
	assert.Equal(t, int64(2), mr.Int64Sum(t, metricCacheHit, name))
	assert.Equal(t, int64(1), mr.Int64Sum(t, metricCacheMiss, name))
	assert.Equal(t, int64(1), mr.Int64Sum(t, metricCacheEntries, name))

	cm.AddEntries(ctx, -1)
	assert.Equal(t, int64(0), mr.Int64Sum(t, metricCacheEntries, name))
}

func TestRetryMetrics(t *testing.T) {
	mr := fixtures.NewMetricReader(t)
	rm := NewRetryMetrics(mr.Provider)
	ctx := context.Background()

	rm.RecordAttempt(ctx, errors.New("boom"))
	rm.RecordAttempt(ctx, errors.New("boom"))
	rm.RecordAttempt(ctx, nil)
	rm.RecordExhausted(ctx)

	assert.Equal(t, int64(2), mr.Int64Sum(t, metricRetryAttempts, attribute.String(attrOutcome, outcomeFailure)))
	assert.Equal(t, int64(1), mr.Int64Sum(t, metricRetryAttempts, attribute.String(attrOutcome, outcomeSuccess)))
	assert.Equal(t, int64(1), mr.Int64Sum(t, metricRetryExhaust))
}

func TestClientMetrics(t *testing.T) {
	mr := fixtures.NewMetricReader(t)
	cm := NewClientMetrics(mr.Provider)
	ctx := context.Background()

	cm.RecordCall(ctx, "GET", 200, "", 10*time.Millisecond)
	cm.RecordCall(ctx, "GET", 404, "http", 5*time.Millisecond)
	cm.RecordCall(ctx, "POST", 0, "network", time.Millisecond)

	assert.Equal(t, uint64(3), mr.HistogramCount(t, metricClientLatency))
	assert.Equal(t, uint64(2), mr.HistogramCount(t, metricClientLatency, attribute.String(attrRequestMethod, "GET")))
	assert.Equal(t, uint64(1), mr.HistogramCount(t, metricClientLatency, attribute.String(attrErrorType, "network")))
}

func TestNilReceiversAreSafe(t *testing.T) {
	var cm *CacheMetrics
	var rm *RetryMetrics
	var hm *ClientMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		cm.RecordHit(ctx)
		cm.RecordMiss(ctx)
		cm.AddEntries(ctx, 1)
		rm.RecordAttempt(ctx, nil)
		rm.RecordExhausted(ctx)
		hm.RecordCall(ctx, "GET", 200, "", time.Millisecond)
	})
}
