package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaborage/go-fetchkit/testing/fixtures"
)

const (
	testKey      = "user:1"
	testOtherKey = "user:2"
	testValue    = "ada"
)

var errProducer = errors.New("producer failed")

func constProducer(v string, calls *int32) Producer[string] {
	return func(context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func mustNotRun(t *testing.T) Producer[string] {
	return func(context.Context) (string, error) {
		t.Fatal("producer must not be invoked on a hit")
		return "", errors.New("unreachable")
	}
}

func TestGetOrFetchInvokesProducerOnce(t *testing.T) {
	c := New[string]()
	ctx := context.Background()
	var calls int32

	v, err := c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))
	require.NoError(t, err)
	assert.Equal(t, testValue, v)
	assert.Equal(t, int32(1), calls)

	v, err = c.GetOrFetch(ctx, testKey, mustNotRun(t))
	require.NoError(t, err)
	assert.Equal(t, testValue, v)
	assert.Equal(t, int32(1), calls)
}

func TestGetOrFetchFailureStoresNothing(t *testing.T) {
	c := New[string]()
	ctx := context.Background()

	_, err := c.GetOrFetch(ctx, testKey, func(context.Context) (string, error) {
		return "", errProducer
	})
	require.ErrorIs(t, err, errProducer)
	assert.Equal(t, 0, c.Len())

	var calls int32
	v, err := c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))
	require.NoError(t, err)
	assert.Equal(t, testValue, v)
	assert.Equal(t, int32(1), calls)
}

func TestGetOrFetchErrorIsUnchanged(t *testing.T) {
	c := New[int]()
	_, err := c.GetOrFetch(context.Background(), testKey, func(context.Context) (int, error) {
		return 0, errProducer
	})
	assert.Same(t, errProducer, err)
}

func TestGetOrFetchNilProducer(t *testing.T) {
	c := New[string]()

	_, err := c.GetOrFetch(context.Background(), testKey, nil)
	require.ErrorIs(t, err, ErrNilProducer)

	var calls int32
	_, err = c.GetOrFetch(context.Background(), testKey, constProducer(testValue, &calls))
	require.NoError(t, err)

	v, err := c.GetOrFetch(context.Background(), testKey, nil)
	require.NoError(t, err)
	assert.Equal(t, testValue, v)
}

func TestKeysAreIndependent(t *testing.T) {
	c := New[string]()
	ctx := context.Background()
	var calls int32

	_, _ = c.GetOrFetch(ctx, testKey, constProducer("a", &calls))
	v, err := c.GetOrFetch(ctx, testOtherKey, constProducer("b", &calls))

	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, int32(2), calls)
	assert.Equal(t, []string{testKey, testOtherKey}, c.Keys())
	assert.Equal(t, []Entry[string]{
		{Key: testKey, Value: "a"},
		{Key: testOtherKey, Value: "b"},
	}, c.Entries())
}

func TestValuesAreStoredByReference(t *testing.T) {
	type user struct{ Name string }
	c := New[*user]()
	stored := &user{Name: testValue}

	_, err := c.GetOrFetch(context.Background(), testKey, func(context.Context) (*user, error) {
		return stored, nil
	})
	require.NoError(t, err)

	got, ok := c.Get(testKey)
	require.True(t, ok)
	assert.Same(t, stored, got)
}

func TestDeleteAndClear(t *testing.T) {
	c := New[string]()
	ctx := context.Background()
	var calls int32

	_, _ = c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))
	_, _ = c.GetOrFetch(ctx, testOtherKey, constProducer(testValue, &calls))
	require.Equal(t, 2, c.Len())

	c.Delete(testKey)
	c.Delete("missing")
	_, ok := c.Get(testKey)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	_, _ = c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))
	assert.Equal(t, int32(3), calls)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}

func TestConcurrentFirstLookupsAreNotCoalesced(t *testing.T) {
	c := New[string]()
	const callers = 8

	var calls int32
	start := make(chan struct{})
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(callers)

	producer := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		entered.Done()
		<-release
		return testValue, nil
	}

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := c.GetOrFetch(context.Background(), testKey, producer)
			assert.NoError(t, err)
			assert.Equal(t, testValue, v)
		}()
	}

	close(start)
	entered.Wait()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(callers), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, c.Len())
}

func TestCacheMetricsAndLogs(t *testing.T) {
	mr := fixtures.NewMetricReader(t)
	log := fixtures.NewRecordingLogger()
	c := New[string](WithName("users"), WithLogger(log), WithMeterProvider(mr.Provider))
	ctx := context.Background()
	var calls int32

	assert.Equal(t, "users", c.Name())

	_, _ = c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))
	_, _ = c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))
	_, _ = c.GetOrFetch(ctx, testKey, constProducer(testValue, &calls))

	name := attribute.String("cache.name", "users")
	assert.Equal(t, int64(2), mr.Int64Sum(t, "cache.hit", name))
	assert.Equal(t, int64(1), mr.Int64Sum(t, "cache.miss", name))
	assert.Equal(t, int64(1), mr.Int64Sum(t, "cache.entries", name))

	hit, ok := log.FindByMessage("Cache hit")
	require.True(t, ok)
	assert.Equal(t, "users", hit.Fields["cache"])
	assert.Equal(t, testKey, hit.Fields["key"])

	c.Clear()
	assert.Equal(t, int64(0), mr.Int64Sum(t, "cache.entries", name))
}

func TestWithNameIgnoresEmpty(t *testing.T) {
	c := New[string](WithName(""))
	assert.Equal(t, DefaultName, c.Name())
}
