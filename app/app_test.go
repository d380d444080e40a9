package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-fetchkit/config"
	"github.com/gaborage/go-fetchkit/httpclient"
	"github.com/gaborage/go-fetchkit/observability"
	"github.com/gaborage/go-fetchkit/retry"
	"github.com/gaborage/go-fetchkit/testing/fixtures"
	"github.com/gaborage/go-fetchkit/testing/mocks"
)

const testURL = "https://api.example.com/items/1"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, transport *mocks.MockTransport) (*App, *fixtures.RecordingLogger) {
	t.Helper()
	log := fixtures.NewRecordingLogger()
	a, err := NewWithConfig(testConfig(t), &Options{
		Logger:        log,
		Transport:     transport,
		Observability: []observability.Option{observability.WithoutGlobal()},
	})
	require.NoError(t, err)
	return a, log
}

func TestNewWithConfig(t *testing.T) {
	a, log := newTestApp(t, &mocks.MockTransport{})

	assert.NotNil(t, a.Client())
	assert.Same(t, log, a.Logger())
	assert.Equal(t, "fetchkit", a.Config().App.Name)
	assert.NotNil(t, a.MeterProvider())
	assert.Equal(t, 2, a.Client().Config().MaxRetries)

	_, found := log.FindByMessage("Starting fetchkit")
	assert.True(t, found)

	require.NoError(t, a.Shutdown(context.Background()))
	_, found = log.FindByMessage("Shutdown complete")
	assert.True(t, found)
}

func TestNewWithConfigInvalidObservability(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observability.Enabled = true
	cfg.Observability.Trace.SampleRate = observability.Float64Ptr(3)

	_, err := NewWithConfig(cfg, &Options{Logger: fixtures.NewRecordingLogger()})
	assert.ErrorIs(t, err, observability.ErrInvalidSampleRate)
}

func TestAppClientUsesTransport(t *testing.T) {
	transport := &mocks.MockTransport{}
	transport.On("Do", mock.Anything).Return(mocks.JSONResponse(http.StatusOK, `{"id":1}`), nil).Once()
	a, _ := newTestApp(t, transport)

	got, err := a.Client().Call(context.Background(), testURL, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(1)}, got)
	transport.AssertExpectations(t)
}

func TestAppClientHeadersAndStatus(t *testing.T) {
	t.Run("bare_get_sends_json_content_type_only", func(t *testing.T) {
		transport := &mocks.MockTransport{}
		transport.On("Do", mock.Anything).Return(mocks.JSONResponse(http.StatusOK, `{}`), nil).Once()
		a, _ := newTestApp(t, transport)

		_, err := a.Client().Call(context.Background(), testURL, nil)
		require.NoError(t, err)

		reqs := transport.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodGet, reqs[0].Method)
		assert.Equal(t, http.Header{"Content-Type": []string{"application/json"}}, reqs[0].Header)
	})

	t.Run("caller_headers_replace_defaults", func(t *testing.T) {
		transport := &mocks.MockTransport{}
		transport.On("Do", mock.Anything).Return(mocks.JSONResponse(http.StatusOK, `{}`), nil).Once()
		a, _ := newTestApp(t, transport)

		_, err := a.Client().Call(context.Background(), testURL, &httpclient.RequestOptions{
			Method:  http.MethodPost,
			Headers: map[string]string{"Authorization": "x"},
		})
		require.NoError(t, err)

		reqs := transport.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPost, reqs[0].Method)
		assert.Equal(t, http.Header{"Authorization": []string{"x"}}, reqs[0].Header)
	})

	t.Run("not_found_fails_with_status", func(t *testing.T) {
		transport := &mocks.MockTransport{}
		transport.On("Do", mock.Anything).Return(mocks.JSONResponse(http.StatusNotFound, `{}`), nil).Once()
		a, _ := newTestApp(t, transport)

		got, err := a.Client().Call(context.Background(), testURL, nil)
		assert.Nil(t, got)
		assert.EqualError(t, err, "HTTP error! Status: 404")
		transport.AssertExpectations(t)
	})
}

func TestRetryPolicy(t *testing.T) {
	a, _ := newTestApp(t, &mocks.MockTransport{})
	clock := fixtures.NewManualClock(time.Time{})

	p := a.RetryPolicy(retry.WithClock(clock))
	assert.Equal(t, 3, p.MaxAttempts())
	assert.Equal(t, time.Second, p.Delay())

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
}

func TestNewCache(t *testing.T) {
	a, _ := newTestApp(t, &mocks.MockTransport{})

	assert.Equal(t, "default", NewCache[int](a).Name())
	assert.Equal(t, "users", NewCache[int](a, "users").Name())

	c := NewCache[string](a)
	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNewHook(t *testing.T) {
	transport := &mocks.MockTransport{}
	transport.On("Do", mock.Anything).Return(mocks.JSONResponse(http.StatusOK, `{"id":1}`), nil).Once()
	a, _ := newTestApp(t, transport)

	h := NewHook[map[string]any](a)
	h.Render(context.Background(), testURL, nil)
	h.Wait()

	s := h.State()
	require.True(t, s.Succeeded())
	assert.Equal(t, map[string]any{"id": float64(1)}, s.Data)
}
