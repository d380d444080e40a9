package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMessage = "test message"
	testURL     = "https://api.example.com/users"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name          string
		level         string
		expectedLevel zerolog.Level
	}{
		{name: "debug", level: "debug", expectedLevel: zerolog.DebugLevel},
		{name: "warn", level: "warn", expectedLevel: zerolog.WarnLevel},
		{name: "invalid_defaults_to_info", level: "loud", expectedLevel: zerolog.InfoLevel},
		{name: "empty_defaults_to_info", level: "", expectedLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&buf, tt.level, false, nil)
			assert.Equal(t, tt.expectedLevel, l.zlog.GetLevel())
		})
	}
}

func TestEventFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", false, nil)

	l.Info().
		Str("url", testURL).
		Int("status", 200).
		Int64("body_size", 42).
		Dur("elapsed", 1500*time.Millisecond).
		Err(errors.New("boom")).
		Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, testMessage, entry["message"])
	assert.Equal(t, testURL, entry["url"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 42, entry["body_size"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "caller")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", false, nil)

	l.Info().Msg("dropped")
	l.Debug().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Warn().Msgf("kept %d", 1)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "kept 1", entry["message"])
}

func TestSensitiveFieldsAreMasked(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", false, nil)

	l.Info().
		Str("authorization", "Bearer abc").
		Interface("headers", map[string]string{"Authorization": "Bearer abc", "Accept": "*/*"}).
		Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, DefaultMaskValue, entry["authorization"])
	headers, ok := entry["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, DefaultMaskValue, headers["Authorization"])
	assert.Equal(t, "*/*", headers["Accept"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", false, nil)

	child := l.WithFields(map[string]any{"component": "httpclient", "api_token": "t0k3n"})
	child.Info().Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "httpclient", entry["component"])
	assert.Equal(t, DefaultMaskValue, entry["api_token"])
}

func TestWithContext(t *testing.T) {
	var base, ctxBuf bytes.Buffer
	l := NewWithWriter(&base, "info", false, nil)

	t.Run("non_context_returns_same_logger", func(t *testing.T) {
		assert.Same(t, l, l.WithContext("not a context"))
	})

	t.Run("context_without_logger_returns_same_logger", func(t *testing.T) {
		assert.Same(t, l, l.WithContext(context.Background()))
	})

	t.Run("context_logger_is_used", func(t *testing.T) {
		zl := zerolog.New(&ctxBuf)
		ctx := zl.WithContext(context.Background())

		l.WithContext(ctx).Info().Msg(testMessage)
		assert.Empty(t, base.String())
		assert.Contains(t, ctxBuf.String(), testMessage)
	})
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Info().Str("k", "v").Msg(testMessage)
		l.WithFields(map[string]any{"a": 1}).Error().Msg(testMessage)
	})
}
