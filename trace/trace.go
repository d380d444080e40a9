// Package trace carries request correlation ids and W3C trace context
// through context.Context for outbound calls.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"io"
	nethttp "net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"
	traceStateKey  contextKey = "tracestate"

	// HeaderXRequestID is the default correlation header.
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name.
	HeaderTraceParent = "traceparent"
	// HeaderTraceState is the W3C tracestate header name.
	HeaderTraceState = "tracestate"
)

// WithRequestID stores id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored on ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// EnsureRequestID returns the id on ctx or a new random UUID.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// WithTraceParent stores a W3C traceparent value on ctx.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns the traceparent stored on ctx.
func ParentFromContext(ctx context.Context) (string, bool) {
	tp, ok := ctx.Value(traceParentKey).(string)
	return tp, ok && tp != ""
}

// WithTraceState stores a W3C tracestate value on ctx.
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return context.WithValue(ctx, traceStateKey, traceState)
}

// StateFromContext returns the tracestate stored on ctx.
func StateFromContext(ctx context.Context) (string, bool) {
	ts, ok := ctx.Value(traceStateKey).(string)
	return ts, ok && ts != ""
}

// GenerateTraceParent builds a sampled version-00 traceparent with random ids:
// "00-<32 hex>-<16 hex>-01".
func GenerateTraceParent() string {
	traceID := randomID(16)
	spanID := randomID(8)
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// randomID never returns an all-zero id, which W3C defines as invalid.
func randomID(n int) []byte {
	return readID(crand.Reader, n)
}

// readID falls back to zero bytes when r fails, then forces a non-zero id.
func readID(r io.Reader, n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		clear(b)
	}
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	b[n-1] = 0x01
	return b
}

// InjectRequestID sets header (X-Request-ID when empty) on h unless already
// present, and returns the id in effect.
func InjectRequestID(ctx context.Context, h nethttp.Header, header string) string {
	if header == "" {
		header = HeaderXRequestID
	}
	if id := h.Get(header); id != "" {
		return id
	}
	id := EnsureRequestID(ctx)
	h.Set(header, id)
	return id
}

// InjectTraceContext propagates traceparent and tracestate from ctx onto h,
// generating a traceparent when ctx has none. An existing traceparent on h is kept.
func InjectTraceContext(ctx context.Context, h nethttp.Header) {
	if h.Get(HeaderTraceParent) != "" {
		return
	}
	tp, ok := ParentFromContext(ctx)
	if !ok {
		h.Set(HeaderTraceParent, GenerateTraceParent())
		return
	}
	h.Set(HeaderTraceParent, tp)
	if ts, ok := StateFromContext(ctx); ok {
		h.Set(HeaderTraceState, ts)
	}
}
