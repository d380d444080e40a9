// Package httpclient wraps a single outbound HTTP call that returns a decoded
// JSON value.
//
// Caller options are merged over the client defaults (GET and
// Content-Type: application/json) with a shallow merge: every option the caller
// sets replaces the default wholesale. In particular a caller Headers map
// replaces the default headers map instead of being merged into it.
//
// A transport failure, a non-2xx status and an undecodable body are each
// reported as a typed ClientError. Every failure is passed to Config.ErrorSink
// before it is returned.
package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-fetchkit/trace"
)

const (
	// HeaderXRequestID is the default correlation header.
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name.
	HeaderTraceParent = trace.HeaderTraceParent

	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	mimeJSON            = "application/json"
)

// Transport issues one HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// RequestOptions are the per-call settings merged over the client defaults.
// A zero field means "use the default"; a non-nil Headers map, even an empty
// one, replaces the default headers entirely.
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// BasicAuth carries credentials sent with the Authorization header.
// An Authorization entry in the call's headers takes precedence.
type BasicAuth struct {
	Username string
	Password string
}

// Response is a received HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats describes call execution. ElapsedTime covers one call; CallCount is
// the client-wide call ordinal.
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
}

// RequestInterceptor runs before the request is sent.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor runs after a response is received and before its body is read.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// ErrorSink receives every failure before it is returned to the caller.
// It must not block; its outcome does not affect the call.
type ErrorSink func(ctx context.Context, err error)

// Config holds the client configuration.
type Config struct {
	Timeout time.Duration
	// MaxRetries and RetryDelay drive CallWithRetry when no retry options are given.
	// The call is attempted MaxRetries+1 times.
	MaxRetries int
	RetryDelay time.Duration

	// DefaultHeaders replaces {"Content-Type": "application/json"} when non-nil.
	DefaultHeaders map[string]string
	// BasicAuth is used for calls whose options carry no Auth and whose
	// headers carry no Authorization.
	BasicAuth *BasicAuth

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor

	// LogPayloads enables debug-level logging of headers and body previews.
	LogPayloads bool
	// MaxPayloadLogBytes caps logged body bytes (default 1024).
	MaxPayloadLogBytes int

	// PropagateRequestID sets TraceIDHeader (X-Request-ID when empty) on every
	// call from the id carried by ctx, generating one when absent.
	PropagateRequestID bool
	TraceIDHeader      string
	// EnableW3CTrace adds traceparent/tracestate from ctx or a generated traceparent.
	EnableW3CTrace bool

	// RateLimit caps calls per second across the client; zero disables limiting.
	RateLimit float64
	RateBurst int

	// Transport overrides the default otelhttp-instrumented *http.Client.
	Transport Transport
	// MeterProvider receives client metrics; nil uses the global provider.
	MeterProvider metric.MeterProvider
	// ErrorSink overrides the default sink, which logs at error level.
	ErrorSink ErrorSink
}

// WithRequestID stores a correlation id on ctx for propagation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return trace.WithRequestID(ctx, id)
}

// WithTraceParent stores a W3C traceparent on ctx for propagation.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return trace.WithTraceParent(ctx, traceParent)
}

// NewRequestIDInterceptor sets header (X-Request-ID when empty) from ctx when
// the request does not carry it yet. It is an explicit alternative to
// Config.PropagateRequestID.
func NewRequestIDInterceptor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, trace.EnsureRequestID(ctx))
		}
		return nil
	}
}
