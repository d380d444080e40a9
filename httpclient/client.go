package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetchkit/internal/tracking"
	"github.com/gaborage/go-fetchkit/logger"
	"github.com/gaborage/go-fetchkit/retry"
	"github.com/gaborage/go-fetchkit/trace"
)

const (
	// DefaultTimeout bounds a single call when Config.Timeout is unset.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries gives CallWithRetry three attempts in total.
	DefaultMaxRetries = retry.DefaultMaxAttempts - 1
	// DefaultRetryDelay is the fixed wait between CallWithRetry attempts.
	DefaultRetryDelay = retry.DefaultDelay
)

// Client performs outbound calls. It is safe for concurrent use.
type Client struct {
	transport Transport
	logger    logger.Logger
	config    *Config
	defaults  RequestOptions
	limiter   *rate.Limiter
	metrics   *tracking.ClientMetrics
	sink      ErrorSink

	callCount    atomic.Int64
	totalElapsed atomic.Int64
}

// DefaultConfig returns the configuration used when New receives nil.
func DefaultConfig() *Config {
	return &Config{
		Timeout:            DefaultTimeout,
		MaxRetries:         DefaultMaxRetries,
		RetryDelay:         DefaultRetryDelay,
		MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
	}
}

// New creates a client. A nil log discards output; a nil cfg selects DefaultConfig.
func New(log logger.Logger, cfg *Config) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	// Defaults go on a copy; the caller's Config is left as passed.
	cfgCopy := *cfg
	cfg = &cfgCopy
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPayloadLogBytes <= 0 {
		cfg.MaxPayloadLogBytes = defaultMaxPayloadLogBytes
	}

	c := &Client{
		transport: cfg.Transport,
		logger:    log,
		config:    cfg,
		defaults:  cfg.defaults(),
		limiter:   newLimiter(cfg),
		metrics:   tracking.NewClientMetrics(cfg.MeterProvider),
		sink:      cfg.ErrorSink,
	}
	if c.transport == nil {
		c.transport = newDefaultTransport(cfg)
	}
	if c.sink == nil {
		c.sink = c.logError
	}
	return c
}

// Builder configures a Client fluently.
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder starts from DefaultConfig.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{config: DefaultConfig(), logger: log}
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the CallWithRetry defaults.
func (b *Builder) WithRetries(maxRetries int, retryDelay time.Duration) *Builder {
	b.config.MaxRetries = maxRetries
	b.config.RetryDelay = retryDelay
	return b
}

// WithBasicAuth sets credentials for calls that do not supply their own Authorization header.
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a header to the client defaults, starting from
// Content-Type: application/json.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	if b.config.DefaultHeaders == nil {
		b.config.DefaultHeaders = DefaultRequestOptions().Headers
	}
	b.config.DefaultHeaders[key] = value
	return b
}

func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

func (b *Builder) WithTransport(t Transport) *Builder {
	b.config.Transport = t
	return b
}

func (b *Builder) WithErrorSink(sink ErrorSink) *Builder {
	b.config.ErrorSink = sink
	return b
}

// WithRateLimit caps the client at perSecond calls with the given burst.
func (b *Builder) WithRateLimit(perSecond float64, burst int) *Builder {
	b.config.RateLimit = perSecond
	b.config.RateBurst = burst
	return b
}

// WithPayloadLogging enables debug payload logs capped at maxBytes.
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// WithRequestID enables correlation id propagation on header (X-Request-ID when empty).
func (b *Builder) WithRequestID(header string) *Builder {
	b.config.PropagateRequestID = true
	b.config.TraceIDHeader = header
	return b
}

func (b *Builder) WithW3CTrace() *Builder {
	b.config.EnableW3CTrace = true
	return b
}

func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.config.MeterProvider = mp
	return b
}

// Build creates the client.
func (b *Builder) Build() *Client {
	return New(b.logger, b.config)
}

// Stats returns the number of calls started and their total elapsed time.
func (c *Client) Stats() Stats {
	return Stats{
		ElapsedTime: time.Duration(c.totalElapsed.Load()),
		CallCount:   c.callCount.Load(),
	}
}

// Config returns the client configuration. It must not be modified.
func (c *Client) Config() *Config { return c.config }

// Call performs one request and decodes the response body as JSON into a
// map[string]any, []any, float64, string, bool or nil.
func (c *Client) Call(ctx context.Context, url string, opts *RequestOptions) (any, error) {
	return CallJSON[any](ctx, c, url, opts)
}

// CallJSON performs one request and decodes the JSON body into T.
// An empty body is a ParseError.
func CallJSON[T any](ctx context.Context, c *Client, url string, opts *RequestOptions) (T, error) {
	var out T
	resp, err := c.Do(ctx, url, opts)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		var zero T
		return zero, c.fail(ctx, NewParseError(resp.Body, err))
	}
	return out, nil
}

// CallWithRetry runs Call under a retry policy. Without retryOpts the policy
// comes from Config.MaxRetries and Config.RetryDelay.
func (c *Client) CallWithRetry(ctx context.Context, url string, opts *RequestOptions, retryOpts ...retry.Option) (any, error) {
	policy := []retry.Option{retry.WithLogger(c.logger), retry.WithMeterProvider(c.config.MeterProvider)}
	if len(retryOpts) == 0 {
		policy = append(policy,
			retry.WithMaxAttempts(c.config.MaxRetries+1),
			retry.WithDelay(c.config.RetryDelay))
	}
	policy = append(policy, retryOpts...)

	return retry.Do(ctx, func(ctx context.Context) (any, error) {
		return c.Call(ctx, url, opts)
	}, policy...)
}

// Do performs one request and returns the raw response. A non-2xx status
// returns both the response and a StatusError.
func (c *Client) Do(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	start := time.Now()
	callCount := c.callCount.Add(1)
	merged := MergeOptions(c.defaults, opts)

	httpReq, requestID, err := c.buildRequest(ctx, url, merged)
	if err != nil {
		return nil, c.finish(ctx, merged.Method, 0, start, err)
	}

	c.logRequest(httpReq, merged.Body, requestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.finish(ctx, merged.Method, 0, start, NewNetworkError("rate limiter wait failed", err))
		}
	}

	httpResp, err := c.transport.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, c.finish(ctx, merged.Method, 0, start, NewTimeoutError("request timeout", c.config.Timeout, err))
		}
		return nil, c.finish(ctx, merged.Method, 0, start, NewNetworkError("request execution failed", err))
	}

	resp, err := c.buildResponse(ctx, start, callCount, httpReq, httpResp)
	if err != nil {
		return nil, c.finish(ctx, merged.Method, httpResp.StatusCode, start, err)
	}
	c.logResponse(resp, requestID)

	if !IsSuccessStatus(resp.StatusCode) {
		return resp, c.finish(ctx, merged.Method, resp.StatusCode, start, NewHTTPError(resp.StatusCode, resp.Body))
	}
	c.finish(ctx, merged.Method, resp.StatusCode, start, nil)
	return resp, nil
}

// buildRequest applies merged options, trace headers and request interceptors.
func (c *Client) buildRequest(ctx context.Context, url string, opts RequestOptions) (*nethttp.Request, string, error) {
	if strings.TrimSpace(url) == "" {
		return nil, "", NewValidationError("URL cannot be empty", "url", nil)
	}

	var body io.Reader = nethttp.NoBody
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, opts.Method, url, body)
	if err != nil {
		return nil, "", NewValidationError("failed to create HTTP request", "url", err)
	}

	for key, value := range opts.Headers {
		httpReq.Header.Set(key, value)
	}
	if opts.Auth != nil && httpReq.Header.Get(headerAuthorization) == "" {
		httpReq.SetBasicAuth(opts.Auth.Username, opts.Auth.Password)
	}

	var requestID string
	if c.config.PropagateRequestID {
		requestID = trace.InjectRequestID(ctx, httpReq.Header, c.config.TraceIDHeader)
	}
	if c.config.EnableW3CTrace {
		trace.InjectTraceContext(ctx, httpReq.Header)
	}

	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, "", NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	return httpReq, requestID, nil
}

// buildResponse runs response interceptors and reads the body.
func (c *Client) buildResponse(ctx context.Context, start time.Time, callCount int64, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
	}, nil
}

// finish records timing and metrics for a call and hands err, if any, to the sink.
func (c *Client) finish(ctx context.Context, method string, status int, start time.Time, err error) error {
	elapsed := time.Since(start)
	c.totalElapsed.Add(int64(elapsed))

	var errType string
	if err != nil {
		if ce, ok := err.(ClientError); ok {
			errType = string(ce.Type())
		}
	}
	c.metrics.RecordCall(ctx, method, status, errType, elapsed)

	if err != nil {
		return c.fail(ctx, err)
	}
	return nil
}

// fail reports err to the sink and returns it unchanged.
func (c *Client) fail(ctx context.Context, err error) error {
	c.sink(ctx, err)
	return err
}

func (c *Client) logError(_ context.Context, err error) {
	event := c.logger.Error().Err(err)
	if ce, ok := err.(ClientError); ok {
		event = event.Str("error_type", string(ce.Type()))
	}
	event.Msg("HTTP call failed")
}
