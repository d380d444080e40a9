package httpclient

import (
	"context"
	"errors"
	"math"
	"net"
	nethttp "net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// newDefaultTransport returns an *http.Client whose round trips emit
// OpenTelemetry client spans.
func newDefaultTransport(cfg *Config) Transport {
	return &nethttp.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(nethttp.DefaultTransport),
	}
}

// newLimiter returns nil when rate limiting is disabled.
func newLimiter(cfg *Config) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = max(1, int(math.Ceil(cfg.RateLimit)))
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
