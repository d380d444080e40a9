package httpclient

import (
	"maps"
	nethttp "net/http"
)

// DefaultRequestOptions returns the built-in defaults: GET with
// Content-Type: application/json.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		Method:  nethttp.MethodGet,
		Headers: map[string]string{headerContentType: mimeJSON},
	}
}

// MergeOptions overlays opts on defaults one field at a time. Fields left at
// their zero value keep the default; set fields replace it wholesale. Headers
// are never merged key by key.
func MergeOptions(defaults RequestOptions, opts *RequestOptions) RequestOptions {
	merged := defaults
	merged.Headers = maps.Clone(defaults.Headers)
	if opts == nil {
		return merged
	}
	if opts.Method != "" {
		merged.Method = opts.Method
	}
	if opts.Headers != nil {
		merged.Headers = maps.Clone(opts.Headers)
	}
	if opts.Body != nil {
		merged.Body = opts.Body
	}
	if opts.Auth != nil {
		merged.Auth = opts.Auth
	}
	return merged
}

// defaults derives the client-level default options from cfg.
func (cfg *Config) defaults() RequestOptions {
	d := DefaultRequestOptions()
	if cfg.DefaultHeaders != nil {
		d.Headers = cfg.DefaultHeaders
	}
	d.Auth = cfg.BasicAuth
	return d
}
