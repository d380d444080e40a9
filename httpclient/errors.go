package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ClientError is implemented by every failure the client returns.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType is the failure category of a ClientError.
type ErrorType string

const (
	// NetworkError: the request could not be completed (DNS, refused, reset, body read).
	NetworkError ErrorType = "network"
	// TimeoutError: the transport gave up waiting.
	TimeoutError ErrorType = "timeout"
	// HTTPError: a response arrived with a non-2xx status.
	HTTPError ErrorType = "http"
	// ParseError: the response body was not valid JSON.
	ParseError       ErrorType = "parse"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType { return NetworkError }

func (e *networkError) Unwrap() error { return e.wrapped }

type timeoutError struct {
	message string
	timeout time.Duration
	wrapped error
}

func (e *timeoutError) Error() string {
	if e.timeout > 0 {
		return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
	}
	return fmt.Sprintf("timeout error: %s", e.message)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }

func (e *timeoutError) Unwrap() error { return e.wrapped }

// StatusError is the failure returned for a non-2xx response.
type StatusError struct {
	statusCode int
	body       []byte
}

// Error is exactly "HTTP error! Status: <code>".
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! Status: %d", e.statusCode)
}

func (e *StatusError) Type() ErrorType { return HTTPError }

func (e *StatusError) StatusCode() int { return e.statusCode }

// Body returns the response body that accompanied the status.
func (e *StatusError) Body() []byte { return e.body }

type parseError struct {
	body    []byte
	wrapped error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("parse error: response body is not valid JSON: %v", e.wrapped)
}

func (e *parseError) Type() ErrorType { return ParseError }

func (e *parseError) Unwrap() error { return e.wrapped }

type validationError struct {
	message string
	field   string
	wrapped error
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType { return ValidationError }

func (e *validationError) Unwrap() error { return e.wrapped }

type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }

func (e *interceptorError) Unwrap() error { return e.wrapped }

// NewNetworkError wraps a transport failure.
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{message: message, wrapped: wrapped}
}

// NewTimeoutError wraps a transport deadline.
func NewTimeoutError(message string, timeout time.Duration, wrapped error) ClientError {
	return &timeoutError{message: message, timeout: timeout, wrapped: wrapped}
}

// NewHTTPError reports a non-2xx response.
func NewHTTPError(statusCode int, body []byte) ClientError {
	return &StatusError{statusCode: statusCode, body: body}
}

// NewParseError wraps a JSON decoding failure.
func NewParseError(body []byte, wrapped error) ClientError {
	return &parseError{body: body, wrapped: wrapped}
}

// NewValidationError reports a call that could not be built.
func NewValidationError(message, field string, wrapped error) ClientError {
	return &validationError{message: message, field: field, wrapped: wrapped}
}

// NewInterceptorError wraps an interceptor failure at stage "request" or "response".
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{message: message, wrapped: wrapped, stage: stage}
}

// IsErrorType reports whether err, or an error it wraps, is a ClientError of errorType.
func IsErrorType(err error, errorType ErrorType) bool {
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError reports whether err is a non-2xx failure with statusCode.
func IsHTTPStatusError(err error, statusCode int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus reports whether statusCode is 2xx.
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
