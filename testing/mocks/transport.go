package mocks

import (
	"bytes"
	"io"
	nethttp "net/http"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-fetchkit/httpclient"
)

// MockTransport provides a testify-based mock implementation of httpclient.Transport.
//
// Example usage:
//
//	transport := &mocks.MockTransport{}
//	transport.On("Do", mock.MatchedBy(func(r *http.Request) bool {
//		return r.Method == http.MethodPost
//	})).Return(mocks.JSONResponse(http.StatusOK, `{"id":1}`), nil)
//
//	client := httpclient.New(log, &httpclient.Config{Transport: transport})
type MockTransport struct {
	mock.Mock

	mu       sync.Mutex
	requests []*nethttp.Request
}

var _ httpclient.Transport = (*MockTransport)(nil)

// Do implements httpclient.Transport
func (m *MockTransport) Do(req *nethttp.Request) (*nethttp.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	args := m.Called(req)
	var resp *nethttp.Response
	if r := args.Get(0); r != nil {
		resp = r.(*nethttp.Response)
	}
	return resp, args.Error(1)
}

// Requests returns every request passed to Do, in call order.
// It is safe to call while Do is running on other goroutines.
func (m *MockTransport) Requests() []*nethttp.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*nethttp.Request(nil), m.requests...)
}

// JSONResponse builds a response with the given status and body and a JSON content type.
func JSONResponse(status int, body string) *nethttp.Response {
	return &nethttp.Response{
		StatusCode: status,
		Status:     nethttp.StatusText(status),
		Header:     nethttp.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
