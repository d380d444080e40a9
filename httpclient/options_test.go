package httpclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testAuthorization = "Authorization"

func TestDefaultRequestOptions(t *testing.T) {
	d := DefaultRequestOptions()
	assert.Equal(t, http.MethodGet, d.Method)
	assert.Equal(t, map[string]string{testContentTypeHeader: testContentType}, d.Headers)
	assert.Nil(t, d.Body)
	assert.Nil(t, d.Auth)
}

func TestMergeOptions(t *testing.T) {
	defaults := DefaultRequestOptions()
	auth := &BasicAuth{Username: "u", Password: "p"}

	tests := []struct {
		name     string
		opts     *RequestOptions
		expected RequestOptions
	}{
		{
			name:     "nil options keep defaults",
			opts:     nil,
			expected: defaults,
		},
		{
			name:     "empty options keep defaults",
			opts:     &RequestOptions{},
			expected: defaults,
		},
		{
			name: "method only keeps default headers",
			opts: &RequestOptions{Method: http.MethodPost},
			expected: RequestOptions{
				Method:  http.MethodPost,
				Headers: map[string]string{testContentTypeHeader: testContentType},
			},
		},
		{
			name: "caller headers replace default headers",
			opts: &RequestOptions{Method: http.MethodPost, Headers: map[string]string{testAuthorization: "x"}},
			expected: RequestOptions{
				Method:  http.MethodPost,
				Headers: map[string]string{testAuthorization: "x"},
			},
		},
		{
			name: "empty caller headers still replace",
			opts: &RequestOptions{Headers: map[string]string{}},
			expected: RequestOptions{
				Method:  http.MethodGet,
				Headers: map[string]string{},
			},
		},
		{
			name: "body and auth are taken from caller",
			opts: &RequestOptions{Body: []byte(`{}`), Auth: auth},
			expected: RequestOptions{
				Method:  http.MethodGet,
				Headers: map[string]string{testContentTypeHeader: testContentType},
				Body:    []byte(`{}`),
				Auth:    auth,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MergeOptions(defaults, tt.opts))
		})
	}
}

func TestMergeOptionsDoesNotAliasMaps(t *testing.T) {
	defaults := DefaultRequestOptions()
	callerHeaders := map[string]string{testAuthorization: "x"}

	merged := MergeOptions(defaults, nil)
	merged.Headers["X-Extra"] = "1"
	assert.NotContains(t, defaults.Headers, "X-Extra")

	merged = MergeOptions(defaults, &RequestOptions{Headers: callerHeaders})
	merged.Headers["X-Extra"] = "1"
	assert.NotContains(t, callerHeaders, "X-Extra")
}

func TestConfigDefaults(t *testing.T) {
	t.Run("zero config uses built-in defaults", func(t *testing.T) {
		cfg := &Config{}
		assert.Equal(t, DefaultRequestOptions(), cfg.defaults())
	})

	t.Run("default headers replace built-ins", func(t *testing.T) {
		cfg := &Config{DefaultHeaders: map[string]string{"Accept": "text/plain"}}
		assert.Equal(t, map[string]string{"Accept": "text/plain"}, cfg.defaults().Headers)
	})

	t.Run("basic auth becomes default auth", func(t *testing.T) {
		auth := &BasicAuth{Username: "svc", Password: "pw"}
		cfg := &Config{BasicAuth: auth}
		assert.Same(t, auth, cfg.defaults().Auth)
	})
}
