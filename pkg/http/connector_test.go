package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnector_DoRequest(t *testing.T) {
	t.Run("decodes JSON and sends auth header", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"value":"ok"}`))
		}))
		defer srv.Close()

		c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zaptest.NewLogger(t)},
			WithAuthToken("secret"), WithRequestLogging())

		var out struct {
			Value string `json:"value"`
		}
		err := c.DoRequest(context.Background(), http.MethodPost, "/x", map[string]string{"a": "b"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "ok", out.Value)
	})

	t.Run("rate limit carries retry-after", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`slow down`))
		}))
		defer srv.Close()

		c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zaptest.NewLogger(t)})
		err := c.DoRequest(context.Background(), http.MethodGet, "/", nil, nil)
		require.Error(t, err)
		assert.True(t, IsRateLimited(err))
		assert.True(t, IsRetryable(err))
		assert.Equal(t, 7*time.Second, RetryAfterOf(err))
	})

	t.Run("errors name the service", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`overloaded`))
		}))
		defer srv.Close()

		c := NewConnector(&ConnectorConfig{Service: "embedding", BaseURL: srv.URL, Logger: zaptest.NewLogger(t)})
		err := c.DoRequest(context.Background(), http.MethodPost, "/embeddings", map[string]string{"input": "x"}, nil)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, "embedding", httpErr.Service)
		assert.EqualError(t, err, "embedding: HTTP 503: overloaded")
		assert.True(t, IsRetryable(err))
	})

	t.Run("client error is not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zaptest.NewLogger(t)})
		err := c.DoRequest(context.Background(), http.MethodGet, "/", nil, nil)
		require.Error(t, err)
		assert.False(t, IsRetryable(err))
		assert.False(t, IsRateLimited(err))
	})
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(&HTTPError{StatusCode: http.StatusGatewayTimeout}))
	assert.False(t, IsTimeout(&HTTPError{StatusCode: http.StatusBadGateway}))
}
