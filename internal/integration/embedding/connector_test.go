package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
	pkgRetry "github.com/futig/manual-assistant/internal/pkg/retry"
)

func testConfig(url string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		HTTPClientConfig: config.HTTPClientConfig{Url: url, Token: "k", RequestTimeout: 5 * time.Second},
		Endpoint:         "/embeddings",
		Model:            "text-embedding-3-small",
		Dimensions:       2,
		Retry:            pkgRetry.RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestConnector_Embed(t *testing.T) {
	ctx := ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))

	t.Run("orders vectors by index", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req entity.EmbeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "text-embedding-3-small", req.Model)
			_ = json.NewEncoder(w).Encode(entity.EmbeddingResponse{Data: []entity.EmbeddingData{
				{Index: 1, Embedding: []float32{0, 1}},
				{Index: 0, Embedding: []float32{1, 0}},
			}})
		}))
		defer srv.Close()

		c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
		out, err := c.Embed(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
	})

	t.Run("retries rate limits", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_ = json.NewEncoder(w).Encode(entity.EmbeddingResponse{Data: []entity.EmbeddingData{
				{Index: 0, Embedding: []float32{1, 0}},
			}})
		}))
		defer srv.Close()

		c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
		_, err := c.Embed(ctx, []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(entity.EmbeddingResponse{Data: []entity.EmbeddingData{
				{Index: 0, Embedding: []float32{1, 0, 0}},
			}})
		}))
		defer srv.Close()

		c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
		_, err := c.Embed(ctx, []string{"a"})
		var dimErr *entity.DimensionMismatchError
		assert.ErrorAs(t, err, &dimErr)
	})
}
