package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/integration/common"
	pkghttp "github.com/futig/manual-assistant/pkg/http"
)

// Connector calls an OpenAI-compatible /embeddings endpoint.
type Connector struct {
	config    config.EmbeddingConfig
	connector *pkghttp.Connector
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewConnector(cfg config.EmbeddingConfig, logger *zap.Logger) *Connector {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector("embedding", cfg.HTTPClientConfig, logger),
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

func (c *Connector) Dimensions() int {
	return c.config.Dimensions
}

func (c *Connector) Model() string {
	return c.config.Model
}

// Embed returns one vector per text, in input order. Retryable failures are
// retried with provider backoff.
func (c *Connector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := &entity.EmbeddingRequest{
		Model:      c.config.Model,
		Input:      texts,
		Dimensions: c.config.Dimensions,
	}

	var resp entity.EmbeddingResponse
	opts := append(c.config.Retry.ToProviderOptions(),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			ctxzap.Warn(ctx, "embedding request failed, retrying",
				zap.Uint("attempt", n+1),
				zap.Int("batch_size", len(texts)),
				zap.Bool("rate_limited", pkghttp.IsRateLimited(err)),
				zap.Error(err),
			)
		}),
	)

	err := retry.Do(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Unrecoverable(err)
		}
		resp = entity.EmbeddingResponse{}
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.Endpoint, req, &resp)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.config.Dimensions {
			return nil, &entity.DimensionMismatchError{Expected: c.config.Dimensions, Got: len(d.Embedding), Position: d.Index}
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}
