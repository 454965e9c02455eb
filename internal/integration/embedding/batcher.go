package embedding

import (
	"context"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Provider turns a batch of texts into vectors.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

type BatchConfig struct {
	Size         int
	MinSize      int
	Growth       int
	Pause        time.Duration
	QueryTimeout time.Duration
}

// Embedder embeds documents in adaptive batches. A failed batch yields zero
// vectors so positions stay aligned with the input.
type Embedder struct {
	provider Provider
	cfg      BatchConfig
	sleep    func(ctx context.Context, d time.Duration)
}

func NewEmbedder(provider Provider, cfg BatchConfig) *Embedder {
	if cfg.Size < 1 {
		cfg.Size = 75
	}
	if cfg.MinSize < 1 || cfg.MinSize > cfg.Size {
		cfg.MinSize = min(25, cfg.Size)
	}
	return &Embedder{provider: provider, cfg: cfg, sleep: sleepCtx}
}

func (e *Embedder) Dimensions() int {
	return e.provider.Dimensions()
}

func (e *Embedder) Model() string {
	return e.provider.Model()
}

// EmbedDocuments returns len(texts) vectors. It only fails when ctx is done.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	size := e.cfg.Size
	consecutiveErrors := 0

	ctxzap.Info(ctx, "embedding documents", zap.Int("chunks", len(texts)), zap.Int("batch_size", size))

	for i := 0; i < len(texts); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(i+size, len(texts))
		batch := texts[i:end]

		vectors, err := e.provider.Embed(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			consecutiveErrors++
			ctxzap.Warn(ctx, "embedding batch failed, using zero vectors",
				zap.Int("offset", i),
				zap.Int("batch_size", len(batch)),
				zap.Int("consecutive_errors", consecutiveErrors),
				zap.Error(err),
			)
			if consecutiveErrors >= 2 && size > e.cfg.MinSize {
				size = max(size/2, e.cfg.MinSize)
				ctxzap.Info(ctx, "reducing embedding batch size", zap.Int("batch_size", size))
			}
			for range batch {
				out = append(out, make([]float32, e.provider.Dimensions()))
			}
			i = end
			continue
		}

		out = append(out, vectors...)
		consecutiveErrors = 0
		if size < e.cfg.Size {
			size = min(size+e.cfg.Growth, e.cfg.Size)
		}
		i = end

		if i < len(texts) && e.cfg.Pause > 0 {
			e.sleep(ctx, e.cfg.Pause)
		}
	}

	return out, nil
}

// EmbedQuery returns the query vector, or a zero vector for empty text or
// on provider failure.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) []float32 {
	zero := make([]float32, e.provider.Dimensions())
	if text == "" {
		return zero
	}

	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	vectors, err := e.provider.Embed(ctx, []string{text})
	if err != nil || len(vectors) != 1 {
		ctxzap.Warn(ctx, "query embedding failed, using zero vector", zap.Error(err))
		return zero
	}
	return vectors[0]
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
