package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedProvider struct {
	dim      int
	failures map[int]bool // call number -> fail
	calls    int
	sizes    []int
}

func (p *scriptedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.sizes = append(p.sizes, len(texts))
	if p.failures[p.calls] {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, p.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (p *scriptedProvider) Dimensions() int { return p.dim }
func (p *scriptedProvider) Model() string   { return "scripted" }

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "chunk"
	}
	return out
}

func newTestEmbedder(p Provider) *Embedder {
	e := NewEmbedder(p, BatchConfig{Size: 75, MinSize: 25, Growth: 10, Pause: time.Millisecond})
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func TestEmbedder_EmbedDocuments(t *testing.T) {
	ctx := ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))

	t.Run("splits into batches of 75", func(t *testing.T) {
		p := &scriptedProvider{dim: 4}
		out, err := newTestEmbedder(p).EmbedDocuments(ctx, texts(160))
		require.NoError(t, err)
		assert.Len(t, out, 160)
		assert.Equal(t, []int{75, 75, 10}, p.sizes)
	})

	t.Run("failed batch yields zero vectors", func(t *testing.T) {
		p := &scriptedProvider{dim: 4, failures: map[int]bool{1: true}}
		out, err := newTestEmbedder(p).EmbedDocuments(ctx, texts(100))
		require.NoError(t, err)
		require.Len(t, out, 100)
		assert.Equal(t, make([]float32, 4), out[0])
		assert.Equal(t, float32(1), out[99][0])
	})

	t.Run("shrinks after two consecutive failures then grows", func(t *testing.T) {
		p := &scriptedProvider{dim: 2, failures: map[int]bool{1: true, 2: true}}
		out, err := newTestEmbedder(p).EmbedDocuments(ctx, texts(250))
		require.NoError(t, err)
		assert.Len(t, out, 250)
		// 75 fail, 75 fail -> 37, success -> 47, success -> 16 remaining
		assert.Equal(t, []int{75, 75, 37, 47, 16}, p.sizes)
	})

	t.Run("never shrinks below the floor", func(t *testing.T) {
		fail := map[int]bool{}
		for i := 1; i <= 20; i++ {
			fail[i] = true
		}
		p := &scriptedProvider{dim: 2, failures: fail}
		_, err := newTestEmbedder(p).EmbedDocuments(ctx, texts(300))
		require.NoError(t, err)
		// the final batch only holds the remainder
		for _, s := range p.sizes[:len(p.sizes)-1] {
			assert.GreaterOrEqual(t, s, 25)
		}
		assert.Contains(t, p.sizes, 25)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newTestEmbedder(&scriptedProvider{dim: 2}).EmbedDocuments(cctx, texts(10))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	ctx := ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))

	e := newTestEmbedder(&scriptedProvider{dim: 3})
	assert.Equal(t, make([]float32, 3), e.EmbedQuery(ctx, ""))
	assert.Equal(t, []float32{1, 0, 0}, e.EmbedQuery(ctx, "door seal"))

	failing := newTestEmbedder(&scriptedProvider{dim: 3, failures: map[int]bool{1: true}})
	assert.Equal(t, make([]float32, 3), failing.EmbedQuery(ctx, "door seal"))
}

func TestMockConnector_SimilarTextsAreClose(t *testing.T) {
	m := NewMockConnector(64, zaptest.NewLogger(t))
	vs, err := m.Embed(context.Background(), []string{
		"clean the door seal",
		"how to clean the door seal",
		"ice maker not working",
	})
	require.NoError(t, err)

	dist := func(a, b []float32) float32 {
		var s float32
		for i := range a {
			d := a[i] - b[i]
			s += d * d
		}
		return s
	}
	assert.Less(t, dist(vs[0], vs[1]), dist(vs[0], vs[2]))
}
