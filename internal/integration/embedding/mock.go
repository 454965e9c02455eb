package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector is a deterministic hashing bag-of-words embedder. Texts that
// share words land close to each other under L2 distance, which is enough
// to exercise retrieval without a provider.
type MockConnector struct {
	dimensions int
	logger     *zap.Logger
}

func NewMockConnector(dimensions int, logger *zap.Logger) *MockConnector {
	return &MockConnector{dimensions: dimensions, logger: logger}
}

func (m *MockConnector) Dimensions() int {
	return m.dimensions
}

func (m *MockConnector) Model() string {
	return "mock-hashing"
}

func (m *MockConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctxzap.Debug(ctx, "[MOCK] embedding texts", zap.Int("count", len(texts)))

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *MockConnector) vector(text string) []float32 {
	v := make([]float32, m.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		v[int(sum%uint32(m.dimensions))] += 1
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
