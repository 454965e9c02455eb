package translation

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector returns text unchanged.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

func (m *MockConnector) Translate(ctx context.Context, text, source, target string) (string, error) {
	ctxzap.Debug(ctx, "[MOCK] translating text", zap.String("source", source), zap.String("target", target))
	return text, nil
}
