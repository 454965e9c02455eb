package llm

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector answers with the start of the prompt's CONTEXT section.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

func (m *MockConnector) Complete(ctx context.Context, prompt string, _ int, _ float64) (string, error) {
	ctxzap.Info(ctx, "[MOCK] generating completion", zap.Int("prompt_length", len(prompt)))

	if _, after, ok := strings.Cut(prompt, "CONTEXT:"); ok {
		excerpt, _, _ := strings.Cut(after, "USER QUESTION:")
		excerpt = strings.TrimSpace(excerpt)
		if len(excerpt) > 300 {
			excerpt = excerpt[:300] + "..."
		}
		return "According to the manual: " + excerpt, nil
	}

	if _, after, ok := strings.Cut(prompt, "Conversation:"); ok {
		conv, _, _ := strings.Cut(after, "Summary:")
		return "**Support Ticket Summary**\n\n" + strings.TrimSpace(conv), nil
	}

	return "Summary: " + strings.TrimSpace(strings.TrimSuffix(prompt, "Summary:")), nil
}
