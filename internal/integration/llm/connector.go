package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/integration/common"
	pkghttp "github.com/futig/manual-assistant/pkg/http"
)

// Connector calls an OpenAI-compatible /chat/completions endpoint.
type Connector struct {
	config    config.LLMConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.LLMConfig, logger *zap.Logger) *Connector {
	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector("llm", cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

// Complete sends prompt as a single user message.
func (c *Connector) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	req := &entity.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    []entity.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	ctxzap.Debug(ctx, "requesting completion",
		zap.String("model", c.config.Model),
		zap.Int("prompt_length", len(prompt)),
	)

	var resp entity.ChatCompletionResponse
	opts := append(c.config.Retry.ToProviderOptions(),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			ctxzap.Warn(ctx, "completion request failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	err := retry.Do(func() error {
		resp = entity.ChatCompletionResponse{}
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.Endpoint, req, &resp)
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
