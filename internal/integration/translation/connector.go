package translation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/integration/common"
	pkghttp "github.com/futig/manual-assistant/pkg/http"
)

// Connector talks to a LibreTranslate-compatible /translate endpoint.
type Connector struct {
	config    config.TranslationConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.TranslationConfig, logger *zap.Logger) *Connector {
	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector("translation", cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

// Translate converts text from source to target. An empty source lets the
// service detect the language.
func (c *Connector) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	req := &entity.TranslateRequest{Text: text, Source: source, Target: target}

	ctxzap.Debug(ctx, "translating text", zap.String("source", source), zap.String("target", target))

	var resp entity.TranslateResponse
	err := retry.Do(func() error {
		resp = entity.TranslateResponse{}
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.Endpoint, req, &resp)
	}, append(c.config.Retry.ToProviderOptions(), retry.Context(ctx))...)
	if err != nil {
		return "", fmt.Errorf("translate %s->%s: %w", source, target, err)
	}

	return resp.TranslatedText, nil
}
