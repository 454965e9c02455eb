package common

import (
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/config"
	pkgHTTP "github.com/futig/manual-assistant/pkg/http"
)

// NewBaseConnector builds the JSON connector of one upstream service.
func NewBaseConnector(service string, cfg config.HTTPClientConfig, logger *zap.Logger) *pkgHTTP.Connector {
	connCfg := &pkgHTTP.ConnectorConfig{
		Service: service,
		Logger:  logger,
		BaseURL: cfg.Url,
	}

	auth := pkgHTTP.WithAuthToken(cfg.Token)
	if cfg.AuthHeader != "" {
		auth = pkgHTTP.WithAPIKeyHeader(cfg.AuthHeader, cfg.Token)
	}

	return pkgHTTP.NewConnector(
		connCfg,
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		auth,
		pkgHTTP.WithRequestLogging(),
	)
}
