package http

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type payloadContextKey struct{}

type authTransport struct {
	header    string
	value     string
	transport http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.value == "" {
		return t.transport.RoundTrip(req)
	}
	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set(t.header, t.value)
	return t.transport.RoundTrip(reqCopy)
}

// WithAuthToken sends "Authorization: Bearer <token>" on every request.
func WithAuthToken(token string) HttpOpts {
	return withAuthHeader("Authorization", "Bearer "+token, token != "")
}

// WithAPIKeyHeader sends the key in a custom header, e.g. "api-key".
func WithAPIKeyHeader(header, key string) HttpOpts {
	return withAuthHeader(header, key, key != "")
}

func withAuthHeader(header, value string, enabled bool) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		if !enabled {
			return rt
		}
		return &authTransport{header: header, value: value, transport: rt}
	})
}

type logTransport struct {
	logPayload bool
	transport  http.RoundTripper
}

func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
	}
	if payload, ok := ctx.Value(payloadContextKey{}).([]byte); ok && t.logPayload {
		fields = append(fields, zap.Int("payload_bytes", len(payload)))
	}

	resp, err := t.transport.RoundTrip(req)
	fields = append(fields, zap.Duration("duration", time.Since(start)))
	if err != nil {
		ctxzap.Debug(ctx, "HTTP outbound request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	ctxzap.Debug(ctx, "HTTP outbound request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

// WithRequestLogging logs method, redacted URL, status and latency of every
// outbound request at debug level. Headers are never logged.
func WithRequestLogging() HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &logTransport{logPayload: true, transport: rt}
	})
}
