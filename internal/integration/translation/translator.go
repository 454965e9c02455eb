package translation

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const pivotLanguage = "en"

// Backend performs one translation call.
type Backend interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Translator moves queries into English for retrieval and answers back into
// the user's language. Failures keep the original text.
type Translator struct {
	backend Backend
}

func NewTranslator(backend Backend) *Translator {
	return &Translator{backend: backend}
}

// ToEnglish translates a query written in source.
func (t *Translator) ToEnglish(ctx context.Context, text, source string) string {
	if t == nil || t.backend == nil || source == "" || source == pivotLanguage || text == "" {
		return text
	}
	out, err := t.backend.Translate(ctx, text, source, pivotLanguage)
	if err != nil || out == "" {
		ctxzap.Warn(ctx, "query translation failed, using original text", zap.String("source", source), zap.Error(err))
		return text
	}
	return out
}

// FromEnglish translates a response into target.
func (t *Translator) FromEnglish(ctx context.Context, text, target string) string {
	if t == nil || t.backend == nil || target == "" || target == pivotLanguage || text == "" {
		return text
	}
	out, err := t.backend.Translate(ctx, text, pivotLanguage, target)
	if err != nil || out == "" {
		ctxzap.Warn(ctx, "response translation failed, using original text", zap.String("target", target), zap.Error(err))
		return text
	}
	return out
}
