package chat

import (
	"context"

	"github.com/futig/manual-assistant/internal/agent"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/memory"
	"github.com/futig/manual-assistant/internal/pkg/formatter"
)

type Agent interface {
	Act(ctx context.Context, sessionID, input string, hints agent.Hints) (*entity.ChatResponse, error)
}

type Translator interface {
	ToEnglish(ctx context.Context, text, source string) string
	FromEnglish(ctx context.Context, text, target string) string
}

type Summarizer interface {
	Summarize(ctx context.Context, req *entity.SummarizeRequest) *entity.SummarizeResponse
}

type SessionStore interface {
	Lookup(ctx context.Context, sessionID string) (*memory.Memory, error)
	Clear(ctx context.Context, sessionID string) error
}

type FormatterFactory interface {
	Create(format entity.ResultFormat) (formatter.Formatter, error)
}
