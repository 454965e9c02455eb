package llm

import (
	"context"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

// Completer produces a completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// TokenCounter bounds prompt context size.
type TokenCounter interface {
	Count(text string) int
	Truncate(text string, limit int) string
}

type ServiceConfig struct {
	MaxTokens          int
	Temperature        float64
	ContextTokenBudget int
}

// Service turns retrieved chunks into grounded answers and summaries.
// Provider failures are absorbed into fallback texts.
type Service struct {
	completer Completer
	counter   TokenCounter
	cfg       ServiceConfig
	now       func() time.Time
}

func NewService(completer Completer, counter TokenCounter, cfg ServiceConfig) *Service {
	return &Service{completer: completer, counter: counter, cfg: cfg, now: time.Now}
}

// GenerateResponse answers req.Question grounded on req.Documents.
func (s *Service) GenerateResponse(ctx context.Context, req *entity.GenerateRequest) *entity.GenerateResponse {
	contextText, sources := buildContext(req.Documents)
	if s.counter != nil && s.cfg.ContextTokenBudget > 0 && s.counter.Count(contextText) > s.cfg.ContextTokenBudget {
		ctxzap.Warn(ctx, "manual context exceeds token budget, truncating",
			zap.Int("budget", s.cfg.ContextTokenBudget))
		contextText = s.counter.Truncate(contextText, s.cfg.ContextTokenBudget)
	}

	answer, err := s.completer.Complete(ctx, qaPrompt(contextText, req.Question), s.cfg.MaxTokens, s.cfg.Temperature)
	if err != nil {
		ctxzap.Warn(ctx, "generation failed, using fallback response", zap.Error(err))
		return &entity.GenerateResponse{Response: FallbackResponse, Sources: sources}
	}

	ctxzap.Debug(ctx, "response generated",
		zap.Int("documents", len(req.Documents)),
		zap.Int("sources", len(sources)),
	)

	return &entity.GenerateResponse{Response: strings.TrimSpace(answer), Sources: sources}
}

// Summarize condenses a conversation. On provider failure the formatted
// conversation itself is returned with a note.
func (s *Service) Summarize(ctx context.Context, req *entity.SummarizeRequest) *entity.SummarizeResponse {
	now := s.now()
	if len(req.Messages) == 0 {
		return &entity.SummarizeResponse{Summary: "No conversation to summarize.", Timestamp: now}
	}

	conv := conversationText(req.Messages)
	if strings.TrimSpace(conv) == "" {
		return &entity.SummarizeResponse{Summary: "No meaningful conversation to summarize.", Timestamp: now}
	}

	summary, err := s.completer.Complete(ctx, summaryPrompt(req.Context, conv), s.cfg.MaxTokens, s.cfg.Temperature)
	if err != nil {
		ctxzap.Warn(ctx, "summarization failed, using fallback", zap.Error(err))
		return &entity.SummarizeResponse{
			Summary:   "Conversation Summary:\n\n" + conv,
			Timestamp: now,
			Note:      "Generated using fallback method due to LLM unavailability",
		}
	}

	summary = strings.TrimSpace(summary)
	summary = strings.TrimSpace(strings.TrimPrefix(summary, "Summary:"))

	return &entity.SummarizeResponse{Summary: summary, Timestamp: now}
}
