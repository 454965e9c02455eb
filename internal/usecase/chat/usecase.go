package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/agent"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/pkg/formatter"
	"github.com/futig/manual-assistant/internal/pkg/logger"
	"github.com/futig/manual-assistant/internal/pkg/validator"
)

// ChatUsecase runs conversation turns and serves session history
type ChatUsecase struct {
	agent      Agent
	translator Translator
	summarizer Summarizer
	sessions   SessionStore
	formatters FormatterFactory
	validator  *validator.Validator
	now        func() time.Time
}

// NewUsecase creates a new chat use case
func NewUsecase(
	chatAgent Agent,
	translator Translator,
	summarizer Summarizer,
	sessions SessionStore,
	formatters FormatterFactory,
	validator *validator.Validator,
) *ChatUsecase {
	return &ChatUsecase{
		agent:      chatAgent,
		translator: translator,
		summarizer: summarizer,
		sessions:   sessions,
		formatters: formatters,
		validator:  validator,
		now:        time.Now,
	}
}

// Chat runs one turn. A request without a session id starts a new session.
// The message is translated to English before the agent sees it and the
// answer is translated back unless it is already localized.
func (uc *ChatUsecase) Chat(ctx context.Context, req *entity.ChatRequest) (*entity.ChatResponse, error) {
	if err := uc.validator.ValidateChat(req); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	ctx = logger.WithSession(ctx, sessionID)

	input := uc.translator.ToEnglish(ctx, req.Message, req.SourceLanguage)

	resp, err := uc.agent.Act(ctx, sessionID, input, hintsFrom(req))
	if err != nil {
		return nil, fmt.Errorf("run agent: %w", err)
	}

	if !agent.IsLocalized(resp.Monitor, req.ResponseLanguage) {
		resp.Response = uc.translator.FromEnglish(ctx, resp.Response, req.ResponseLanguage)
	}

	ctxzap.Info(ctx, "chat turn completed",
		zap.String("intent", string(resp.Monitor.Intent)),
		zap.String("device_type", resp.DeviceType),
		zap.Float64("confidence", resp.Confidence),
		zap.Bool("awaiting_clarification", resp.AwaitingClarification),
	)

	return resp, nil
}

// Summarize condenses the given messages, or a stored session when the
// request only names one.
func (uc *ChatUsecase) Summarize(ctx context.Context, req *entity.SummarizeRequest) (*entity.SummarizeResponse, error) {
	switch req.Context {
	case "":
		req.Context = entity.SummaryGeneral
	case entity.SummaryGeneral, entity.SummarySupportTicket:
	default:
		return nil, fmt.Errorf("%w: context %q", entity.ErrInvalidParameter, req.Context)
	}

	if len(req.Messages) == 0 && req.SessionID != "" {
		mem, err := uc.sessions.Lookup(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("lookup session: %w", err)
		}
		req.Messages = summaryMessages(mem.AllTurns())
	}

	return uc.summarizer.Summarize(ctx, req), nil
}

// History returns up to limit most recent turns of a session; a limit of
// zero returns all of them.
func (uc *ChatUsecase) History(ctx context.Context, sessionID string, limit int) (*entity.SessionHistory, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", entity.ErrInvalidParameter)
	}

	mem, err := uc.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	turns := mem.AllTurns()
	if limit > 0 {
		turns = mem.RecentTurns(limit)
	}

	return &entity.SessionHistory{
		SessionID: sessionID,
		Turns:     turns,
		Total:     mem.Len(),
	}, nil
}

func (uc *ChatUsecase) Stats(ctx context.Context, sessionID string) (*entity.MemoryStats, error) {
	mem, err := uc.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	stats := mem.Stats()
	return &stats, nil
}

// Export renders a session transcript in the requested format.
func (uc *ChatUsecase) Export(ctx context.Context, sessionID string, format entity.ResultFormat) (*entity.ExportFile, error) {
	f, err := uc.formatters.Create(format)
	if err != nil {
		return nil, err
	}

	mem, err := uc.sessions.Lookup(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	content, err := f.Format(formatter.Transcript{
		SessionID:  sessionID,
		ExportedAt: uc.now(),
		Turns:      mem.AllTurns(),
	})
	if err != nil {
		return nil, fmt.Errorf("format transcript: %w", err)
	}

	ctxzap.Info(ctx, "transcript exported",
		zap.String("session_id", sessionID),
		zap.String("format", string(format)),
		zap.Int("size", len(content)),
	)

	return &entity.ExportFile{
		Filename:    "conversation_" + sessionID + f.FileExtension(),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

// ClearMemory forgets a session's conversation.
func (uc *ChatUsecase) ClearMemory(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session_id", entity.ErrMissingField)
	}
	if err := uc.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session memory: %w", err)
	}
	ctxzap.Info(ctx, "session memory cleared", zap.String("session_id", sessionID))
	return nil
}

func hintsFrom(req *entity.ChatRequest) agent.Hints {
	return agent.Hints{
		Brand:            req.Brand,
		Model:            req.Model,
		BillNumber:       req.BillNumber,
		PurchaseDate:     req.PurchaseDate,
		ResponseLanguage: req.ResponseLanguage,
		RequireBrand:     req.RequireBrand,
		RequireModel:     req.RequireModel,
	}
}

func summaryMessages(turns []entity.Turn) []entity.SummaryMessage {
	out := make([]entity.SummaryMessage, 0, 2*len(turns))
	for _, t := range turns {
		out = append(out,
			entity.SummaryMessage{Sender: "user", Text: t.UserInput},
			entity.SummaryMessage{Sender: "assistant", Text: t.Response},
		)
	}
	return out
}
