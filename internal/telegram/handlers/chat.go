package handlers

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/telegram/render"
	"github.com/futig/manual-assistant/internal/telegram/state"
)

// ChatHandler answers free text with one conversation turn. Each chat is
// its own session.
type ChatHandler struct {
	BaseHandler
	bot    Sender
	chatUC ChatUsecase
	prefs  *state.Manager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(bot Sender, chatUC ChatUsecase, prefs *state.Manager, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		BaseHandler: BaseHandler{
			route:         RouteText,
			messageSender: NewMessageSender(bot, logger),
		},
		bot:    bot,
		chatUC: chatUC,
		prefs:  prefs,
	}
}

// Handle implements Handler
func (h *ChatHandler) Handle(ctx context.Context, msg *Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		h.sendMessage(msg.ChatID, render.MsgUnsupported, nil)
		return nil
	}

	prefs, err := h.prefs.Preferences(ctx, msg.ChatID)
	if err != nil {
		return err
	}

	typing := NewTypingNotifier(h.bot, msg.ChatID, ctxzap.Extract(ctx))
	typing.Start(ctx)
	resp, err := h.chatUC.Chat(ctx, &entity.ChatRequest{
		SessionID:        state.SessionID(msg.ChatID),
		Message:          text,
		SourceLanguage:   prefs.Language,
		ResponseLanguage: prefs.Language,
		Brand:            prefs.Brand,
		Model:            prefs.Model,
	})
	typing.Stop()
	if err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	ctxzap.Debug(ctx, "telegram answer ready",
		zap.Int64("chat_id", msg.ChatID),
		zap.Int("sources", len(resp.Sources)),
		zap.Bool("awaiting_clarification", resp.AwaitingClarification),
	)

	return h.messageSender.SendLong(msg.ChatID, render.Answer(resp))
}
