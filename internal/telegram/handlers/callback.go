package handlers

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/telegram/keyboard"
	"github.com/futig/manual-assistant/internal/telegram/render"
	"github.com/futig/manual-assistant/internal/telegram/state"
)

// CallbackHandler handles inline keyboard button clicks
type CallbackHandler struct {
	BaseHandler
	bot    Sender
	chatUC ChatUsecase
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(bot Sender, chatUC ChatUsecase, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		BaseHandler: BaseHandler{
			route:         RouteCallback,
			messageSender: NewMessageSender(bot, logger),
		},
		bot:    bot,
		chatUC: chatUC,
	}
}

// Handle implements Handler
func (h *CallbackHandler) Handle(ctx context.Context, msg *Message) error {
	data, err := keyboard.ParseCallback(msg.CallbackData)
	if err != nil {
		return err
	}

	switch data.Action {
	case keyboard.ActionExport:
		return h.handleExport(ctx, msg, entity.ResultFormat(data.Value))
	case keyboard.ActionReset:
		return h.handleReset(ctx, msg, data.Value)
	default:
		return fmt.Errorf("unknown callback action: %s", data.Action)
	}
}

func (h *CallbackHandler) handleExport(ctx context.Context, msg *Message, format entity.ResultFormat) error {
	upload := NewUploadNotifier(h.bot, msg.ChatID, ctxzap.Extract(ctx))
	upload.Start(ctx)
	file, err := h.chatUC.Export(ctx, state.SessionID(msg.ChatID), format)
	upload.Stop()
	if err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	return h.messageSender.SendDocument(msg.ChatID, file)
}

func (h *CallbackHandler) handleReset(ctx context.Context, msg *Message, value string) error {
	if value != keyboard.ResetConfirm {
		h.sendMessage(msg.ChatID, render.MsgResetKept, nil)
		return nil
	}

	if err := h.chatUC.ClearMemory(ctx, state.SessionID(msg.ChatID)); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	h.sendMessage(msg.ChatID, render.MsgResetDone, nil)
	return nil
}
