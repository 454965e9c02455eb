package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/telegram/keyboard"
	"github.com/futig/manual-assistant/internal/telegram/render"
	"github.com/futig/manual-assistant/internal/telegram/state"
)

// historyLimit is how many past questions /history lists.
const historyLimit = 10

// CommandHandler serves slash commands
type CommandHandler struct {
	BaseHandler
	chatUC   ChatUsecase
	prefs    *state.Manager
	keyboard *keyboard.Builder
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	bot Sender,
	chatUC ChatUsecase,
	prefs *state.Manager,
	kb *keyboard.Builder,
	logger *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		BaseHandler: BaseHandler{
			route:         RouteCommand,
			messageSender: NewMessageSender(bot, logger),
		},
		chatUC:   chatUC,
		prefs:    prefs,
		keyboard: kb,
	}
}

// Handle implements Handler
func (h *CommandHandler) Handle(ctx context.Context, msg *Message) error {
	switch msg.Command {
	case "start":
		h.sendMessage(msg.ChatID, render.MsgWelcome, nil)
	case "help":
		h.sendMessage(msg.ChatID, render.MsgHelp, nil)
	case "brand":
		return h.setPreference(ctx, msg, "Brand", func(p *state.Preferences, v string) { p.Brand = v })
	case "model":
		return h.setPreference(ctx, msg, "Model", func(p *state.Preferences, v string) { p.Model = v })
	case "language":
		return h.setPreference(ctx, msg, "Language", func(p *state.Preferences, v string) { p.Language = v })
	case "settings":
		prefs, err := h.prefs.Preferences(ctx, msg.ChatID)
		if err != nil {
			return err
		}
		h.sendMessage(msg.ChatID, render.Settings(prefs.Brand, prefs.Model, prefs.Language), nil)
	case "history":
		history, err := h.chatUC.History(ctx, state.SessionID(msg.ChatID), historyLimit)
		if err != nil {
			h.HandleError(ctx, msg.ChatID, err)
			return nil
		}
		return h.messageSender.SendLong(msg.ChatID, render.History(history))
	case "summary":
		summary, err := h.chatUC.Summarize(ctx, &entity.SummarizeRequest{
			SessionID: state.SessionID(msg.ChatID),
			Context:   entity.SummaryGeneral,
		})
		if err != nil {
			h.HandleError(ctx, msg.ChatID, err)
			return nil
		}
		return h.messageSender.SendLong(msg.ChatID, render.Summary(summary))
	case "export":
		h.sendMessage(msg.ChatID, render.MsgChooseFormat, h.keyboard.ExportKeyboard())
	case "reset":
		h.sendMessage(msg.ChatID, render.MsgResetConfirm, h.keyboard.ResetKeyboard())
	default:
		h.sendMessage(msg.ChatID, render.MsgUnknownCmd, nil)
	}
	return nil
}

// setPreference stores the command argument, or clears the preference when
// the command has none.
func (h *CommandHandler) setPreference(
	ctx context.Context,
	msg *Message,
	label string,
	set func(*state.Preferences, string),
) error {
	value := strings.TrimSpace(msg.Args)
	if _, err := h.prefs.Update(ctx, msg.ChatID, func(p *state.Preferences) { set(p, value) }); err != nil {
		return fmt.Errorf("update %s preference: %w", strings.ToLower(label), err)
	}

	if value == "" {
		h.sendMessage(msg.ChatID, fmt.Sprintf(render.MsgPrefCleared, label), nil)
		return nil
	}
	h.sendMessage(msg.ChatID, fmt.Sprintf(render.MsgPrefSaved, label, value), nil)
	return nil
}
