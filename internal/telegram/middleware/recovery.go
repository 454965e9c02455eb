package middleware

import (
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/telegram/state"
)

const panicReply = "❌ I couldn't answer that. Try rephrasing the question, or /reset to start the conversation over."

// RecoveryMiddleware turns a panic in a handler into an apology in the chat,
// so one bad update does not stop the bot.
type RecoveryMiddleware struct {
	logger *zap.Logger
	bot    messageSender
}

func NewRecoveryMiddleware(logger *zap.Logger, bot messageSender) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger: logger,
		bot:    bot,
	}
}

func (m *RecoveryMiddleware) Handle(update tgbotapi.Update, next func(tgbotapi.Update)) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		_, chatID := updateIDs(update)
		fields := []zap.Field{
			zap.Any("panic", r),
			zap.Int("update_id", update.UpdateID),
			zap.String("type", updateType(update)),
			zap.String("stack", string(debug.Stack())),
		}
		if chatID == 0 {
			m.logger.Error("panic while handling update without a chat", fields...)
			return
		}

		sessionID := state.SessionID(chatID)
		m.logger.Error("panic while answering chat",
			append(fields, zap.String("session_id", sessionID))...)
		if _, err := m.bot.Send(tgbotapi.NewMessage(chatID, panicReply)); err != nil {
			m.logger.Error("failed to apologise for a failed answer",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}()

	next(update)
}
