package handlers

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// typingInterval stays below the 5 second lifetime of a chat action.
const typingInterval = 4 * time.Second

// TypingNotifier repeats a chat action ("typing", "upload_document") while
// a slow operation runs
type TypingNotifier struct {
	bot      Sender
	chatID   int64
	action   string
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewTypingNotifier creates a new typing indicator
func NewTypingNotifier(bot Sender, chatID int64, logger *zap.Logger) *TypingNotifier {
	return newActionNotifier(bot, chatID, tgbotapi.ChatTyping, logger)
}

// NewUploadNotifier shows "sending a file" while an export is rendered.
func NewUploadNotifier(bot Sender, chatID int64, logger *zap.Logger) *TypingNotifier {
	return newActionNotifier(bot, chatID, tgbotapi.ChatUploadDocument, logger)
}

func newActionNotifier(bot Sender, chatID int64, action string, logger *zap.Logger) *TypingNotifier {
	return &TypingNotifier{
		bot:      bot,
		chatID:   chatID,
		action:   action,
		interval: typingInterval,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start sends the action immediately and then every interval until Stop
// is called or ctx is done.
func (t *TypingNotifier) Start(ctx context.Context) {
	t.send()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.send()
			case <-t.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops sending typing indicators. It is safe to call more than once.
func (t *TypingNotifier) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

func (t *TypingNotifier) send() {
	if _, err := t.bot.Request(tgbotapi.NewChatAction(t.chatID, t.action)); err != nil {
		t.logger.Warn("failed to send chat action",
			zap.Error(err),
			zap.String("action", t.action),
			zap.Int64("chat_id", t.chatID),
		)
	}
}
