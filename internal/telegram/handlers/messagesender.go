package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
	pkgretry "github.com/futig/manual-assistant/internal/pkg/retry"
	"github.com/futig/manual-assistant/internal/telegram/render"
)

const (
	maxSendAttempts = 3
	sendRetryDelay  = 500 * time.Millisecond
	sendRetryMax    = 3 * time.Second
)

// MessageSender provides centralized message sending functionality
type MessageSender struct {
	bot       Sender
	logger    *zap.Logger
	retryOpts []retry.Option
}

// NewMessageSender creates a new MessageSender
func NewMessageSender(bot Sender, logger *zap.Logger) *MessageSender {
	cfg := &pkgretry.RetryConfig{
		Attempts: maxSendAttempts,
		Delay:    sendRetryDelay,
		MaxDelay: sendRetryMax,
	}
	return &MessageSender{
		bot:       bot,
		logger:    logger,
		retryOpts: append(cfg.ToRetryOptions(), retry.RetryIf(isRetryableSend)),
	}
}

// Send sends a message to the specified chat. Flood-control and transport
// failures are retried.
func (s *MessageSender) Send(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return s.send(chatID, msg)
}

// SendLong sends text split into as many messages as Telegram needs.
func (s *MessageSender) SendLong(chatID int64, text string) error {
	for _, part := range render.Split(text, render.MaxMessageLength) {
		if err := s.Send(chatID, part, nil); err != nil {
			return err
		}
	}
	return nil
}

// SendDocument uploads an exported file.
func (s *MessageSender) SendDocument(chatID int64, file *entity.ExportFile) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  file.Filename,
		Bytes: file.Content,
	})
	if err := s.send(chatID, doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func (s *MessageSender) send(chatID int64, c tgbotapi.Chattable) error {
	attempt := 0
	err := retry.Do(func() error {
		attempt++
		_, err := s.bot.Send(c)
		return err
	}, s.retryOpts...)
	if err != nil {
		s.logger.Error("failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("attempts", attempt),
		)
		return err
	}
	if attempt > 1 {
		s.logger.Info("message sent after retry",
			zap.Int("attempt", attempt),
			zap.Int64("chat_id", chatID),
		)
	}
	return nil
}

// isRetryableSend rejects Bot API errors other than flood control, which
// would fail the same way again.
func isRetryableSend(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429
	}
	return true
}
