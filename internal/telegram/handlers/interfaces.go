package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/futig/manual-assistant/internal/entity"
)

// ChatUsecase defines the conversation operations used by the Telegram bot
// handlers
type ChatUsecase interface {
	Chat(ctx context.Context, req *entity.ChatRequest) (*entity.ChatResponse, error)
	Summarize(ctx context.Context, req *entity.SummarizeRequest) (*entity.SummarizeResponse, error)
	History(ctx context.Context, sessionID string, limit int) (*entity.SessionHistory, error)
	Export(ctx context.Context, sessionID string, format entity.ResultFormat) (*entity.ExportFile, error)
	ClearMemory(ctx context.Context, sessionID string) error
}

// Sender is the part of the Bot API handlers talk to. *tgbotapi.BotAPI
// implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}
