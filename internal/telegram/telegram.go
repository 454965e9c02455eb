package telegram

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/telegram/bot"
	"github.com/futig/manual-assistant/internal/telegram/handlers"
	"github.com/futig/manual-assistant/internal/telegram/state"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot initializes the telegram bot with all dependencies
func NewBot(
	cfg *config.TelegramConfig,
	storage state.Storage,
	chatUC handlers.ChatUsecase,
	logger *zap.Logger,
) (Bot, error) {
	b, err := bot.New(cfg, state.NewManager(storage), logger)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	registerHandlers(b, chatUC, logger)

	logger.Info("telegram bot initialized successfully")

	return b, nil
}

// registerHandlers registers all handlers with the bot
func registerHandlers(b *bot.Bot, chatUC handlers.ChatUsecase, logger *zap.Logger) {
	api := b.GetAPI()
	prefs := b.GetPreferences()

	b.RegisterHandler(handlers.NewCommandHandler(api, chatUC, prefs, b.GetKeyboard(), logger))
	b.RegisterHandler(handlers.NewChatHandler(api, chatUC, prefs, logger))
	b.RegisterHandler(handlers.NewCallbackHandler(api, chatUC, logger))

	logger.Info("telegram handlers registered",
		zap.Int("handler_count", 3),
	)
}
