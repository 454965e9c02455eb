package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/telegram/handlers"
	"github.com/futig/manual-assistant/internal/telegram/keyboard"
	"github.com/futig/manual-assistant/internal/telegram/middleware"
	"github.com/futig/manual-assistant/internal/telegram/render"
	"github.com/futig/manual-assistant/internal/telegram/state"
)

// Bot represents the Telegram bot
type Bot struct {
	api         *tgbotapi.BotAPI
	cfg         *config.TelegramConfig
	prefs       *state.Manager
	handlers    map[string]handlers.Handler
	keyboard    *keyboard.Builder
	logger      *zap.Logger
	loggingMW   *middleware.LoggingMiddleware
	recoveryMW  *middleware.RecoveryMiddleware
	rateLimitMW *middleware.RateLimiterMiddleware
	updatesChan tgbotapi.UpdatesChannel
	workers     chan struct{}
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// New creates a new Telegram bot
func New(cfg *config.TelegramConfig, prefs *state.Manager, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}
	api.Debug = false

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
		zap.Int64("id", api.Self.ID),
	)

	workers := cfg.MaxConcurrentUsers
	if workers <= 0 {
		workers = 1
	}

	bot := &Bot{
		api:      api,
		cfg:      cfg,
		prefs:    prefs,
		keyboard: keyboard.NewBuilder(),
		logger:   logger,
		handlers: make(map[string]handlers.Handler),
		workers:  make(chan struct{}, workers),
		stopChan: make(chan struct{}),
	}

	bot.loggingMW = middleware.NewLoggingMiddleware(logger)
	bot.recoveryMW = middleware.NewRecoveryMiddleware(logger, api)
	bot.rateLimitMW = middleware.NewRateLimiterMiddleware(
		cfg.RateLimitPerMinute,
		cfg.RateLimitBurst,
		logger,
		api,
	)

	return bot, nil
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout

	b.updatesChan = b.api.GetUpdatesChan(u)

	ctx = ctxzap.ToContext(ctx, b.logger)
	go b.processUpdates(ctx)

	b.logger.Info("telegram bot started successfully")
	return nil
}

// Stop stops the bot gracefully with timeout
func (b *Bot) Stop() error {
	b.logger.Info("stopping telegram bot")

	close(b.stopChan)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(b.cfg.ShutdownTimeout):
		b.logger.Warn("shutdown timeout exceeded, some handlers may not have completed",
			zap.Duration("timeout", b.cfg.ShutdownTimeout),
		)
		return fmt.Errorf("shutdown timeout exceeded")
	}

	b.logger.Info("telegram bot stopped successfully")
	return nil
}

// processUpdates processes incoming updates, at most MaxConcurrentUsers at
// a time
func (b *Bot) processUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "context cancelled, stopping update processing")
			return
		case <-b.stopChan:
			ctxzap.Info(ctx, "stop signal received, stopping update processing")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				return
			}
			b.workers <- struct{}{}
			b.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer func() {
					<-b.workers
					b.wg.Done()
				}()
				b.handleUpdateWithMiddleware(ctx, u)
			}(update)
		}
	}
}

// handleUpdateWithMiddleware processes update through middleware chain
func (b *Bot) handleUpdateWithMiddleware(ctx context.Context, update tgbotapi.Update) {
	b.rateLimitMW.Handle(update, func(u tgbotapi.Update) {
		b.loggingMW.Handle(u, func(u2 tgbotapi.Update) {
			b.recoveryMW.Handle(u2, func(u3 tgbotapi.Update) {
				b.handleUpdate(ctx, u3)
			})
		})
	})
}

// handleUpdate routes update to appropriate handler
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// In-flight updates finish even after polling is cancelled.
	ctx = ctxzap.ToContext(context.WithoutCancel(ctx), b.logger)

	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	ctx = ctxzap.ToContext(ctx, b.logger.With(
		zap.Int64("chat_id", chatID),
		zap.String("session_id", state.SessionID(chatID)),
	))

	msg := &handlers.Message{
		ChatID:    chatID,
		MessageID: message.MessageID,
		Text:      message.Text,
	}
	if message.From != nil {
		msg.UserID = message.From.ID
	}

	route := handlers.RouteText
	if message.IsCommand() {
		route = handlers.RouteCommand
		msg.Command = message.Command()
		msg.Args = message.CommandArguments()
		ctxzap.Info(ctx, "command received", zap.String("command", msg.Command))
	}

	prefs, err := b.prefs.Preferences(ctx, chatID)
	if err != nil {
		ctxzap.Error(ctx, "failed to get telegram preferences", zap.Error(err))
		b.sendError(chatID, render.ErrGeneric)
		return
	}
	ctx = state.ContextWithPreferences(ctx, prefs)

	b.dispatch(ctx, route, msg)
}

// handleCallbackQuery handles callback button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		b.answerCallback(query.ID, "")
		return
	}

	chatID := query.Message.Chat.ID
	ctx = ctxzap.ToContext(ctx, b.logger.With(
		zap.Int64("chat_id", chatID),
		zap.String("session_id", state.SessionID(chatID)),
	))

	callbackData, err := keyboard.ParseCallback(query.Data)
	if err != nil {
		ctxzap.Warn(ctx, "invalid callback data",
			zap.Error(err),
			zap.String("data", query.Data),
		)
		b.answerCallback(query.ID, "❌ Invalid button")
		return
	}

	ctxzap.Info(ctx, "callback query received",
		zap.String("action", callbackData.Action),
		zap.String("value", callbackData.Value),
	)

	// Answer right away so Telegram does not show the button as stuck.
	b.answerCallback(query.ID, "⏳ Working on it...")

	b.dispatch(ctx, handlers.RouteCallback, &handlers.Message{
		ChatID:       chatID,
		UserID:       query.From.ID,
		MessageID:    query.Message.MessageID,
		CallbackData: query.Data,
		CallbackID:   query.ID,
	})
}

func (b *Bot) dispatch(ctx context.Context, route string, msg *handlers.Message) {
	handler, exists := b.handlers[route]
	if !exists {
		ctxzap.Warn(ctx, "no handler for route", zap.String("route", route))
		b.sendError(msg.ChatID, render.ErrGeneric)
		return
	}

	if err := handler.Handle(ctx, msg); err != nil {
		ctxzap.Error(ctx, "handler error",
			zap.Error(err),
			zap.String("route", route),
		)
		b.sendError(msg.ChatID, render.ClassifyError(err))
	}
}

// sendError sends an error message
func (b *Bot) sendError(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("failed to answer callback",
			zap.Error(err),
			zap.String("callback_id", callbackID),
		)
	}
}

// RegisterHandler registers a handler for a route
func (b *Bot) RegisterHandler(handler handlers.Handler) {
	route := handler.GetRoute()

	if !handlers.IsValidRoute(route) {
		b.logger.Fatal("invalid handler route",
			zap.String("route", route),
		)
	}

	b.handlers[route] = handler
	b.logger.Info("handler registered",
		zap.String("route", route),
	)
}

// GetAPI returns the bot API instance (for handlers)
func (b *Bot) GetAPI() *tgbotapi.BotAPI {
	return b.api
}

// GetPreferences returns the chat preference manager (for handlers)
func (b *Bot) GetPreferences() *state.Manager {
	return b.prefs
}

// GetKeyboard returns the keyboard builder (for handlers)
func (b *Bot) GetKeyboard() *keyboard.Builder {
	return b.keyboard
}
