package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/api"
	chatapi "github.com/futig/manual-assistant/internal/api/chat"
	manualapi "github.com/futig/manual-assistant/internal/api/manual"
	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/pkg/logger"
	"github.com/futig/manual-assistant/internal/telegram"
	"github.com/futig/manual-assistant/internal/telegram/state"
	"github.com/futig/manual-assistant/internal/usecase/manual"
)

// Build assembles the HTTP service.
func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	log.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	kb, err := setupKnowledge(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	conv, err := setupConversation(ctx, cfg, kb, log)
	if err != nil {
		_ = kb.close()
		return nil, err
	}

	manualHandler := manualapi.NewHandler(kb.manualUC, cfg.FileUploadCfg)
	chatHandler := chatapi.NewHandler(conv.chatUC)
	log.Info("API handlers initialized")

	router := api.SetupRouter(manualHandler, chatHandler, kb.store, log)
	log.Info("HTTP router configured")

	// No WriteTimeout: uploads are bounded by the router's request timeout.
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          log,
		closers:         []func() error{kb.close, closeFunc(conv.close)},
	}, nil
}

// BuildTelegramBot creates and initializes the Telegram bot. The returned
// cleanup releases the knowledge base and database.
func BuildTelegramBot() (telegram.Bot, *zap.Logger, func(), error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	log.Info("Building Telegram bot",
		zap.String("environment", cfg.Environment),
	)

	kb, err := setupKnowledge(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	conv, err := setupConversation(ctx, cfg, kb, log)
	if err != nil {
		_ = kb.close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		conv.close()
		if err := kb.close(); err != nil {
			log.Warn("failed to close knowledge base", zap.Error(err))
		}
	}

	prefs := state.NewCacheStorage(cfg.MemoryCfg.SessionTTL, cfg.MemoryCfg.CleanupInterval)
	bot, err := telegram.NewBot(&cfg.TelegramCfg, prefs, conv.chatUC, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	log.Info("Telegram bot built successfully",
		zap.String("environment", cfg.Environment),
	)

	return bot, log, cleanup, nil
}

// Admin gives command line tools direct access to the manual library.
type Admin struct {
	Manuals *manual.ManualUsecase
	Logger  *zap.Logger
	kb      *knowledgeBase
}

// BuildAdmin loads the manual library for the given environment. It skips
// the conversation stack and the database.
func BuildAdmin(ctx context.Context, environment string) (*Admin, error) {
	cfg, err := config.Load(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	kb, err := setupKnowledge(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &Admin{Manuals: kb.manualUC, Logger: log, kb: kb}, nil
}

func (a *Admin) Close() error {
	_ = a.Logger.Sync()
	return a.kb.close()
}

func closeFunc(f func()) func() error {
	return func() error {
		f()
		return nil
	}
}
