package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/builder"
)

func main() {
	bot, logger, cleanup, err := builder.BuildTelegramBot()
	if err != nil {
		log.Fatalf("build manual assistant bot: %v", err)
	}
	defer cleanup()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(ctx); err != nil {
		logger.Error("manual assistant bot failed to start", zap.Error(err))
		return
	}
	logger.Info("manual assistant bot is answering chats")

	<-ctx.Done()
	logger.Info("shutting down manual assistant bot", zap.NamedError("reason", context.Cause(ctx)))
	if err := bot.Stop(); err != nil {
		logger.Error("manual assistant bot did not stop cleanly", zap.Error(err))
		return
	}
	logger.Info("manual assistant bot stopped")
}
