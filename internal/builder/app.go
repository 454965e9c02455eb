package builder

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// App represents the application with all its components
type App struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
	closers         []func() error
}

// Run starts the application and all its daemons
func (a *App) Run() error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		a.logger.Error("Server error", zap.Error(err))
		return multierr.Append(err, a.release())
	case sig := <-sigChan:
		a.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	return a.shutdown()
}

// shutdown gracefully shuts down the application
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down server gracefully")

	err := a.server.Shutdown(ctx)
	if err != nil {
		a.logger.Error("Server shutdown error", zap.Error(err))
	}

	if releaseErr := a.release(); releaseErr != nil {
		a.logger.Error("Resource release error", zap.Error(releaseErr))
		err = multierr.Append(err, releaseErr)
	}

	if err == nil {
		a.logger.Info("Application stopped gracefully")
	}
	_ = a.logger.Sync()
	return err
}

// release closes the vector index client and database connections
func (a *App) release() error {
	a.logger.Info("Closing knowledge base and database connections")
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c())
	}
	return err
}
