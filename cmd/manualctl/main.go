package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/futig/manual-assistant/internal/builder"
	"github.com/futig/manual-assistant/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context, environment string) (*cli.Library, error) {
		admin, err := builder.BuildAdmin(ctx, environment)
		if err != nil {
			return nil, err
		}
		return &cli.Library{
			Service: admin.Manuals,
			Logger:  admin.Logger,
			Close:   admin.Close,
		}, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
