package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/entity"
)

// Service is the manual library the commands operate on.
type Service interface {
	Upload(ctx context.Context, filename string, content []byte, meta entity.ManualMetadata) (*entity.UploadResult, error)
	Delete(ctx context.Context, sourceID string) (*entity.DeleteResult, error)
	List() []entity.ManualSummary
	Brands() []string
	Models(brand string) []string
	Stats() entity.DatabaseStats
	Verify(ctx context.Context) entity.VerifyReport
	Clear(ctx context.Context) error
	Rebuild(ctx context.Context) error
	DebugSearch(ctx context.Context, req *entity.DebugSearchRequest) ([]entity.SearchPreview, error)
}

// Library is an opened manual library.
type Library struct {
	Service Service
	Logger  *zap.Logger
	Close   func() error
}

// Loader opens the manual library of an environment.
type Loader func(ctx context.Context, environment string) (*Library, error)

type app struct {
	load        Loader
	environment string
	jsonOutput  bool
	svc         Service
	release     func() error
}

// NewRootCommand builds the manualctl command tree.
func NewRootCommand(load Loader) *cobra.Command {
	a := &app{load: load}

	root := &cobra.Command{
		Use:   "manualctl",
		Short: "Manage the appliance manual library",
		Long: `manualctl ingests, inspects and maintains the manual library
served by the assistant. It works on the same vector db path as the server,
so stop the server before changing the library.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := a.load(cmd.Context(), a.environment)
			if err != nil {
				return fmt.Errorf("open manual library: %w", err)
			}
			a.svc = lib.Service
			a.release = lib.Close
			if lib.Logger != nil {
				cmd.SetContext(ctxzap.ToContext(cmd.Context(), lib.Logger))
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.release == nil {
				return nil
			}
			return a.release()
		},
	}

	root.PersistentFlags().StringVar(&a.environment, "env", "local", "environment to load (local, prod, or custom)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output results as JSON")

	root.AddCommand(
		a.ingestCommand(),
		a.deleteCommand(),
		a.listCommand(),
		a.brandsCommand(),
		a.modelsCommand(),
		a.statsCommand(),
		a.verifyCommand(),
		a.searchCommand(),
		a.clearCommand(),
		a.rebuildCommand(),
	)

	return root
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

var errNotConfirmed = errors.New("refusing to clear the library without --yes")
