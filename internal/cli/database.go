package cli

import (
	"github.com/spf13/cobra"

	"github.com/futig/manual-assistant/internal/entity"
)

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := a.svc.Stats()
			if a.jsonOutput {
				return a.printJSON(cmd, stats)
			}
			printStats(cmd, stats)
			return nil
		},
	}
}

func printStats(cmd *cobra.Command, stats entity.DatabaseStats) {
	cmd.Printf("Manuals:        %d\n", stats.TotalManuals)
	cmd.Printf("Chunks:         %d\n", stats.TotalChunks)
	cmd.Printf("Index size:     %d\n", stats.IndexSize)
	cmd.Printf("Embedding:      %s (%d dims)\n", stats.EmbeddingModel, stats.EmbeddingDimensions)
	cmd.Printf("Needs rebuild:  %t\n", stats.NeedsRebuild)
	for lang, n := range stats.ChunksByLanguage {
		cmd.Printf("  %-4s %d chunks\n", lang, n)
	}
}

func (a *app) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that chunks, manifests and index agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := a.svc.Verify(cmd.Context())
			if a.jsonOutput {
				return a.printJSON(cmd, report)
			}
			switch {
			case report.IsEmpty:
				cmd.Println("Library is empty.")
			case report.IsConsistent:
				cmd.Println("Library is consistent.")
			default:
				cmd.Println("Library is inconsistent; run `manualctl rebuild`.")
			}
			printStats(cmd, report.Stats)
			return nil
		},
	}
}

func (a *app) searchCommand() *cobra.Command {
	var req entity.DebugSearchRequest

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Preview the passages retrieval returns for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			results, err := a.svc.DebugSearch(cmd.Context(), &req)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, results)
			}
			if len(results) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			for _, r := range results {
				cmd.Printf("[%d] %s %s, %s p.%d (%.3f)\n", r.Rank, r.Brand, r.Model, r.Filename, r.Page, r.Score)
				cmd.Printf("    %s\n\n", r.Preview)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Brand, "brand", "", "restrict to a brand")
	cmd.Flags().StringVar(&req.Model, "model", "", "restrict to a model")
	cmd.Flags().IntVarP(&req.TopK, "top-k", "k", 0, "number of passages (default from config)")

	return cmd
}

func (a *app) clearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every manual from the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			if err := a.svc.Clear(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Library cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm clearing the library")
	return cmd
}

func (a *app) rebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed every chunk and rebuild the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.svc.Rebuild(cmd.Context()); err != nil {
				return err
			}
			stats := a.svc.Stats()
			cmd.Printf("Index rebuilt: %d chunks from %d manuals.\n", stats.IndexSize, stats.TotalManuals)
			return nil
		},
	}
}
