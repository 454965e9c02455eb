package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/futig/manual-assistant/internal/entity"
)

func (a *app) ingestCommand() *cobra.Command {
	var meta entity.ManualMetadata

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Add manuals to the library",
		Long: `Extracts, chunks and embeds each manual (PDF or DOCX) and adds it
to the library. A manual whose filename is already present is rejected, and
one matching an existing brand, model and language is skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if err := a.ingestFile(cmd, path, meta); err != nil {
					cmd.PrintErrf("  %s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d manuals failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&meta.Brand, "brand", "", "manufacturer")
	cmd.Flags().StringVar(&meta.Model, "model", "", "model number")
	cmd.Flags().StringVar(&meta.ProductType, "product-type", "", "kind of appliance")
	cmd.Flags().StringVar(&meta.Year, "year", "", "publication year")
	cmd.Flags().StringVar(&meta.Language, "language", "", "manual language code")

	return cmd
}

func (a *app) ingestFile(cmd *cobra.Command, path string, meta entity.ManualMetadata) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	res, err := a.svc.Upload(cmd.Context(), filepath.Base(path), content, meta)
	if err != nil {
		return err
	}

	if a.jsonOutput {
		return a.printJSON(cmd, res)
	}
	if res.Cached {
		cmd.Printf("= %s\n", res.Message)
		return nil
	}
	cmd.Printf("+ %s (%s %s): %d pages, %d chunks, id %s\n",
		res.Manual.Filename, res.Manual.Brand, res.Manual.Model,
		res.Manual.PageCount, res.Manual.ChunkCount, res.Manual.SourceID)
	return nil
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [file_id]",
		Short: "Remove a manual and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(cmd, res)
			}
			cmd.Println(res.Message)
			return nil
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List manuals in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manuals := a.svc.List()
			if a.jsonOutput {
				return a.printJSON(cmd, manuals)
			}
			if len(manuals) == 0 {
				cmd.Println("No manuals in the library.")
				return nil
			}
			for _, m := range manuals {
				cmd.Printf("%s  %-12s %-14s %-3s %4d pages %5d chunks  %s\n",
					m.SourceID, m.Brand, m.Model, m.Language, m.PageCount, m.ChunkCount, m.Filename)
			}
			return nil
		},
	}
}

func (a *app) brandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "brands",
		Short: "List brands with manuals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printList(cmd, a.svc.Brands())
		},
	}
}

func (a *app) modelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models [brand]",
		Short: "List models, optionally of one brand",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brand := ""
			if len(args) == 1 {
				brand = args[0]
			}
			return a.printList(cmd, a.svc.Models(brand))
		},
	}
}

func (a *app) printList(cmd *cobra.Command, items []string) error {
	if a.jsonOutput {
		return a.printJSON(cmd, items)
	}
	if len(items) > 0 {
		cmd.Println(strings.Join(items, "\n"))
	}
	return nil
}
