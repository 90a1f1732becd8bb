package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/snapshot"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local card store",
		Long: `Commands for the card store backing the pager and card lookups.

The store is chosen with STORAGE_DRIVER (sqlite, postgres, mysql or mongodb) and
STORAGE_DSN.`,
	}

	cmd.AddCommand(newCatalogSyncCmd(opts))
	cmd.AddCommand(newCatalogStatusCmd(opts))
	cmd.AddCommand(newCatalogExportCmd(opts))
	cmd.AddCommand(newCatalogImportCmd(opts))

	return cmd
}

func newCatalogSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Download the remote catalog into the store",
		Example: `  # Sync into the default sqlite database
  combo catalog sync

  # Sync into postgres
  STORAGE_DRIVER=postgres STORAGE_DSN=postgres://localhost/cards combo catalog sync`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := syncCatalog(ctx, newCatalogClient(cfg), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d cards\n", n)
			return nil
		},
	}
}

func newCatalogStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the store is reachable and populated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("store unreachable: %w", err)
			}
			n, err := store.CountCards(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver: %s\ncards:  %d\n", store.Driver(), n)
			if n == 0 {
				fmt.Fprintln(out, "The store is empty. Run 'combo catalog sync'.")
			}
			return nil
		},
	}
}

func newCatalogExportCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the store's cards to a parquet or jsonl snapshot",
		Example: `  combo catalog export --file data/cards.parquet
  combo catalog export --file data/cards.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			cards, err := allCards(ctx, store, 500)
			if err != nil {
				return err
			}
			if err := snapshot.Write(file, cards); err != nil {
				return err
			}
			slog.Info("Snapshot written", "path", file, "cards", len(cards))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "data/cards.parquet", "Snapshot file (.parquet or .jsonl)")
	return cmd
}

func newCatalogImportCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		sample int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a parquet or jsonl snapshot into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			cards, err := snapshot.NewLoader(file).LoadSample(sample)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.UpsertCards(ctx, cards)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d cards from %s\n", n, file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "data/cards.parquet", "Snapshot file (.parquet or .jsonl)")
	cmd.Flags().IntVar(&sample, "sample", -1, "Import only the first N cards (-1 for all)")
	return cmd
}
