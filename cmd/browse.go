package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/pager"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var (
		from         string
		snapshotPath string
		pages        int
		pageSize     int
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through the catalog in name order",
		Long: `Page through the catalog in name order, printing each page of cards not seen
before. Paging stops after --pages pages or when the catalog is exhausted.`,
		Example: `  # First three pages from the local store
  combo browse --pages 3

  # Everything in a snapshot, 100 at a time
  combo browse --snapshot data/cards.parquet --pages -1 --page-size 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if pageSize <= 0 {
				pageSize = cfg.PageSize
			}

			var store storage.CardStore
			if from == sourceStore && snapshotPath == "" {
				store, err = openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer store.Close()
			}
			src, err := pickSource(from, snapshotPath, newCatalogClient(cfg), store)
			if err != nil {
				return err
			}

			p := pager.New(src, pageSize)
			out := cmd.OutOrStdout()
			for i := 0; pages < 0 || i < pages; i++ {
				page, err := p.LoadNextPage(ctx)
				if err != nil {
					return err
				}
				if len(page.Records) > 0 {
					if !asJSON {
						fmt.Fprintf(out, "-- page %d --\n", p.Cursor())
					}
					if err := printCards(out, page.Records, asJSON); err != nil {
						return err
					}
				}
				if page.Exhausted {
					slog.Info("Reached the end of the catalog", "cards", p.Seen())
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", sourceStore, "Where to page from (store or catalog)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Page through a parquet or jsonl snapshot instead")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load (-1 for all)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Cards per page (defaults to PAGE_SIZE)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print pages as JSON")

	return cmd
}
