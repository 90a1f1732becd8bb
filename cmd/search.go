package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/search"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		from         string
		snapshotPath string
		asJSON       bool
		interactive  bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search cards by name or description",
		Long: `Search the catalog for cards whose name or description contains the query,
ignoring case.

With --interactive each line read from stdin is a new query. Queries are debounced
and only the results of the latest one are printed.`,
		Example: `  # One-off search against the remote catalog
  combo search "blue-eyes"

  # Search the local store and print JSON
  combo search dragon --from store --json

  # Type queries line by line
  combo search --interactive`,
		Args: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
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

			out := cmd.OutOrStdout()
			if interactive {
				return runInteractiveSearch(cmd.InOrStdin(), out, src, cfg.SearchDebounce, asJSON)
			}

			client := search.New(src, cfg.SearchDebounce, nil)
			defer client.Close()
			cards, err := client.Search(ctx, args[0])
			if err != nil {
				return err
			}
			return printCards(out, cards, asJSON)
		},
	}

	cmd.Flags().StringVar(&from, "from", sourceCatalog, "Where to search (catalog or store)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Search a parquet or jsonl snapshot instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read queries from stdin")

	return cmd
}

func runInteractiveSearch(in io.Reader, out io.Writer, src search.Querier, quiet time.Duration, asJSON bool) error {
	var (
		mu        sync.Mutex
		delivered uint64
	)
	notify := make(chan struct{}, 1)

	client := search.New(src, quiet, func(res search.Result) {
		if res.Notice != "" {
			fmt.Fprintln(out, res.Notice)
		} else {
			fmt.Fprintf(out, "%d cards match %q\n", len(res.Cards), res.Query)
			if err := printCards(out, res.Cards, asJSON); err != nil {
				slog.Error("Unable to print results", "err", err)
			}
		}
		mu.Lock()
		delivered = res.Seq
		mu.Unlock()
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer client.Close()

	var last uint64
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		last = client.Submit(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read queries: %w", err)
	}
	if last == 0 {
		return nil
	}

	// Stdin is done; wait for the last submission to be answered.
	timeout := time.After(quiet + 30*time.Second)
	for {
		mu.Lock()
		done := delivered == last
		mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-notify:
		case <-timeout:
			return fmt.Errorf("timed out waiting for search results")
		}
	}
}

func printCards(w io.Writer, cards []models.Card, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if cards == nil {
			cards = []models.Card{}
		}
		return enc.Encode(cards)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY")
	for _, c := range cards {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Category)
	}
	return tw.Flush()
}
