package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/handlers"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/search"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/sessions"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

const sessionTTL = 24 * time.Hour

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port         string
		staticDir    string
		browseFrom   string
		searchFrom   string
		snapshotPath string
		imageStore   string
		noWatch      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the combo composer API server",
		Long: `Starts the JSON API and static front end on the specified port.

Each browser session gets its own catalog pager and composition editor. Catalog
pages are read from the card store by default and searches go to the remote
catalog; a snapshot file replaces both for offline use.

When SYNC_SCHEDULE is set the remote catalog is synced into the store on that
cron schedule.`,
		Example: `  # Start server on default port 8888
  combo serve

  # Page and search the local store only
  combo serve --browse-from store --search-from store

  # Serve an offline snapshot
  combo serve --snapshot data/cards.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				if needsStore(browseFrom, searchFrom, snapshotPath, imageStore, cfg.SyncSchedule) {
					return err
				}
				slog.Warn("Card store unavailable, saved compositions disabled", "err", err)
			}
			if store != nil {
				defer store.Close()
			}

			client := newCatalogClient(cfg)
			browseSource, err := pickSource(browseFrom, snapshotPath, client, store)
			if err != nil {
				return err
			}
			searchSource, err := pickSource(searchFrom, snapshotPath, client, store)
			if err != nil {
				return err
			}
			blobs, err := pickBlobStore(imageStore, cfg, store)
			if err != nil {
				return err
			}

			searchClient := search.New(searchSource, cfg.SearchDebounce, nil)
			defer searchClient.Close()

			resolver := images.NewResolver(cfg.ImageOptions())
			if !noWatch && cfg.Images.LocalDir != "" {
				go func() {
					if err := resolver.WatchLocal(ctx); err != nil {
						slog.Warn("Local image watch disabled", "err", err)
					}
				}()
			}

			sessionStore := sessions.New(browseSource, cfg.PageSize)
			handler := handlers.New(handlers.Deps{
				Sessions:  sessionStore,
				Search:    searchClient,
				Resolver:  resolver,
				Store:     store,
				Blobs:     blobs,
				Saved:     savedCompositions(store),
				StaticDir: staticDir,
			})

			scheduler, err := newScheduler(ctx, cfg.SyncSchedule, sessionStore, func(ctx context.Context) error {
				_, err := syncCatalog(ctx, client, store)
				return err
			})
			if err != nil {
				return err
			}
			scheduler.Start()
			defer scheduler.Stop()

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Combo composer available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&staticDir, "static", "static", "Directory with the front end files")
	cmd.Flags().StringVar(&browseFrom, "browse-from", sourceStore, "Source for catalog pages (store or catalog)")
	cmd.Flags().StringVar(&searchFrom, "search-from", sourceCatalog, "Source for searches (catalog or store)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Serve pages and searches from a parquet or jsonl snapshot")
	cmd.Flags().StringVar(&imageStore, "image-store", imageStoreDir, "Where /card_images files come from (dir, db or object)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the local image directory")

	return cmd
}

// savedCompositions returns the store's composition table when it has one.
func savedCompositions(store storage.CardStore) handlers.CompositionStore {
	if db, ok := store.(*storage.DB); ok {
		return db
	}
	return nil
}

// newScheduler registers the hourly session sweep and, when syncSpec is set,
// the catalog sync.
func newScheduler(ctx context.Context, syncSpec string, sessionStore *sessions.Store, sync func(context.Context) error) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 1h", func() {
		if n := sessionStore.Expire(time.Now().Add(-sessionTTL)); n > 0 {
			slog.Info("Expired idle sessions", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule session expiry: %w", err)
	}

	if syncSpec != "" {
		if _, err := c.AddFunc(syncSpec, func() {
			if err := sync(ctx); err != nil {
				slog.Error("Scheduled catalog sync failed", "err", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", syncSpec, err)
		}
		slog.Info("Catalog sync scheduled", "schedule", syncSpec)
	}
	return c, nil
}
