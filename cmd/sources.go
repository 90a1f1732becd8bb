package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/config"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/pager"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/search"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/snapshot"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

const (
	sourceCatalog = "catalog"
	sourceStore   = "store"

	imageStoreDir    = "dir"
	imageStoreDB     = "db"
	imageStoreObject = "object"
)

// cardSource is what the remote catalog, the card stores and a loaded
// snapshot all provide.
type cardSource interface {
	pager.Source
	search.Querier
}

func newCatalogClient(cfg config.Config) *catalog.Client {
	return catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.ImageURL)
}

// openStore checks the backend settings and opens the card store.
func openStore(ctx context.Context, cfg config.Config) (storage.CardStore, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, err
	}
	store, err := storage.OpenCards(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	slog.Debug("Opened card store", "driver", store.Driver())
	return store, nil
}

// pickSource resolves a --source flag. A snapshot path, when given, wins.
func pickSource(name, snapshotPath string, client *catalog.Client, store storage.CardStore) (cardSource, error) {
	if snapshotPath != "" {
		cards, err := snapshot.NewLoader(snapshotPath).Load()
		if err != nil {
			return nil, err
		}
		slog.Info("Using catalog snapshot", "path", snapshotPath, "cards", len(cards))
		return snapshot.NewIndex(cards), nil
	}

	switch name {
	case sourceCatalog:
		return client, nil
	case sourceStore:
		if store == nil {
			return nil, fmt.Errorf("source %q needs a card store", name)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown source %q (use %s or %s)", name, sourceCatalog, sourceStore)
	}
}

// pickBlobStore resolves an --image-store flag. The database blob table is
// only available on the SQL drivers; the object bucket needs STORAGE_URL and
// STORAGE_KEY.
func pickBlobStore(kind string, cfg config.Config, store storage.CardStore) (images.BlobStore, error) {
	switch kind {
	case imageStoreDir:
		return images.DirStore{Dir: cfg.Images.LocalDir}, nil
	case imageStoreDB:
		db, ok := store.(*storage.DB)
		if !ok {
			return nil, fmt.Errorf("image store %q needs a SQL driver, have %s", kind, cfg.Storage.Driver)
		}
		return db.Images(), nil
	case imageStoreObject:
		if cfg.Storage.URL == "" || cfg.Storage.Key == "" {
			return nil, fmt.Errorf("image store %q needs STORAGE_URL and STORAGE_KEY", kind)
		}
		return images.NewObjectStore(cfg.Storage.URL, cfg.Storage.Bucket, cfg.Storage.Key), nil
	default:
		return nil, fmt.Errorf("unknown image store %q (use %s, %s or %s)", kind, imageStoreDir, imageStoreDB, imageStoreObject)
	}
}

// needsStore reports whether serve cannot start without the card store.
// Otherwise the store is opened if it can be, for saved compositions.
func needsStore(browseFrom, searchFrom, snapshotPath, imageStore, syncSchedule string) bool {
	if imageStore == imageStoreDB || syncSchedule != "" {
		return true
	}
	if snapshotPath != "" {
		return false
	}
	return browseFrom == sourceStore || searchFrom == sourceStore
}

// allCards reads every card from a source page by page.
func allCards(ctx context.Context, src pager.Source, pageSize int) ([]models.Card, error) {
	var out []models.Card
	for offset := 0; ; offset += pageSize {
		page, err := src.FetchPage(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Cards...)
		if page.Raw < pageSize {
			return out, nil
		}
	}
}

// syncCatalog downloads the remote catalog into the store.
func syncCatalog(ctx context.Context, client *catalog.Client, store storage.CardStore) (int, error) {
	cards, err := client.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	n, err := store.UpsertCards(ctx, cards)
	if err != nil {
		return 0, fmt.Errorf("failed to store cards: %w", err)
	}
	slog.Info("Catalog synced", "fetched", len(cards), "stored", n, "driver", store.Driver())
	return n, nil
}
