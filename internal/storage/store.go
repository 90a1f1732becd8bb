package storage

import (
	"context"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// CardStore is the card table contract shared by the SQL and MongoDB
// backends. It satisfies both pager.Source and search.Querier.
type CardStore interface {
	FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error)
	Query(ctx context.Context, f catalog.Filter) ([]models.Card, error)
	GetCard(ctx context.Context, id int64) (models.Card, bool, error)
	UpsertCards(ctx context.Context, cards []models.Card) (int, error)
	CountCards(ctx context.Context) (int, error)
	CardIDs(ctx context.Context) ([]int64, error)
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ CardStore = (*DB)(nil)
	_ CardStore = (*MongoStore)(nil)
)

// OpenCards opens the card store for driver.
func OpenCards(ctx context.Context, driver, dsn string) (CardStore, error) {
	if driver == DriverMongo {
		return OpenMongo(ctx, dsn)
	}
	return Open(ctx, driver, dsn)
}
