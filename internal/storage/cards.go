package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

const cardColumns = `id, name, category, description, raw_data, image_url`

// FetchPage returns limit cards starting at offset in name order.
func (db *DB) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	q := db.dialect.rebind(`SELECT ` + cardColumns + ` FROM cards ORDER BY name, id LIMIT ? OFFSET ?`)
	cards, err := db.queryCards(ctx, q, limit, offset)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("fetch page at %d: %w", offset, err)
	}
	return catalog.Page{Cards: cards, Raw: len(cards)}, nil
}

// Query returns cards whose name or description contains the filter text,
// ignoring case. Both fields set means either may match.
func (db *DB) Query(ctx context.Context, f catalog.Filter) ([]models.Card, error) {
	var (
		where []string
		args  []any
	)
	like := `LIKE ?` + db.dialect.likeEscape
	if f.Name != "" {
		where = append(where, `LOWER(name) `+like)
		args = append(args, likePattern(f.Name))
	}
	if f.Description != "" {
		where = append(where, `LOWER(description) `+like)
		args = append(args, likePattern(f.Description))
	}
	if len(where) == 0 {
		return nil, nil
	}

	cond := where[0]
	if len(where) == 2 {
		cond = where[0] + ` OR ` + where[1]
	}
	q := db.dialect.rebind(`SELECT ` + cardColumns + ` FROM cards WHERE ` + cond + ` ORDER BY name, id`)
	cards, err := db.queryCards(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return cards, nil
}

// GetCard returns one card by id.
func (db *DB) GetCard(ctx context.Context, id int64) (models.Card, bool, error) {
	q := db.dialect.rebind(`SELECT ` + cardColumns + ` FROM cards WHERE id = ?`)
	cards, err := db.queryCards(ctx, q, id)
	if err != nil {
		return models.Card{}, false, fmt.Errorf("get card %d: %w", id, err)
	}
	if len(cards) == 0 {
		return models.Card{}, false, nil
	}
	return cards[0], true, nil
}

// UpsertCards inserts or replaces cards in one transaction.
func (db *DB) UpsertCards(ctx context.Context, cards []models.Card) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.dialect.rebind(db.dialect.upsertCard))
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range cards {
		raw := c.RawData
		if raw == "" {
			raw = "{}"
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Category, c.Description, raw, c.ImageURL, now); err != nil {
			return 0, fmt.Errorf("upsert card %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(cards), nil
}

// CountCards returns the number of stored cards.
func (db *DB) CountCards(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}

// CardIDs returns every stored card id in name order.
func (db *DB) CardIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM cards ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list card ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]models.Card, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCards(rows)
}

func scanCards(rows *sql.Rows) ([]models.Card, error) {
	cards := []models.Card{}
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &c.Description, &c.RawData, &c.ImageURL); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
