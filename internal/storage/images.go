package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
)

// ImageBlobs stores card images in the card_images table. It satisfies
// images.BlobStore.
type ImageBlobs struct {
	db *DB
}

// Images returns the blob store backed by db.
func (db *DB) Images() ImageBlobs {
	return ImageBlobs{db: db}
}

var _ images.BlobStore = ImageBlobs{}

func (b ImageBlobs) Has(ctx context.Context, id int64) (bool, error) {
	var n int
	q := b.db.dialect.rebind(`SELECT COUNT(*) FROM card_images WHERE card_id = ?`)
	if err := b.db.conn.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check image %d: %w", id, err)
	}
	return n > 0, nil
}

func (b ImageBlobs) Get(ctx context.Context, id int64) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)
	q := b.db.dialect.rebind(`SELECT data, content_type FROM card_images WHERE card_id = ?`)
	err := b.db.conn.QueryRowContext(ctx, q, id).Scan(&data, &contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", images.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read image %d: %w", id, err)
	}
	return data, contentType, nil
}

func (b ImageBlobs) Put(ctx context.Context, id int64, data []byte, contentType string) error {
	q := b.db.dialect.rebind(b.db.dialect.upsertBlob)
	if _, err := b.db.conn.ExecContext(ctx, q, id, contentType, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("store image %d: %w", id, err)
	}
	return nil
}
