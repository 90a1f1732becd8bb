package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/codec"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// ErrCompositionNotFound is returned for an unknown saved composition id.
var ErrCompositionNotFound = errors.New("composition not found")

// SavedComposition describes a stored composition document.
type SavedComposition struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Steps     int       `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveComposition stores c in its export form and returns the new id.
func (db *DB) SaveComposition(ctx context.Context, name string, c models.Composition) (string, error) {
	doc, err := codec.Export(c)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	q := db.dialect.rebind(`INSERT INTO compositions (id, name, document, steps, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := db.conn.ExecContext(ctx, q, id, name, string(doc), len(c), time.Now().Unix()); err != nil {
		return "", fmt.Errorf("save composition: %w", err)
	}
	return id, nil
}

// LoadComposition reads a saved composition back through the importer.
func (db *DB) LoadComposition(ctx context.Context, id string) (models.Composition, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompositionNotFound, id)
	}
	var doc string
	q := db.dialect.rebind(`SELECT document FROM compositions WHERE id = ?`)
	err := db.conn.QueryRowContext(ctx, q, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCompositionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load composition %s: %w", id, err)
	}
	return codec.Import([]byte(doc))
}

// ListCompositions returns saved compositions, newest first.
func (db *DB) ListCompositions(ctx context.Context) ([]SavedComposition, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, steps, created_at FROM compositions ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list compositions: %w", err)
	}
	defer rows.Close()

	out := []SavedComposition{}
	for rows.Next() {
		var (
			s       SavedComposition
			created int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Steps, &created); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
