// Package storage is the durable backend: a card table mirrored from the
// catalog, card image blobs and saved compositions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongo    = "mongodb"
)

// DB is a SQL store. Queries are written with ? placeholders and rebound for
// the driver in use.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// Open connects to driver at dsn and creates missing tables.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if d.name == DriverSQLite {
		if dsn == "" {
			dsn = "data/cards.db"
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	}

	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.name == DriverSQLite {
		// One writer only; an in-memory database also lives on a single connection.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(10 * time.Minute)
	}

	db := &DB{conn: conn, dialect: d}
	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("Storage opened", "driver", d.name)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the driver name the store was opened with.
func (db *DB) Driver() string {
	return db.dialect.name
}

// Ping checks the connection within ten seconds.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", db.dialect.name, err)
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range db.dialect.migrations {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			if db.dialect.name == DriverMySQL && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

type dialect struct {
	name       string
	driver     string
	numbered   bool   // $1, $2 placeholders
	likeEscape string // clause appended to LIKE
	upsertCard string
	upsertBlob string
	migrations []string
}

func dialectFor(name string) (dialect, error) {
	switch name {
	case "", DriverSQLite:
		return dialect{
			name:       DriverSQLite,
			driver:     "sqlite",
			likeEscape: ` ESCAPE '\'`,
			upsertCard: `INSERT INTO cards (id, name, category, description, raw_data, image_url, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category,
				description = excluded.description, raw_data = excluded.raw_data,
				image_url = excluded.image_url, updated_at = excluded.updated_at`,
			upsertBlob: `INSERT INTO card_images (card_id, content_type, data, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(card_id) DO UPDATE SET content_type = excluded.content_type,
				data = excluded.data, updated_at = excluded.updated_at`,
			migrations: []string{
				`CREATE TABLE IF NOT EXISTS cards (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					raw_data TEXT NOT NULL DEFAULT '{}',
					image_url TEXT NOT NULL DEFAULT '',
					updated_at INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name)`,
				`CREATE TABLE IF NOT EXISTS card_images (
					card_id INTEGER PRIMARY KEY,
					content_type TEXT NOT NULL,
					data BLOB NOT NULL,
					updated_at INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS compositions (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					document TEXT NOT NULL,
					steps INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL
				)`,
			},
		}, nil
	case DriverPostgres:
		return dialect{
			name:     DriverPostgres,
			driver:   "postgres",
			numbered: true,
			upsertCard: `INSERT INTO cards (id, name, category, description, raw_data, image_url, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category,
				description = EXCLUDED.description, raw_data = EXCLUDED.raw_data,
				image_url = EXCLUDED.image_url, updated_at = EXCLUDED.updated_at`,
			upsertBlob: `INSERT INTO card_images (card_id, content_type, data, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (card_id) DO UPDATE SET content_type = EXCLUDED.content_type,
				data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
			migrations: []string{
				`CREATE TABLE IF NOT EXISTS cards (
					id BIGINT PRIMARY KEY,
					name TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					raw_data TEXT NOT NULL DEFAULT '{}',
					image_url TEXT NOT NULL DEFAULT '',
					updated_at BIGINT NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name)`,
				`CREATE TABLE IF NOT EXISTS card_images (
					card_id BIGINT PRIMARY KEY,
					content_type TEXT NOT NULL,
					data BYTEA NOT NULL,
					updated_at BIGINT NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS compositions (
					id UUID PRIMARY KEY,
					name TEXT NOT NULL,
					document TEXT NOT NULL,
					steps INTEGER NOT NULL DEFAULT 0,
					created_at BIGINT NOT NULL
				)`,
			},
		}, nil
	case DriverMySQL:
		return dialect{
			name:   DriverMySQL,
			driver: "mysql",
			upsertCard: `INSERT INTO cards (id, name, category, description, raw_data, image_url, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE name = VALUES(name), category = VALUES(category),
				description = VALUES(description), raw_data = VALUES(raw_data),
				image_url = VALUES(image_url), updated_at = VALUES(updated_at)`,
			upsertBlob: `INSERT INTO card_images (card_id, content_type, data, updated_at) VALUES (?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE content_type = VALUES(content_type),
				data = VALUES(data), updated_at = VALUES(updated_at)`,
			migrations: []string{
				`CREATE TABLE IF NOT EXISTS cards (
					id BIGINT PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					category VARCHAR(64) NOT NULL DEFAULT '',
					description TEXT NOT NULL,
					raw_data MEDIUMTEXT NOT NULL,
					image_url VARCHAR(512) NOT NULL DEFAULT '',
					updated_at BIGINT NOT NULL DEFAULT 0
				) CHARACTER SET utf8mb4`,
				`CREATE INDEX idx_cards_name ON cards(name)`,
				`CREATE TABLE IF NOT EXISTS card_images (
					card_id BIGINT PRIMARY KEY,
					content_type VARCHAR(64) NOT NULL,
					data LONGBLOB NOT NULL,
					updated_at BIGINT NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS compositions (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					document MEDIUMTEXT NOT NULL,
					steps INT NOT NULL DEFAULT 0,
					created_at BIGINT NOT NULL
				) CHARACTER SET utf8mb4`,
			},
		}, nil
	}
	return dialect{}, fmt.Errorf("unsupported storage driver %q", name)
}

// rebind rewrites ? placeholders as $1, $2, ... for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// likePattern builds a case-folded substring pattern with wildcards escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
