package storage

import (
	"context"
	"database/sql"
	"fmt"

	"adscroll/internal/listing"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	source TEXT NOT NULL,
	listing_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	deposit TEXT NOT NULL DEFAULT '',
	rent TEXT NOT NULL DEFAULT '',
	agency TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source, listing_id)
);
CREATE INDEX IF NOT EXISTS idx_listings_source_position ON listings(source, position);
`

// SQLiteStore keeps listings in a local SQLite database.
type SQLiteStore struct {
	sqlStore
}

// OpenSQLite opens (or creates) the database at path. ":memory:" works for
// throwaway stores.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{sqlStore{
		db:   db,
		bind: func(int) string { return "?" },
	}}, nil
}

func saveSQLiteFile(path, source string, rs *listing.ResultSet) error {
	store, err := OpenSQLite(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(context.Background(), source, rs)
	return err
}
