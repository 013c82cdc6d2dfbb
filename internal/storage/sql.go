package storage

import (
	"context"
	"database/sql"
	"fmt"

	"adscroll/internal/listing"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Rows are keyed by (source, listing_id); source is the feed URL.
type sqlStore struct {
	db *sql.DB
	// bind returns the placeholder for the n-th (1-based) argument.
	bind func(n int) string
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Save upserts every listing of rs under source and returns the number of rows written.
// position records discovery order so Load can restore it.
func (s *sqlStore) Save(ctx context.Context, source string, rs *listing.ResultSet) (total int, err error) {
	if rs.Len() == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b := s.bind
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO listings (source, listing_id, position, title, deposit, rent, agency, link)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (source, listing_id) DO UPDATE
		SET
			position = excluded.position,
			title = excluded.title,
			deposit = excluded.deposit,
			rent = excluded.rent,
			agency = excluded.agency,
			link = excluded.link,
			updated_at = CURRENT_TIMESTAMP`,
		b(1), b(2), b(3), b(4), b(5), b(6), b(7), b(8)))
	if err != nil {
		return 0, fmt.Errorf("prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, id := range rs.IDs() {
		rec, _ := rs.Get(id)
		if _, err = stmt.ExecContext(ctx,
			source, id, i, rec.Title, rec.Deposit, rec.Rent, rec.Agency, rec.Link,
		); err != nil {
			return 0, fmt.Errorf("insert listing %q: %w", id, err)
		}
		total++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return total, nil
}

// Load returns the listings stored under source in discovery order.
func (s *sqlStore) Load(ctx context.Context, source string) (*listing.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT listing_id, title, deposit, rent, agency, link
		FROM listings
		WHERE source = %s
		ORDER BY position, listing_id`, s.bind(1)), source)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	rs := listing.NewResultSet()
	for rows.Next() {
		var id listing.ID
		var rec listing.Record
		if err := rows.Scan(&id, &rec.Title, &rec.Deposit, &rec.Rent, &rec.Agency, &rec.Link); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		rs.Add(id, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	return rs, nil
}

// Sources lists every source with stored listings.
func (s *sqlStore) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM listings ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
