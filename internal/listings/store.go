package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the SQLite-backed listings corpus. All public methods are
// safe for concurrent use (SQLite serializes writes).
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps an open database handle. The schema is created by
// Migrate before first use.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("store", "listings")}
}

// Migrate creates the listings schema.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL,
		listing_type  TEXT NOT NULL,
		price         INTEGER NOT NULL,
		location      TEXT NOT NULL,
		city          TEXT NOT NULL DEFAULT 'Kathmandu',
		bedrooms      INTEGER NOT NULL DEFAULT 0,
		bathrooms     INTEGER NOT NULL DEFAULT 0,
		area_sqft     INTEGER NOT NULL DEFAULT 0,
		amenities     TEXT NOT NULL DEFAULT '[]',
		match_score   INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location);
	CREATE INDEX IF NOT EXISTS idx_listings_type ON listings(property_type, listing_type);
	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
	CREATE INDEX IF NOT EXISTS idx_listings_score ON listings(match_score);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate listings: %w", err)
	}
	return nil
}

// SeedIfEmpty loads the built-in corpus when the table has no rows.
// Returns the number of listings inserted (zero when already seeded).
func (s *Store) SeedIfEmpty(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	n, err := s.insertAll(ctx, seedListings())
	if err != nil {
		return 0, err
	}
	s.logger.Info("seeded listings corpus", "count", n)
	return n, nil
}

// ImportJSON reads a JSON array of listings and upserts them.
// Listings without an id get a fresh one.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var items []Listing
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("decode listings JSON: %w", err)
	}
	return s.insertAll(ctx, items)
}

func (s *Store) insertAll(ctx context.Context, items []Listing) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO listings
		(id, title, description, property_type, listing_type, price,
		 location, city, bedrooms, bathrooms, area_sqft, amenities,
		 match_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, l := range items {
		if l.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return inserted, fmt.Errorf("listing id: %w", err)
			}
			l.ID = id.String()
		}
		if l.City == "" {
			l.City = "Kathmandu"
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now()
		}
		amenities, err := json.Marshal(l.Amenities)
		if err != nil {
			return inserted, fmt.Errorf("marshal amenities: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			l.ID, l.Title, l.Description, l.PropertyType, l.ListingType,
			l.Price, l.Location, l.City, l.Bedrooms, l.Bathrooms,
			l.AreaSqft, string(amenities), l.MatchScore,
			l.CreatedAt.UnixMilli(),
		); err != nil {
			return inserted, fmt.Errorf("insert listing %s: %w", l.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}

// Search filters the corpus by criteria and returns at most 10
// listings ordered by match_score descending. Zero-valued criteria
// fields add no constraint.
func (s *Store) Search(ctx context.Context, c Criteria) ([]Listing, error) {
	var where []string
	var args []any

	if c.Location != "" {
		where = append(where, `(LOWER(location) LIKE '%' || ? || '%' OR LOWER(city) LIKE '%' || ? || '%')`)
		loc := strings.ToLower(c.Location)
		args = append(args, loc, loc)
	}
	if c.PropertyType != "" {
		where = append(where, `property_type = ?`)
		args = append(args, c.PropertyType)
	}
	if c.ListingType != "" {
		where = append(where, `listing_type = ?`)
		args = append(args, c.ListingType)
	}
	if c.Bedrooms > 0 {
		where = append(where, `bedrooms = ?`)
		args = append(args, c.Bedrooms)
	}
	if c.MinPrice > 0 {
		where = append(where, `price >= ?`)
		args = append(args, c.MinPrice)
	}
	if c.MaxPrice > 0 {
		where = append(where, `price <= ?`)
		args = append(args, c.MaxPrice)
	}

	query := `SELECT id, title, description, property_type, listing_type,
		price, location, city, bedrooms, bathrooms, area_sqft, amenities,
		match_score, created_at FROM listings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY match_score DESC LIMIT 10`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Get returns one listing by id, or sql.ErrNoRows if absent.
func (s *Store) Get(ctx context.Context, id string) (*Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, description,
		property_type, listing_type, price, location, city, bedrooms,
		bathrooms, area_sqft, amenities, match_score, created_at
		FROM listings WHERE id = ?`, id)

	l, err := scanListing(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return &l, nil
}

// Stats returns aggregate corpus statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN listing_type = 'rent' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN listing_type = 'sale' THEN 1 ELSE 0 END), 0),
		       CAST(COALESCE(AVG(CASE WHEN listing_type = 'rent' THEN price END), 0) AS INTEGER),
		       CAST(COALESCE(AVG(CASE WHEN listing_type = 'sale' THEN price END), 0) AS INTEGER)
		FROM listings`).Scan(&st.Total, &st.ForRent, &st.ForSale, &st.AvgRentPrice, &st.AvgSalePrice)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	return &st, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (Listing, error) {
	var l Listing
	var amenities string
	var createdMs int64

	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.PropertyType,
		&l.ListingType, &l.Price, &l.Location, &l.City, &l.Bedrooms,
		&l.Bathrooms, &l.AreaSqft, &amenities, &l.MatchScore, &createdMs)
	if err != nil {
		return Listing{}, err
	}

	if amenities != "" && amenities != "[]" {
		if err := json.Unmarshal([]byte(amenities), &l.Amenities); err != nil {
			return Listing{}, fmt.Errorf("decode amenities for %s: %w", l.ID, err)
		}
	}
	l.CreatedAt = time.UnixMilli(createdMs)
	return l, nil
}
