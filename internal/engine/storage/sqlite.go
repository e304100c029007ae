package storage

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/shenghan/artmap/internal/model"
)

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// Optimize for write throughput
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artworks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		artwork_id INTEGER NOT NULL,
		source TEXT NOT NULL,
		title TEXT,
		artist_display TEXT,
		date_display TEXT,
		date_start INTEGER,
		date_end INTEGER,
		medium TEXT,
		dimensions TEXT,
		description TEXT,
		place_of_origin TEXT,
		department TEXT,
		gallery_title TEXT,
		credit_line TEXT,
		is_public_domain INTEGER,
		image_large TEXT,
		image_medium TEXT,
		image_small TEXT,
		valid_image TEXT,
		region TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source, artwork_id)
	);
	CREATE INDEX IF NOT EXISTS idx_artworks_region ON artworks(region);
	CREATE INDEX IF NOT EXISTS idx_artworks_dates ON artworks(date_start, date_end);
	CREATE INDEX IF NOT EXISTS idx_artworks_department ON artworks(department);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InsertBatch stores a page of artworks, ignoring records already present
// for the same source. Returns the number of newly inserted rows.
func (s *Store) InsertBatch(artworks []model.Artwork) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO artworks
		(artwork_id, source, title, artist_display, date_display, date_start, date_end,
		 medium, dimensions, description, place_of_origin, department, gallery_title,
		 credit_line, is_public_domain, image_large, image_medium, image_small,
		 valid_image, region)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range artworks {
		res, err := stmt.Exec(
			a.ID, a.Source, a.Title, a.ArtistDisplay, a.DateDisplay,
			a.DateStart, a.DateEnd, a.Medium, a.Dimensions, a.Description,
			a.PlaceOfOrigin, a.Department, a.GalleryTitle, a.CreditLine,
			a.IsPublicDomain, a.ImageLarge, a.ImageMedium, a.ImageSmall,
			a.ValidImage, a.Region,
		)
		if err != nil {
			continue
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}

	return inserted, nil
}

// List returns all stored artworks ordered by insertion time.
func (s *Store) List() ([]model.Artwork, error) {
	rows, err := s.db.Query(`
		SELECT artwork_id, source, title, artist_display, date_display,
		       date_start, date_end, medium, dimensions, description,
		       place_of_origin, department, gallery_title, credit_line,
		       is_public_domain, image_large, image_medium, image_small,
		       valid_image, region
		FROM artworks ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing artworks: %w", err)
	}
	defer rows.Close()

	var artworks []model.Artwork
	for rows.Next() {
		var a model.Artwork
		if err := rows.Scan(
			&a.ID, &a.Source, &a.Title, &a.ArtistDisplay, &a.DateDisplay,
			&a.DateStart, &a.DateEnd, &a.Medium, &a.Dimensions, &a.Description,
			&a.PlaceOfOrigin, &a.Department, &a.GalleryTitle, &a.CreditLine,
			&a.IsPublicDomain, &a.ImageLarge, &a.ImageMedium, &a.ImageSmall,
			&a.ValidImage, &a.Region,
		); err != nil {
			return nil, fmt.Errorf("scanning artwork: %w", err)
		}
		artworks = append(artworks, a)
	}
	return artworks, rows.Err()
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM artworks").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
