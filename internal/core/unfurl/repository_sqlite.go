package unfurl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type sqliteMetaRepo struct {
	db *sql.DB
}

// NewSQLiteRepository creates a metadata cache repository on a SQLite
// database opened with the modernc.org/sqlite driver
func NewSQLiteRepository(db *sql.DB) Repository {
	if db == nil {
		panic("unfurl: db cannot be nil")
	}
	return &sqliteMetaRepo{db: db}
}

func (r *sqliteMetaRepo) Get(ctx context.Context, url string) (*MetadataRecord, error) {
	query := `
		SELECT url, title, description, image, site_name, hostname, created_at
		FROM meta_cache
		WHERE url = ?
		LIMIT 1
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meta cache entry: %w", err)
	}

	return entry.Record(), nil
}

func (r *sqliteMetaRepo) Put(ctx context.Context, record *MetadataRecord) error {
	if record == nil || record.URL == "" {
		return fmt.Errorf("%w: record has no url", ErrInvalidURL)
	}

	query := `
		INSERT INTO meta_cache (url, title, description, image, site_name, hostname)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		record.URL,
		record.Title,
		nullString(record.Description),
		record.Image,
		record.SiteName,
		record.Hostname,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meta cache entry: %w", err)
	}

	return nil
}
