package unfurl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type postgresMetaRepo struct {
	db *sql.DB
}

// NewRepository creates a new PostgreSQL metadata cache repository
func NewRepository(db *sql.DB) Repository {
	if db == nil {
		panic("unfurl: db cannot be nil")
	}
	return &postgresMetaRepo{db: db}
}

// Get retrieves a cached record for the given URL.
// Returns nil, nil if not found (not an error condition).
// Returns error only on database failures.
func (r *postgresMetaRepo) Get(ctx context.Context, url string) (*MetadataRecord, error) {
	query := `
		SELECT url, title, description, image, site_name, hostname, created_at
		FROM meta_cache
		WHERE url = $1
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

// Put inserts a record. Records are immutable, so a row that already exists
// for the URL wins and the insert is a no-op.
func (r *postgresMetaRepo) Put(ctx context.Context, record *MetadataRecord) error {
	if record == nil || record.URL == "" {
		return fmt.Errorf("%w: record has no url", ErrInvalidURL)
	}

	query := `
		INSERT INTO meta_cache (url, title, description, image, site_name, hostname)
		VALUES ($1, $2, $3, $4, $5, $6)
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

func scanEntry(row *sql.Row) (*CacheEntry, error) {
	var entry CacheEntry
	var description sql.NullString
	var createdAt timestamp
	err := row.Scan(
		&entry.URL,
		&entry.Title,
		&description,
		&entry.Image,
		&entry.SiteName,
		&entry.Hostname,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		entry.Description = &description.String
	}
	entry.CreatedAt = createdAt.Time
	return &entry, nil
}

// timestamp scans created_at from either driver. SQLite may hand back the
// raw CURRENT_TIMESTAMP text instead of a time.Time.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable created_at %q", s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NoopRepository is used when caching is disabled
type NoopRepository struct{}

func (NoopRepository) Get(context.Context, string) (*MetadataRecord, error) {
	return nil, nil
}

func (NoopRepository) Put(context.Context, *MetadataRecord) error {
	return nil
}
