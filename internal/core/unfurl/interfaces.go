package unfurl

import (
	"context"
	"time"
)

// Repository is the cache gateway for metadata records
type Repository interface {
	// Get retrieves the cached record for the given URL.
	// Returns nil, nil if not found.
	// Returns error only on storage failures.
	Get(ctx context.Context, url string) (*MetadataRecord, error)

	// Put inserts a record. An existing row for the same URL is left
	// untouched.
	Put(ctx context.Context, record *MetadataRecord) error
}

// Fetcher retrieves a page over HTTP
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Extractor turns a fetched page into metadata
type Extractor interface {
	// Extract returns ErrNotFound when the page carries no usable metadata.
	Extract(page *Page) (*ExtractedMetadata, error)
}

// Service resolves link metadata
type Service interface {
	// Resolve returns the metadata record for a normalized URL, consulting the
	// cache first and persisting new records in the background.
	Resolve(ctx context.Context, url string) (*MetadataRecord, error)

	// Extract fetches and extracts a URL without touching the cache.
	Extract(ctx context.Context, url string) (*ExtractedMetadata, error)

	// Wait blocks until background cache writes have finished. Results
	// resolved afterwards are returned but no longer cached.
	Wait()
}

// Recorder receives resolution events for observability. It must never
// influence control flow.
type Recorder interface {
	CacheLookup(outcome string)
	CacheWrite(outcome string)
	Extraction(outcome string, duration time.Duration)
}

// Outcome labels passed to Recorder
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeError    = "error"
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
)

// NoopRecorder implements Recorder and discards every event
type NoopRecorder struct{}

func (NoopRecorder) CacheLookup(string) {}

func (NoopRecorder) CacheWrite(string) {}

func (NoopRecorder) Extraction(string, time.Duration) {}
