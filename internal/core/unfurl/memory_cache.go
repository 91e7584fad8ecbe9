package unfurl

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is an in-process LRU tier in front of another Repository.
// Reads are served from memory when possible; misses fall through to the
// backing store and successful reads are remembered.
type MemoryCache struct {
	next    Repository
	entries *lru.Cache[string, MetadataRecord]
}

// NewMemoryCache wraps next with an LRU holding up to size records
func NewMemoryCache(next Repository, size int) (*MemoryCache, error) {
	if next == nil {
		return nil, ErrNilDependency
	}
	entries, err := lru.New[string, MetadataRecord](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{next: next, entries: entries}, nil
}

func (c *MemoryCache) Get(ctx context.Context, url string) (*MetadataRecord, error) {
	if record, ok := c.entries.Get(url); ok {
		return &record, nil
	}

	record, err := c.next.Get(ctx, url)
	if err != nil || record == nil {
		return record, err
	}

	c.entries.Add(url, *record)
	return record, nil
}

// Put writes through to the backing store only. The store keeps the first
// row for a URL and ignores later inserts, so memory is filled from reads of
// what was actually stored.
func (c *MemoryCache) Put(ctx context.Context, record *MetadataRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidURL)
	}
	return c.next.Put(ctx, record)
}

// Len returns the number of records held in memory
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
