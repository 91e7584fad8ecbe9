package unfurl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_ServesRepeatReadsFromMemory(t *testing.T) {
	var gets atomic.Int32
	backing := &mockRepository{
		getFunc: func(ctx context.Context, url string) (*MetadataRecord, error) {
			gets.Add(1)
			return &MetadataRecord{URL: url, Title: "Stored"}, nil
		},
	}
	cache, err := NewMemoryCache(backing, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		record, err := cache.Get(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "Stored", record.Title)
	}

	assert.Equal(t, int32(1), gets.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_MissIsNotRemembered(t *testing.T) {
	var gets atomic.Int32
	backing := &mockRepository{
		getFunc: func(ctx context.Context, url string) (*MetadataRecord, error) {
			gets.Add(1)
			return nil, nil
		},
	}
	cache, err := NewMemoryCache(backing, 8)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		record, err := cache.Get(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Nil(t, record)
	}
	assert.Equal(t, int32(2), gets.Load())
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_BackingErrorPropagates(t *testing.T) {
	backing := &mockRepository{
		getFunc: func(ctx context.Context, url string) (*MetadataRecord, error) {
			return nil, errors.New("db down")
		},
	}
	cache, err := NewMemoryCache(backing, 8)
	require.NoError(t, err)

	_, err = cache.Get(context.Background(), "https://example.com")
	assert.Error(t, err)
}

func TestMemoryCache_PutWritesThrough(t *testing.T) {
	backing := &mockRepository{}
	cache, err := NewMemoryCache(backing, 8)
	require.NoError(t, err)

	record := &MetadataRecord{URL: "https://example.com", Title: "New"}
	require.NoError(t, cache.Put(context.Background(), record))
	assert.Equal(t, 1, backing.putCount())
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_ServesStoredRowAfterIgnoredPut(t *testing.T) {
	// The store already holds "first" and silently ignores the second insert
	var gets atomic.Int32
	backing := &mockRepository{
		getFunc: func(ctx context.Context, url string) (*MetadataRecord, error) {
			gets.Add(1)
			return &MetadataRecord{URL: url, Title: "first"}, nil
		},
	}
	cache, err := NewMemoryCache(backing, 8)
	require.NoError(t, err)

	require.NoError(t, cache.Put(context.Background(), &MetadataRecord{URL: "https://example.com", Title: "second"}))

	got, err := cache.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	// The returned record is a copy
	got.Title = "mutated"
	again, err := cache.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Title)
	assert.Equal(t, int32(1), gets.Load())
}

func TestMemoryCache_FailedPutNotRemembered(t *testing.T) {
	backing := &mockRepository{
		putFunc: func(ctx context.Context, record *MetadataRecord) error {
			return errors.New("constraint violation")
		},
	}
	cache, err := NewMemoryCache(backing, 8)
	require.NoError(t, err)

	err = cache.Put(context.Background(), &MetadataRecord{URL: "https://example.com"})
	assert.Error(t, err)
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_Eviction(t *testing.T) {
	backing := &mockRepository{
		getFunc: func(ctx context.Context, url string) (*MetadataRecord, error) {
			return &MetadataRecord{URL: url}, nil
		},
	}
	cache, err := NewMemoryCache(backing, 2)
	require.NoError(t, err)

	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		_, err := cache.Get(context.Background(), u)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
}

func TestNewMemoryCache_Validation(t *testing.T) {
	_, err := NewMemoryCache(nil, 8)
	assert.True(t, errors.Is(err, ErrNilDependency))

	_, err = NewMemoryCache(&mockRepository{}, 0)
	assert.Error(t, err)
}
