package unfurl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PlaceholderImagePath is served from the static directory and used when a
// page has no image at all
const PlaceholderImagePath = "/img-placeholder.jpg"

// PlaceholderImageURL builds the placeholder image URL for a server base URL
func PlaceholderImageURL(serverURL string) string {
	return strings.TrimRight(serverURL, "/") + PlaceholderImagePath
}

type service struct {
	repo             Repository
	fetcher          Fetcher
	extractor        Extractor
	recorder         Recorder
	logger           *zap.Logger
	circuitBreaker   *circuitBreaker
	flights          singleflight.Group
	writes           sync.WaitGroup
	writesMu         sync.Mutex
	closed           bool
	placeholderImage string
	writeTimeout     time.Duration
}

// NewService creates a new metadata resolution service.
// A nil repo disables caching.
func NewService(repo Repository, fetcher Fetcher, extractor Extractor, opts ...ServiceOption) (Service, error) {
	if fetcher == nil || extractor == nil {
		return nil, ErrNilDependency
	}
	if repo == nil {
		repo = NoopRepository{}
	}

	s := &service{
		repo:             repo,
		fetcher:          fetcher,
		extractor:        extractor,
		recorder:         NoopRecorder{},
		logger:           zap.NewNop(),
		placeholderImage: PlaceholderImagePath,
		writeTimeout:     5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.circuitBreaker = newCircuitBreaker(s.logger, defaultMaxTrackedHosts)

	return s, nil
}

// ServiceOption configures the service
type ServiceOption func(*service)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the observability recorder
func WithRecorder(recorder Recorder) ServiceOption {
	return func(s *service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithPlaceholderImage sets the image used when a page has none
func WithPlaceholderImage(imageURL string) ServiceOption {
	return func(s *service) {
		s.placeholderImage = imageURL
	}
}

// WithCacheWriteTimeout bounds each background cache write
func WithCacheWriteTimeout(timeout time.Duration) ServiceOption {
	return func(s *service) {
		if timeout > 0 {
			s.writeTimeout = timeout
		}
	}
}

// Resolve returns metadata for a normalized URL (with caching)
func (s *service) Resolve(ctx context.Context, urlStr string) (*MetadataRecord, error) {
	hostname, err := Hostname(urlStr)
	if err != nil {
		return nil, err
	}

	// 1. Check cache first
	if cached := s.lookup(ctx, urlStr); cached != nil {
		return cached, nil
	}

	// 2. Extract, collapsing concurrent misses for the same URL into one fetch.
	// The flight must outlive the first caller's request.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := s.flights.Do(urlStr, func() (interface{}, error) {
		metadata, err := s.extract(flightCtx, urlStr, hostname)
		if err != nil {
			return nil, err
		}

		record := BuildRecord(urlStr, hostname, metadata, s.placeholderImage)

		// 3. Store in cache without holding up the response
		s.persist(record)

		return record, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		s.logger.Debug("[UNFURL] shared in-flight extraction", zap.String("url", urlStr))
	}

	record := *v.(*MetadataRecord)
	return &record, nil
}

// Extract fetches and extracts a URL without touching the cache
func (s *service) Extract(ctx context.Context, urlStr string) (*ExtractedMetadata, error) {
	hostname, err := Hostname(urlStr)
	if err != nil {
		return nil, err
	}
	if !isSupported(urlStr) {
		return nil, fmt.Errorf("%w: unsupported URL %q", ErrInvalidURL, urlStr)
	}
	return s.extract(ctx, urlStr, hostname)
}

// Wait blocks until every background cache write has finished. Records
// resolved after Wait has been called are not persisted.
func (s *service) Wait() {
	s.writesMu.Lock()
	s.closed = true
	s.writesMu.Unlock()

	s.writes.Wait()
}

// lookup consults the cache. Storage errors are logged and count as a miss.
func (s *service) lookup(ctx context.Context, urlStr string) *MetadataRecord {
	cached, err := s.repo.Get(ctx, urlStr)
	if err != nil {
		s.recorder.CacheLookup(OutcomeError)
		s.logger.Warn("[UNFURL] cache lookup failed, treating as miss",
			zap.String("url", urlStr),
			zap.Error(err),
		)
		return nil
	}
	if cached == nil {
		s.recorder.CacheLookup(OutcomeMiss)
		return nil
	}

	s.recorder.CacheLookup(OutcomeHit)
	s.logger.Debug("[UNFURL] cache hit", zap.String("url", urlStr))
	return cached
}

// extract fetches the page and extracts its metadata. Every failure is
// reported as ErrNotFound.
func (s *service) extract(ctx context.Context, urlStr, hostname string) (*ExtractedMetadata, error) {
	canAttempt, err := s.circuitBreaker.canAttempt(hostname)
	if !canAttempt {
		s.recorder.Extraction(OutcomeSkipped, 0)
		s.logger.Info("[UNFURL] skipping fetch", zap.String("url", urlStr), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	start := time.Now()
	s.logger.Debug("[UNFURL] fetching page", zap.String("url", urlStr))

	page, err := s.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		if errors.Is(err, ErrFetchFailed) || errors.Is(err, ErrFetchTimeout) {
			s.circuitBreaker.recordFailure(hostname, err)
		} else {
			// Not an outage of the host itself
			s.circuitBreaker.recordSuccess(hostname)
		}
		s.recorder.Extraction(OutcomeError, time.Since(start))
		s.logger.Info("[UNFURL] fetch failed", zap.String("url", urlStr), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	s.circuitBreaker.recordSuccess(hostname)

	metadata, err := s.extractor.Extract(page)
	if err != nil {
		s.recorder.Extraction(OutcomeNotFound, time.Since(start))
		s.logger.Info("[UNFURL] no metadata extracted", zap.String("url", urlStr), zap.Error(err))
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	s.recorder.Extraction(OutcomeSuccess, time.Since(start))
	return metadata, nil
}

// persist writes the record in the background. Failures are logged and
// otherwise ignored; the cache is advisory.
func (s *service) persist(record *MetadataRecord) {
	s.writesMu.Lock()
	if s.closed {
		s.writesMu.Unlock()
		s.recorder.CacheWrite(OutcomeSkipped)
		s.logger.Debug("[UNFURL] service stopped, not caching result", zap.String("url", record.URL))
		return
	}
	s.writes.Add(1)
	s.writesMu.Unlock()

	toStore := *record
	go func() {
		defer s.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		if err := s.repo.Put(ctx, &toStore); err != nil {
			s.recorder.CacheWrite(OutcomeError)
			s.logger.Warn("[UNFURL] failed to cache result",
				zap.String("url", toStore.URL),
				zap.Error(err),
			)
			return
		}
		s.recorder.CacheWrite(OutcomeSuccess)
	}()
}

// BuildRecord derives the normalized record from extracted metadata.
//
// Precedence:
//   - image: social image, first page image, placeholder
//   - description: social description, meta description, null
//   - title: social title, <title>, ""
//   - siteName: og:site_name, ""
func BuildRecord(pageURL, hostname string, m *ExtractedMetadata, placeholderImage string) *MetadataRecord {
	if m == nil {
		m = &ExtractedMetadata{}
	}

	image := m.OG.Image
	if image == "" && len(m.Images) > 0 {
		image = m.Images[0].URL
	}
	if image == "" {
		image = placeholderImage
	}

	var description *string
	switch {
	case m.OG.Description != "":
		d := m.OG.Description
		description = &d
	case m.Meta.Description != "":
		d := m.Meta.Description
		description = &d
	}

	title := m.OG.Title
	if title == "" {
		title = m.Meta.Title
	}

	return &MetadataRecord{
		URL:         pageURL,
		Title:       title,
		Description: description,
		Image:       image,
		SiteName:    m.OG.SiteName,
		Hostname:    hostname,
	}
}
