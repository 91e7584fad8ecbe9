package unfurl

import "time"

// MetadataRecord is the normalized link preview returned by /v2 and stored in
// the meta_cache table. URL is the cache key; records are never updated once
// written.
type MetadataRecord struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description *string `json:"description"` // null when the page has none
	Image       string  `json:"image"`
	SiteName    string  `json:"siteName"`
	Hostname    string  `json:"hostname"`
}

// CacheEntry is a row of the meta_cache table
type CacheEntry struct {
	CreatedAt   time.Time `db:"created_at"`
	Description *string   `db:"description"`
	URL         string    `db:"url"`
	Title       string    `db:"title"`
	Image       string    `db:"image"`
	SiteName    string    `db:"site_name"`
	Hostname    string    `db:"hostname"`
}

// Record converts the row into the record served to clients
func (e CacheEntry) Record() *MetadataRecord {
	return &MetadataRecord{
		URL:         e.URL,
		Title:       e.Title,
		Description: e.Description,
		Image:       e.Image,
		SiteName:    e.SiteName,
		Hostname:    e.Hostname,
	}
}

// ExtractedMetadata is the raw extraction output, served as-is by the legacy
// endpoint and used as the input for building a MetadataRecord.
type ExtractedMetadata struct {
	Images []Image   `json:"images"`
	OG     OpenGraph `json:"og"`
	Meta   PageMeta  `json:"meta"`
}

// Image is an <img> discovered in the page body, in document order
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// OpenGraph holds og:* tags. Twitter card tags fill in fields whose og:*
// counterpart is missing.
type OpenGraph struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Type        string `json:"type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// PageMeta holds generic document metadata (<title>, <meta name="description">)
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsEmpty reports whether extraction found nothing usable at all.
func (m *ExtractedMetadata) IsEmpty() bool {
	if m == nil {
		return true
	}
	return len(m.Images) == 0 && m.OG == (OpenGraph{}) && m.Meta == (PageMeta{})
}
