package unfurl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// maxImages caps how many <img> candidates are collected per page
const maxImages = 20

// HTMLExtractor reads Open Graph, Twitter card and generic meta tags from an
// HTML document.
type HTMLExtractor struct{}

// NewHTMLExtractor creates a new extractor
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract parses the page and collects its metadata.
// Returns ErrNotFound if the document has no title, description, tags or images.
func (e *HTMLExtractor) Extract(page *Page) (*ExtractedMetadata, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: no page", ErrNotFound)
	}

	// Decode to UTF-8 using the Content-Type charset or <meta charset> sniffing
	reader, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		reader = bytes.NewReader(page.Body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse HTML: %v", ErrNotFound, err)
	}

	m := parseDocument(doc, page)
	if m.IsEmpty() {
		return nil, fmt.Errorf("%w: page has no metadata", ErrNotFound)
	}
	return m, nil
}

// twitterCard holds twitter:* tags used as fallbacks for og:* tags
type twitterCard struct {
	title       string
	description string
	image       string
}

func parseDocument(doc *goquery.Document, page *Page) *ExtractedMetadata {
	m := &ExtractedMetadata{Images: []Image{}}
	var tw twitterCard

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("property", "")
		if key == "" {
			key = s.AttrOr("name", "")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || content == "" {
			return
		}

		switch key {
		case "og:title":
			setOnce(&m.OG.Title, content)
		case "og:description":
			setOnce(&m.OG.Description, content)
		case "og:image", "og:image:url", "og:image:secure_url":
			setOnce(&m.OG.Image, resolveReference(page.URL, content))
		case "og:site_name":
			setOnce(&m.OG.SiteName, content)
		case "og:type":
			setOnce(&m.OG.Type, content)
		case "og:url":
			setOnce(&m.OG.URL, content)
		case "twitter:title":
			setOnce(&tw.title, content)
		case "twitter:description":
			setOnce(&tw.description, content)
		case "twitter:image", "twitter:image:src":
			setOnce(&tw.image, resolveReference(page.URL, content))
		case "description":
			setOnce(&m.Meta.Description, content)
		}
	})

	// Twitter cards fill the gaps Open Graph left
	setOnce(&m.OG.Title, tw.title)
	setOnce(&m.OG.Description, tw.description)
	setOnce(&m.OG.Image, tw.image)

	m.Meta.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	if m.Meta.Title == "" {
		m.Meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	seen := make(map[string]bool)
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if strings.TrimSpace(src) == "" {
			src = s.AttrOr("data-src", "")
		}
		resolved := resolveReference(page.URL, src)
		if resolved == "" || seen[resolved] {
			return true
		}
		seen[resolved] = true
		m.Images = append(m.Images, Image{
			URL:    resolved,
			Alt:    strings.TrimSpace(s.AttrOr("alt", "")),
			Width:  atoiOrZero(s.AttrOr("width", "")),
			Height: atoiOrZero(s.AttrOr("height", "")),
		})
		return len(m.Images) < maxImages
	})

	return m
}

func setOnce(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
