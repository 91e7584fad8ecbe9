package unfurl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBodyMB is the default page size limit if not configured.
const DefaultMaxBodyMB = 5

const maxRedirects = 10

// Page is a fetched HTML document
type Page struct {
	// URL is the final URL after redirects
	URL         *url.URL
	ContentType string
	Body        []byte
}

// HTTPFetcher implements Fetcher with a net/http client that only connects
// to public addresses
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	allowPrivate bool
}

// FetcherOption configures an HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// AllowPrivateNetworks lets the fetcher reach loopback and private addresses.
// For development and tests only.
func AllowPrivateNetworks(allow bool) FetcherOption {
	return func(f *HTTPFetcher) {
		f.allowPrivate = allow
	}
}

// NewHTTPFetcher creates a fetcher with the given timeout and User-Agent.
// maxBodyMB of 0 uses DefaultMaxBodyMB.
func NewHTTPFetcher(timeout time.Duration, userAgent string, maxBodyMB int, opts ...FetcherOption) *HTTPFetcher {
	if maxBodyMB <= 0 {
		maxBodyMB = DefaultMaxBodyMB
	}
	f := &HTTPFetcher{
		userAgent:    userAgent,
		maxBodyBytes: int64(maxBodyMB) * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout:   timeout,
		Transport: newFetchTransport(f.allowPrivate),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return f
}

// Fetch retrieves an HTML page.
// Returns:
//   - ErrFetchTimeout if the request times out or the context is cancelled
//   - ErrNotHTML if the response is not an HTML document
//   - ErrBodyTooLarge if the body exceeds the configured limit
//   - ErrBlockedAddress if the page (or a redirect) points at a private address
//   - ErrFetchFailed for any other error
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetchFailed, err)
	}

	for key, value := range requestHeaders(f.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return nil, fmt.Errorf("%w: %v", ErrBlockedAddress, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchTimeout, ctx.Err())
		}
		if isTimeoutError(err) {
			return nil, fmt.Errorf("%w: %v", ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP request returned status %d", ErrFetchFailed, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return nil, fmt.Errorf("%w: content type %q", ErrNotHTML, contentType)
	}

	if resp.ContentLength > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: content length %d exceeds maximum %d bytes",
			ErrBodyTooLarge, resp.ContentLength, f.maxBodyBytes)
	}

	// Read one byte past the limit to detect oversized bodies without a Content-Length
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrFetchFailed, err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: response body exceeds maximum %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}

	return &Page{
		URL:         resp.Request.URL,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// isHTMLContent accepts text/html and XHTML. A missing Content-Type is
// accepted as well since plenty of servers omit it for HTML.
func isHTMLContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
}

// isTimeoutError checks if the error is a timeout-related error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}
