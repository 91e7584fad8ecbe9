package unfurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// urlPattern is unanchored and only asks for something domain-shaped somewhere
// in the input.
var urlPattern = regexp.MustCompile(`(?i)[(http(s)?):\/\/(www\.)?a-zA-Z0-9@:%._\+~#=]{2,256}\.[a-z]{2,6}\b([-a-zA-Z0-9@:%_\+.~#?&//=]*)`)

// NormalizeURL turns raw user input into the URL used for fetching and as the
// cache key. Input without a scheme gets "http://" prepended before it is
// validated.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidURL)
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	if !urlPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	if !isSupported(raw) {
		return "", fmt.Errorf("%w: unsupported URL %q", ErrInvalidURL, raw)
	}

	return raw, nil
}

// Hostname returns the lowercased host of a URL without its port
func Hostname(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, urlStr)
	}
	return host, nil
}

// isSupported checks if this is a valid HTTP/HTTPS URL with a host
func isSupported(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Hostname() != ""
}

// resolveReference resolves a possibly relative or protocol-relative link
// found in a page against the page URL. Data URIs and unparseable links
// resolve to "".
func resolveReference(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		if parsed.IsAbs() {
			return parsed.String()
		}
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref
		}
		return ""
	}
	return base.ResolveReference(parsed).String()
}
