package unfurl

import "errors"

var (
	// ErrNotFound is returned when no metadata could be produced for a URL.
	// Fetch and extraction failures are reported as ErrNotFound, never as
	// internal errors.
	ErrNotFound = errors.New("no metadata found")

	// ErrInvalidURL is returned when the provided URL is missing or malformed
	ErrInvalidURL = errors.New("invalid URL")

	// ErrFetchFailed is returned when the page could not be retrieved
	ErrFetchFailed = errors.New("failed to fetch page")

	// ErrFetchTimeout is returned when the page request exceeds the fetch timeout
	ErrFetchTimeout = errors.New("page request timed out")

	// ErrNotHTML is returned when the page is not an HTML document
	ErrNotHTML = errors.New("page is not HTML")

	// ErrBodyTooLarge is returned when the page body exceeds the configured limit
	ErrBodyTooLarge = errors.New("page body exceeds size limit")

	// ErrBlockedAddress is returned when a page resolves to a private or
	// loopback address and private networks are not allowed
	ErrBlockedAddress = errors.New("address not allowed")

	// ErrCircuitOpen is returned when a host has failed too often recently
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
