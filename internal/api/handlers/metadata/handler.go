// Package metadata provides the HTTP handlers for link metadata lookups.
package metadata

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"Metafetch/internal/api/handlers"
	"Metafetch/internal/core/unfurl"
)

// Error messages returned to clients
const (
	msgInvalidURL    = "Invalid URL"
	msgNotFound      = "No metadata found"
	msgInternalError = "Internal server error"
)

// Handler handles HTTP requests for link metadata.
type Handler struct {
	service unfurl.Service
	static  http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new metadata handler. static, if non-nil, serves
// requests to the legacy root endpoint that carry no url parameter.
func NewHandler(service unfurl.Service, static http.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		static:  static,
		logger:  logger,
	}
}

// ExtractResponse is the body of GET /
type ExtractResponse struct {
	Metadata *unfurl.ExtractedMetadata `json:"metadata"`
}

// ResolveResponse is the body of a successful GET /v2
type ResolveResponse struct {
	Metadata *unfurl.MetadataRecord `json:"metadata"`
}

// HandleExtract handles GET /?url=
// The raw URL is extracted without normalization or caching and the response
// is always 200; any failure yields {"metadata": null}.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" && h.static != nil {
		h.static.ServeHTTP(w, r)
		return
	}

	metadata, err := h.service.Extract(r.Context(), rawURL)
	if err != nil {
		h.logger.Debug("[METADATA] legacy extraction failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		metadata = nil
	}

	h.writeJSON(w, http.StatusOK, ExtractResponse{Metadata: metadata})
}

// HandleResolve handles GET /v2?url=
// It normalizes the URL, resolves it through the cache and returns the
// derived record. 200 responses carry an ETag and honor If-None-Match.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	normalized, err := unfurl.NormalizeURL(r.URL.Query().Get("url"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	record, err := h.service.Resolve(r.Context(), normalized)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	body, err := handlers.EncodeJSON(ResolveResponse{Metadata: record})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	etag := computeETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("[METADATA] failed to write response",
			zap.String("url", normalized),
			zap.Error(err),
		)
	}
}

// handleServiceError converts service errors to appropriate HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, unfurl.ErrInvalidURL):
		h.writeError(w, http.StatusBadRequest, msgInvalidURL)
	case errors.Is(err, unfurl.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":    msgNotFound,
			"metadata": nil,
		})
	default:
		h.logger.Error("[METADATA] unhandled service error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if err := handlers.WriteJSON(w, status, v); err != nil {
		h.logger.Warn("[METADATA] failed to write response", zap.Int("status", status), zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	if err := handlers.WriteError(w, status, message); err != nil {
		h.logger.Warn("[METADATA] failed to write error response", zap.Int("status", status), zap.Error(err))
	}
}

// computeETag returns a strong ETag from the first 128 bits of the body's BLAKE3 hash
func computeETag(body []byte) string {
	sum := blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches reports whether an If-None-Match header matches etag.
// Weak validators compare equal to their strong form.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
