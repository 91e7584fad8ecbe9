package routes

import (
	"github.com/go-chi/chi/v5"

	metadatahandlers "Metafetch/internal/api/handlers/metadata"
)

// RegisterMetadataRoutes registers the link metadata endpoints on the router.
//
// Routes:
//   - GET /?url=    raw extraction, no cache, always 200
//   - GET /v2?url=  normalized, cached record with ETag support
func RegisterMetadataRoutes(r chi.Router, handler *metadatahandlers.Handler) {
	r.Get("/", handler.HandleExtract)
	r.Get("/v2", handler.HandleResolve)
}
