package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	metadatahandlers "Metafetch/internal/api/handlers/metadata"
	"Metafetch/internal/api/middleware"
	"Metafetch/internal/core/unfurl"
	"Metafetch/internal/observability"
)

// RouterConfig holds everything the HTTP surface needs
type RouterConfig struct {
	Service     unfurl.Service
	Logger      *zap.Logger
	Metrics     *observability.Metrics  // nil disables /metrics
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
	MCP         http.Handler            // nil disables /mcp
	StaticDir   string
}

// NewRouter assembles the middleware stack and all routes
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer(logger))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	if cfg.MCP != nil {
		r.Mount("/mcp", cfg.MCP)
	}

	var static http.Handler
	if cfg.StaticDir != "" && StaticDirExists(cfg.StaticDir) {
		static = NewStaticHandler(cfg.StaticDir)
	} else if cfg.StaticDir != "" {
		logger.Warn("[HTTP] static directory not found, static files disabled",
			zap.String("dir", cfg.StaticDir),
		)
	}

	handler := metadatahandlers.NewHandler(cfg.Service, static, logger)

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		RegisterMetadataRoutes(r, handler)
	})

	if static != nil {
		RegisterStaticRoutes(r, static)
	}

	return r
}
