package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Metafetch/internal/api/middleware"
	"Metafetch/internal/api/routes"
	"Metafetch/internal/core/unfurl"
	"Metafetch/internal/mcp"
	"Metafetch/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.SetPort(port)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	var metrics *observability.Metrics
	var recorder unfurl.Recorder = unfurl.NoopRecorder{}
	if a.cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
		recorder = metrics
	}

	svc, closeDB, err := a.newService(ctx, recorder, a.cfg.RunMigrations)
	if err != nil {
		return err
	}
	defer closeDB()

	var limiter *middleware.RateLimiter
	if a.cfg.RateLimitRequests > 0 {
		limiter = middleware.NewRateLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
		defer limiter.Stop()
	}

	var mcpHandler http.Handler
	if a.cfg.MCPHTTPEnabled {
		mcpHandler = mcp.NewServer(svc).HTTPHandler()
	}

	router := routes.NewRouter(routes.RouterConfig{
		Service:     svc,
		Logger:      a.logger,
		Metrics:     metrics,
		RateLimiter: limiter,
		MCP:         mcpHandler,
		StaticDir:   a.cfg.StaticDir,
	})

	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.cfg.FetchTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server started",
			zap.String("addr", server.Addr),
			zap.String("server_url", a.cfg.ServerURL),
			zap.String("cache_driver", a.cfg.CacheDriver),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	// Let pending cache writes land before the database closes
	svc.Wait()
	a.logger.Info("server stopped")
	return nil
}
