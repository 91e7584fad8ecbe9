package cli

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"Metafetch/internal/config"
	"Metafetch/internal/core/unfurl"
	"Metafetch/internal/db"
	"Metafetch/internal/db/migrations"
)

// openDatabase connects to the configured cache database.
// Returns nil with no error when caching is disabled.
func (a *app) openDatabase(ctx context.Context) (*sql.DB, string, error) {
	switch a.cfg.CacheDriver {
	case config.CacheDriverPostgres:
		conn, err := db.OpenPostgres(ctx, a.cfg.DatabaseURL)
		return conn, migrations.DialectPostgres, err
	case config.CacheDriverSQLite:
		conn, err := db.OpenSQLite(ctx, a.cfg.SQLitePath)
		return conn, migrations.DialectSQLite, err
	default:
		return nil, "", nil
	}
}

// newRepository builds the cache stack: SQL store, optionally fronted by the
// in-memory LRU tier. The returned close func releases the database.
func (a *app) newRepository(ctx context.Context, migrate bool) (unfurl.Repository, func(), error) {
	conn, dialect, err := a.openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}

	closeDB := func() {}
	var repo unfurl.Repository = unfurl.NoopRepository{}

	if conn != nil {
		closeDB = func() {
			if err := conn.Close(); err != nil {
				a.logger.Warn("failed to close database", zap.Error(err))
			}
		}

		if migrate {
			if err := migrations.Up(conn, dialect); err != nil {
				closeDB()
				return nil, nil, err
			}
			a.logger.Info("migrations applied", zap.String("dialect", dialect))
		}

		switch dialect {
		case migrations.DialectPostgres:
			repo = unfurl.NewRepository(conn)
		case migrations.DialectSQLite:
			repo = unfurl.NewSQLiteRepository(conn)
		}
		a.logger.Info("metadata cache enabled", zap.String("driver", a.cfg.CacheDriver))
	} else {
		a.logger.Info("metadata cache disabled")
	}

	if a.cfg.CacheMemoryEntries > 0 && conn != nil {
		memory, err := unfurl.NewMemoryCache(repo, a.cfg.CacheMemoryEntries)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		repo = memory
	}

	return repo, closeDB, nil
}

// newService wires the resolution service from the configuration
func (a *app) newService(ctx context.Context, recorder unfurl.Recorder, migrate bool) (unfurl.Service, func(), error) {
	repo, closeDB, err := a.newRepository(ctx, migrate)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up cache: %w", err)
	}

	fetcher := unfurl.NewHTTPFetcher(a.cfg.FetchTimeout, a.cfg.UserAgent, a.cfg.FetchMaxBodyMB,
		unfurl.AllowPrivateNetworks(a.cfg.FetchAllowPrivateNetworks),
	)

	svc, err := unfurl.NewService(repo, fetcher, unfurl.NewHTMLExtractor(),
		unfurl.WithLogger(a.logger),
		unfurl.WithRecorder(recorder),
		unfurl.WithPlaceholderImage(unfurl.PlaceholderImageURL(a.cfg.ServerURL)),
		unfurl.WithCacheWriteTimeout(a.cfg.CacheWriteTimeout),
	)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	return svc, closeDB, nil
}
