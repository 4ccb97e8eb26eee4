// Package app provides application-level wiring and dependency injection
// for the query insights server and CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"query-insights/internal/config"
	internaldb "query-insights/internal/db"
	"query-insights/internal/db/repository"
	"query-insights/internal/domain"
	"query-insights/internal/engine"
	"query-insights/internal/service/query"
)

// DuckDBSource is the name of the built-in DuckDB data source.
const DuckDBSource = "duckdb"

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the result cache.
type Deps struct {
	Cfg      *config.Config
	Settings *config.Settings
	Meta     *internaldb.MetaStore
	DuckDB   *sql.DB
	Cache    domain.ResultCache
	// Registerer receives the query metrics. Nil disables them.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Query    *query.QueryService
	Registry *engine.Registry

	meta    *internaldb.MetaStore
	closers []func() error
}

// New wires repositories, data sources, and the query service from deps.
// Extra SQLite data sources from the config are opened here and closed by
// Close.
func New(ctx context.Context, deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	settings := deps.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}
	a := &App{Registry: engine.NewRegistry(), meta: deps.Meta}

	// === Data sources ===
	a.Registry.Register(DuckDBSource, engine.NewSQLDataSource(
		DuckDBSource, deps.DuckDB, engine.DialectDuckDB,
		engine.WithLogger(logger),
	))

	names := make([]string, 0, len(deps.Cfg.SQLiteSources))
	for name := range deps.Cfg.SQLiteSources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := deps.Cfg.SQLiteSources[name]
		db, err := engine.OpenSQLite(ctx, path)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("data source %s: %w", name, err)
		}
		a.closers = append(a.closers, db.Close)
		a.Registry.Register(name, engine.NewSQLDataSource(name, db, engine.DialectSQLite, engine.WithLogger(logger)))
		logger.Info("sqlite data source registered", "data_source", name, "path", path)
	}

	// === Repositories (write-pool) ===
	queryRepo := repository.NewQueryRepo(deps.Meta.Write)
	tableRepo := repository.NewTableRepo(deps.Meta.Write)

	// === Services ===
	var metrics *query.Metrics
	if deps.Registerer != nil {
		metrics = query.NewMetrics(deps.Registerer)
	}
	a.Query = query.NewQueryService(query.ServiceDeps{
		Queries:     queryRepo,
		DataSources: a.Registry,
		Cache:       deps.Cache,
		Settings:    settings,
		Tables:      tableRepo,
		Metrics:     metrics,
		Logger:      logger,
	})
	return a, nil
}

// Health reports whether the metadata store is reachable.
func (a *App) Health(ctx context.Context) error {
	if err := a.meta.Read.PingContext(ctx); err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	return nil
}

// Close releases the data sources opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
