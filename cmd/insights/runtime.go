package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"query-insights/internal/app"
	"query-insights/internal/config"
	internaldb "query-insights/internal/db"
	"query-insights/internal/engine"
)

// runtime is an opened application with everything it owns.
type runtime struct {
	app      *app.App
	registry *prometheus.Registry // nil when metrics are disabled
	closers  []func() error
}

// openRuntime opens the data sources, metadata store and result cache and
// wires the application.
func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}

	duckDB, err := engine.OpenDuckDB(ctx, cfg.DuckDBPath)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, duckDB.Close)
	if cfg.DuckDBPath == "" {
		if err := app.SeedDemoData(ctx, duckDB, logger); err != nil {
			return nil, err
		}
	}

	meta, err := internaldb.OpenMetaStore(cfg.MetaDBPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	rt.closers = append(rt.closers, meta.Close)

	resultCache, closeCache, err := app.NewResultCache(ctx, cfg, settings, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeCache)

	var reg prometheus.Registerer
	if cfg.MetricsEnabled {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(meta.Write, "meta"),
		)
		reg = rt.registry
	}

	a, err := app.New(ctx, app.Deps{
		Cfg:        cfg,
		Settings:   settings,
		Meta:       meta,
		DuckDB:     duckDB,
		Cache:      resultCache,
		Registerer: reg,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, a.Close)
	rt.app = a
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
