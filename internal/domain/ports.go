package domain

import (
	"context"
	"time"
)

// DataSource runs a query document and returns its raw result set: a header of
// label-only columns followed by value rows. Timeouts and cancellation of the
// underlying call belong to the implementation.
type DataSource interface {
	RunQuery(ctx context.Context, doc *QueryDocument) (*ResultSet, error)
}

// TableIntrospector lists the physical tables of a data source.
// Implemented by engine.SQLDataSource.
type TableIntrospector interface {
	DescribeTables(ctx context.Context) ([]DataTable, error)
}

// DataSourceRegistry resolves data sources by name.
type DataSourceRegistry interface {
	Get(name string) (DataSource, error)
}

// ResultCache stores the latest result set of each query, keyed by query ID.
// Get returns an empty result set (never nil) on a miss.
type ResultCache interface {
	Get(ctx context.Context, queryID string) (*ResultSet, error)
	Set(ctx context.Context, queryID string, results *ResultSet) error
}

// SettingsProvider exposes read-only settings lookups.
// Implemented by config.Settings.
type SettingsProvider interface {
	// QueryResultLimit is the maximum number of rows returned when reading results.
	QueryResultLimit() int
	// QueryResultExpiry is how long cached results are retained by expiring caches.
	QueryResultExpiry() time.Duration
}
