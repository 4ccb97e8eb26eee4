// Package engine runs query documents against SQL databases. A SQLDataSource
// wraps one *sql.DB (DuckDB or SQLite) and exposes it to the query service as
// a named data source.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"query-insights/internal/domain"
)

// Dialect identifies the SQL database behind a data source.
type Dialect string

// Supported dialects.
const (
	DialectDuckDB Dialect = "duckdb"
	DialectSQLite Dialect = "sqlite"
)

// DefaultQueryTimeout bounds a single query run.
const DefaultQueryTimeout = 5 * time.Minute

// SQLDataSource executes the compiled SQL of a query document.
type SQLDataSource struct {
	name    string
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ domain.DataSource        = (*SQLDataSource)(nil)
	_ domain.TableIntrospector = (*SQLDataSource)(nil)
)

// Option configures a SQLDataSource.
type Option func(*SQLDataSource)

// WithTimeout overrides DefaultQueryTimeout. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *SQLDataSource) { s.timeout = d }
}

// WithLogger sets the logger used for query tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLDataSource) { s.logger = logger }
}

// NewSQLDataSource wraps db as the data source called name.
func NewSQLDataSource(name string, db *sql.DB, dialect Dialect, opts ...Option) *SQLDataSource {
	s := &SQLDataSource{
		name:    name,
		db:      db,
		dialect: dialect,
		timeout: DefaultQueryTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "data-source", "data_source", name)
	return s
}

// Name returns the registered data source name.
func (s *SQLDataSource) Name() string { return s.name }

// Dialect returns the SQL dialect of the data source.
func (s *SQLDataSource) Dialect() Dialect { return s.dialect }

// RunQuery executes doc.SQL and returns a label-only header followed by the rows.
func (s *SQLDataSource) RunQuery(ctx context.Context, doc *domain.QueryDocument) (*domain.ResultSet, error) {
	query := strings.TrimSpace(doc.SQL)
	if query == "" {
		return nil, domain.ErrValidation("query %s has no SQL", doc.ID)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("executing query", "query_id", doc.ID)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	results, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	s.logger.Debug("query completed", "query_id", doc.ID, "row_count", results.RowCount())
	return results, nil
}

func scanRows(rows *sql.Rows) (*domain.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	header := make([]domain.ResultColumn, len(cols))
	for i, c := range cols {
		header[i] = domain.ResultColumn{Label: c}
	}

	resultRows := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		resultRows = append(resultRows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ResultSet{Columns: header, Rows: resultRows}, nil
}
