package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"query-insights/internal/domain"
)

// defaultResultLimit applies when no settings provider is configured.
const defaultResultLimit = 1000

// QueryService drives the lifecycle of query documents: saving, fetching,
// shaping and caching their results.
//
//nolint:revive // Name chosen for clarity across package boundaries
type QueryService struct {
	queries     domain.QueryRepository
	dataSources domain.DataSourceRegistry
	cache       domain.ResultCache
	settings    domain.SettingsProvider
	tables      domain.TableMetadataStore
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceDeps holds dependencies for QueryService.
type ServiceDeps struct {
	Queries     domain.QueryRepository
	DataSources domain.DataSourceRegistry
	Cache       domain.ResultCache
	Settings    domain.SettingsProvider
	Tables      domain.TableMetadataStore
	Metrics     *Metrics // optional
	Logger      *slog.Logger
}

// NewQueryService creates a new QueryService.
func NewQueryService(deps ServiceDeps) *QueryService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &QueryService{
		queries:     deps.Queries,
		dataSources: deps.DataSources,
		cache:       deps.Cache,
		settings:    deps.Settings,
		tables:      deps.Tables,
		metrics:     deps.Metrics,
		logger:      logger.With("component", "query-service"),
		now:         time.Now,
	}
}

func (s *QueryService) resultLimit() int {
	if s.settings == nil {
		return defaultResultLimit
	}
	if limit := s.settings.QueryResultLimit(); limit > 0 {
		return limit
	}
	return defaultResultLimit
}

func (s *QueryService) controller(doc *domain.QueryDocument) (Controller, error) {
	return newController(doc, controllerDeps{
		tables:   s.tables,
		maxLimit: s.resultLimit(),
		results: func(ctx context.Context) (*domain.ResultSet, error) {
			return s.RetrieveResults(ctx, doc.ID, false)
		},
	})
}

func (s *QueryService) load(ctx context.Context, id string) (*domain.QueryDocument, Controller, error) {
	doc, err := s.queries.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := s.controller(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, ctrl, nil
}

// Create validates and persists a new query document.
func (s *QueryService) Create(ctx context.Context, req domain.CreateQueryRequest) (*domain.QueryDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	name := domain.NewQueryName()
	doc := &domain.QueryDocument{
		ID:              domain.NewID(),
		Name:            name,
		Title:           strings.TrimSpace(req.Title),
		DataSource:      req.DataSource,
		IsAssistedQuery: req.IsAssistedQuery,
		IsNativeQuery:   req.IsNativeQuery,
		SQL:             req.SQL,
		JSON:            req.JSON,
		Tables:          req.Tables,
		Columns:         req.Columns,
		Filters:         req.Filters,
		Limit:           req.Limit,
		Transforms:      req.Transforms,
		Status:          domain.QueryStatusPending,
	}
	if doc.Title == "" {
		doc.Title = domain.DefaultQueryTitle(name)
	}

	if err := s.prepare(doc); err != nil {
		return nil, err
	}
	return s.queries.Create(ctx, doc)
}

// Get returns a query document by ID.
func (s *QueryService) Get(ctx context.Context, id string) (*domain.QueryDocument, error) {
	return s.queries.GetByID(ctx, id)
}

// List returns a page of query documents and the total count.
func (s *QueryService) List(ctx context.Context, page domain.PageRequest) ([]domain.QueryDocument, int64, error) {
	return s.queries.List(ctx, page)
}

// Update applies a partial update and saves the document.
func (s *QueryService) Update(ctx context.Context, id string, req domain.UpdateQueryRequest) (*domain.QueryDocument, error) {
	doc, err := s.queries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(doc)
	return s.Save(ctx, doc)
}

// Save validates the document through its controller and recompiles its SQL.
// When the compiled SQL changes, the cached results are cleared and the status
// returns to Pending.
func (s *QueryService) Save(ctx context.Context, doc *domain.QueryDocument) (*domain.QueryDocument, error) {
	stored, err := s.queries.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if doc.IsAssistedQuery && doc.IsNativeQuery {
		return nil, domain.ErrValidation("a query cannot be both assisted and native")
	}
	if err := s.prepare(doc); err != nil {
		return nil, err
	}

	if doc.SQL != stored.SQL {
		if err := s.cache.Set(ctx, doc.ID, &domain.ResultSet{}); err != nil {
			s.logger.Warn("clear cached results failed", "query_id", doc.ID, "error", err)
		}
		doc.Status = domain.QueryStatusPending
		doc.ResultsRowCount = 0
	}
	return s.queries.Update(ctx, doc)
}

// prepare runs the controller validation and stores the compiled SQL.
func (s *QueryService) prepare(doc *domain.QueryDocument) error {
	if err := domain.ValidateTransforms(doc.Transforms); err != nil {
		return err
	}
	ctrl, err := s.controller(doc)
	if err != nil {
		return err
	}
	if err := ctrl.Validate(); err != nil {
		return err
	}
	sql, err := ctrl.GetSQL()
	if err != nil {
		return err
	}
	doc.SQL = sql
	return nil
}

// Delete removes a query document along with its cached results and its
// query-based table.
func (s *QueryService) Delete(ctx context.Context, id string) error {
	doc, err := s.queries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queries.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, id, &domain.ResultSet{}); err != nil {
		s.logger.Warn("clear cached results failed", "query_id", id, "error", err)
	}
	if s.tables != nil {
		if err := s.tables.DeleteTable(ctx, doc.DataSource, id); err != nil {
			s.logger.Debug("delete query table skipped", "query_id", id, "error", err)
		}
	}
	return nil
}

// Validate runs the controller validation without saving.
func (s *QueryService) Validate(ctx context.Context, id string) error {
	doc, ctrl, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := domain.ValidateTransforms(doc.Transforms); err != nil {
		return err
	}
	return ctrl.Validate()
}

// GetSQL compiles the statement the document would run.
func (s *QueryService) GetSQL(ctx context.Context, id string) (string, error) {
	_, ctrl, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	return ctrl.GetSQL()
}

// GetColumns returns the reconciled columns of the cached results.
func (s *QueryService) GetColumns(ctx context.Context, id string) ([]domain.ResultColumn, error) {
	_, ctrl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return ctrl.GetColumns(ctx)
}

// GetColumnsFromResults reconciles the header of results against the document.
func (s *QueryService) GetColumnsFromResults(ctx context.Context, id string, results *domain.ResultSet) ([]domain.ResultColumn, error) {
	_, ctrl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return ctrl.GetColumnsFromResults(results), nil
}

// GetTablesColumns returns the stored columns of every selected table.
func (s *QueryService) GetTablesColumns(ctx context.Context, id string) ([]domain.TableColumn, error) {
	_, ctrl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	cols, err := ctrl.GetTablesColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load table columns: %w", err)
	}
	return cols, nil
}

// GetSelectedTables returns the tables the document reads from.
func (s *QueryService) GetSelectedTables(ctx context.Context, id string) ([]domain.Table, error) {
	_, ctrl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return ctrl.GetSelectedTables(), nil
}
