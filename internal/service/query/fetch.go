package query

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"query-insights/internal/domain"
)

// Fetch runs a query document against its data source and returns the shaped
// results.
//
// Validation failures (the variant rejecting the fetch, conflicting transforms,
// an uncompilable specification) return before anything is written. Once the
// data source has been called, the cache write, the query-table refresh and the
// document update always happen, on failure too, with whatever result was
// available at that point. Execution failures are returned as an
// *domain.ExecutionError wrapping the original error.
func (s *QueryService) Fetch(ctx context.Context, id string) (*domain.ResultSet, error) {
	doc, ctrl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ctrl.BeforeFetch(); err != nil {
		return nil, err
	}
	if err := domain.ValidateTransforms(doc.Transforms); err != nil {
		return nil, err
	}
	sql, err := ctrl.GetSQL()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sql) == "" {
		return nil, domain.ErrValidation("query %s has nothing to run", doc.Title)
	}
	doc.SQL = sql

	results, elapsed, err := s.execute(ctx, doc, ctrl)

	if err != nil {
		doc.Status = domain.QueryStatusFailed
		s.logger.Error("query execution failed", "query_id", doc.ID, "data_source", doc.DataSource, "error", err)
		err = &domain.ExecutionError{QueryID: doc.ID, Err: err}
	} else {
		now := s.now().UTC()
		doc.Status = domain.QueryStatusSuccess
		doc.ExecutionTime = math.Round(elapsed.Seconds()*1000) / 1000
		doc.LastExecution = &now
		doc.ResultsRowCount = results.RowCount()
	}

	s.finishFetch(ctx, doc, results)
	s.metrics.observeFetch(doc, elapsed)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// execute runs the data source call and shapes its output. It always returns
// the last result it produced, even alongside an error. The duration covers
// the data source call only.
func (s *QueryService) execute(ctx context.Context, doc *domain.QueryDocument, ctrl Controller) (*domain.ResultSet, time.Duration, error) {
	results := &domain.ResultSet{}

	source, err := s.dataSources.Get(doc.DataSource)
	if err != nil {
		return results, 0, err
	}
	start := s.now()
	raw, err := source.RunQuery(ctx, doc)
	elapsed := s.now().Sub(start)
	if err != nil {
		return results, elapsed, err
	}
	if raw != nil {
		results = raw
	}

	transformed, err := ApplyTransforms(results, doc.Transforms)
	if err != nil {
		return results, elapsed, fmt.Errorf("apply transforms: %w", err)
	}
	results = transformed

	shaped, err := ctrl.AfterFetchResults(results)
	if err != nil {
		return results, elapsed, err
	}
	if shaped != nil {
		results = shaped
	}

	if len(results.Columns) > 0 {
		results = &domain.ResultSet{
			Columns: ctrl.GetColumnsFromResults(results),
			Rows:    results.Rows,
		}
	}
	return results, elapsed, nil
}

// finishFetch persists the outcome of a fetch. Its failures are logged and
// never replace the fetch error.
func (s *QueryService) finishFetch(ctx context.Context, doc *domain.QueryDocument, results *domain.ResultSet) {
	if err := s.cache.Set(ctx, doc.ID, results); err != nil {
		s.logger.Warn("cache query results failed", "query_id", doc.ID, "error", err)
	}
	if err := s.refreshQueryTable(ctx, doc, results); err != nil {
		s.logger.Warn("refresh query table failed", "query_id", doc.ID, "error", err)
	}
	if _, err := s.queries.Update(ctx, doc); err != nil {
		s.logger.Warn("update query status failed", "query_id", doc.ID, "status", doc.Status, "error", err)
	}
}

// RetrieveResults returns the cached results of a query. With fetchIfNotCached
// set, an empty cache entry for a successfully executed query triggers a fetch
// unless the query compiles to nothing, as it does right after a reset.
func (s *QueryService) RetrieveResults(ctx context.Context, id string, fetchIfNotCached bool) (*domain.ResultSet, error) {
	var fetch func(context.Context, string) (*domain.ResultSet, error)
	if fetchIfNotCached {
		fetch = s.Fetch
	}
	return s.retrieve(ctx, id, fetch)
}

// retrieve reads the cache and, when fetch is non-nil, runs it under the same
// conditions as RetrieveResults.
func (s *QueryService) retrieve(ctx context.Context, id string, fetch func(context.Context, string) (*domain.ResultSet, error)) (*domain.ResultSet, error) {
	results, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read cached results: %w", err)
	}
	if results == nil {
		results = &domain.ResultSet{}
	}
	if !results.IsEmpty() || fetch == nil {
		return results, nil
	}

	doc, ctrl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.QueryStatusSuccess {
		return results, nil
	}
	if sql, err := ctrl.GetSQL(); err == nil && strings.TrimSpace(sql) == "" {
		return results, nil
	}
	return fetch(ctx, id)
}

// Results returns the header and at most query_result_limit rows of the
// cached results, fetching only when the query last succeeded and nothing is
// cached.
func (s *QueryService) Results(ctx context.Context, id string) (*domain.ResultSet, error) {
	return s.ResultsUsing(ctx, id, s.Fetch)
}

// ResultsUsing is Results with the implicit fetch delegated to fetch, letting
// a caller coalesce it with its own explicit fetches.
func (s *QueryService) ResultsUsing(ctx context.Context, id string, fetch func(context.Context, string) (*domain.ResultSet, error)) (*domain.ResultSet, error) {
	results, err := s.retrieve(ctx, id, fetch)
	if err != nil {
		return nil, err
	}
	return results.Truncate(s.resultLimit()), nil
}

// Reset restores a document to its variant defaults and clears its results.
// The data source and title base are kept; the status becomes Success.
func (s *QueryService) Reset(ctx context.Context, id string) (*domain.QueryDocument, error) {
	doc, err := s.queries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reset := &domain.QueryDocument{
		ID:              doc.ID,
		Name:            doc.Name,
		Title:           domain.DefaultQueryTitle(doc.Name),
		DataSource:      doc.DataSource,
		IsAssistedQuery: doc.IsAssistedQuery,
		IsNativeQuery:   doc.IsNativeQuery,
		Status:          domain.QueryStatusSuccess,
		CreatedAt:       doc.CreatedAt,
	}
	if reset.Title == "" {
		reset.Title = doc.Title
	}

	ctrl, err := s.controller(reset)
	if err != nil {
		return nil, err
	}
	ctrl.AfterReset()

	if err := s.cache.Set(ctx, id, &domain.ResultSet{}); err != nil {
		return nil, fmt.Errorf("clear cached results: %w", err)
	}
	return s.queries.Update(ctx, reset)
}
