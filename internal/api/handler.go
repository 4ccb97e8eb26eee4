// Package api provides the HTTP handlers of the query insights REST API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"query-insights/internal/domain"
)

// QueryService is the query lifecycle used by the handlers.
// Implemented by query.QueryService.
type QueryService interface {
	Create(ctx context.Context, req domain.CreateQueryRequest) (*domain.QueryDocument, error)
	Get(ctx context.Context, id string) (*domain.QueryDocument, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.QueryDocument, int64, error)
	Update(ctx context.Context, id string, req domain.UpdateQueryRequest) (*domain.QueryDocument, error)
	Delete(ctx context.Context, id string) error
	Fetch(ctx context.Context, id string) (*domain.ResultSet, error)
	ResultsUsing(ctx context.Context, id string, fetch func(context.Context, string) (*domain.ResultSet, error)) (*domain.ResultSet, error)
	Reset(ctx context.Context, id string) (*domain.QueryDocument, error)
	GetSQL(ctx context.Context, id string) (string, error)
	GetColumns(ctx context.Context, id string) ([]domain.ResultColumn, error)
	GetSelectedTables(ctx context.Context, id string) ([]domain.Table, error)
	GetTablesColumns(ctx context.Context, id string) ([]domain.TableColumn, error)
	SyncDataSource(ctx context.Context, name string) (int, error)
}

// Handler serves the /v1 query API.
type Handler struct {
	queries QueryService
	logger  *slog.Logger
	// fetches collapses concurrent fetches of the same query into one run.
	fetches singleflight.Group
}

// NewHandler creates a Handler.
func NewHandler(queries QueryService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{queries: queries, logger: logger.With("component", "api")}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/queries", func(r chi.Router) {
		r.Post("/", h.CreateQuery)
		r.Get("/", h.ListQueries)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetQuery)
			r.Put("/", h.UpdateQuery)
			r.Delete("/", h.DeleteQuery)
			r.Post("/fetch", h.FetchQuery)
			r.Get("/results", h.GetResults)
			r.Post("/reset", h.ResetQuery)
			r.Get("/sql", h.GetSQL)
			r.Get("/columns", h.GetColumns)
			r.Get("/tables", h.GetTables)
			r.Get("/tables/columns", h.GetTablesColumns)
		})
	})
	r.Post("/data-sources/{name}/sync", h.SyncDataSource)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// CreateQuery handles POST /v1/queries.
func (h *Handler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	var body createQueryRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.queries.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, queryToAPI(doc))
}

// ListQueries handles GET /v1/queries.
func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	page := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, r, domain.ErrValidation("max_results must be an integer"))
			return
		}
		page.MaxResults = n
	}

	docs, total, err := h.queries.List(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := listQueriesResponse{
		Queries:       make([]queryResponse, len(docs)),
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	}
	for i := range docs {
		out.Queries[i] = queryToAPI(&docs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetQuery handles GET /v1/queries/{id}.
func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	doc, err := h.queries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryToAPI(doc))
}

// UpdateQuery handles PUT /v1/queries/{id}.
func (h *Handler) UpdateQuery(w http.ResponseWriter, r *http.Request) {
	var body updateQueryRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.queries.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryToAPI(doc))
}

// DeleteQuery handles DELETE /v1/queries/{id}.
func (h *Handler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	if err := h.queries.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fetch runs a fetch of one query. Concurrent fetches of the same query,
// explicit or triggered by a results read, share a single run, which is
// detached from any one caller's cancellation.
func (h *Handler) fetch(ctx context.Context, id string) (*domain.ResultSet, error) {
	detached := context.WithoutCancel(ctx)
	v, err, shared := h.fetches.Do(id, func() (any, error) {
		return h.queries.Fetch(detached, id)
	})
	if shared {
		h.logger.Debug("fetch shared with concurrent request", "query_id", id)
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.ResultSet), nil
}

// FetchQuery handles POST /v1/queries/{id}/fetch.
func (h *Handler) FetchQuery(w http.ResponseWriter, r *http.Request) {
	results, err := h.fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GetResults handles GET /v1/queries/{id}/results.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.queries.ResultsUsing(r.Context(), chi.URLParam(r, "id"), h.fetch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ResetQuery handles POST /v1/queries/{id}/reset.
func (h *Handler) ResetQuery(w http.ResponseWriter, r *http.Request) {
	doc, err := h.queries.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryToAPI(doc))
}

// GetSQL handles GET /v1/queries/{id}/sql.
func (h *Handler) GetSQL(w http.ResponseWriter, r *http.Request) {
	sql, err := h.queries.GetSQL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sqlResponse{SQL: sql})
}

// GetColumns handles GET /v1/queries/{id}/columns.
func (h *Handler) GetColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := h.queries.GetColumns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, columnsResponse{Columns: emptyIfNil(cols)})
}

// GetTables handles GET /v1/queries/{id}/tables.
func (h *Handler) GetTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.queries.GetSelectedTables(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tablesResponse{Tables: emptyIfNil(tables)})
}

// GetTablesColumns handles GET /v1/queries/{id}/tables/columns.
func (h *Handler) GetTablesColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := h.queries.GetTablesColumns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tableColumnsResponse{Columns: emptyIfNil(cols)})
}

// SyncDataSource handles POST /v1/data-sources/{name}/sync.
func (h *Handler) SyncDataSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, err := h.queries.SyncDataSource(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{DataSource: name, Tables: n})
}
