package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "query-insights/internal/db"
	"query-insights/internal/cache"
	"query-insights/internal/config"
	"query-insights/internal/db/repository"
	"query-insights/internal/domain"
	"query-insights/internal/engine"
	"query-insights/internal/service/query"
)

// === Stub service ===

type stubService struct {
	QueryService // unimplemented methods panic

	docs       map[string]*domain.QueryDocument
	fetchCalls atomic.Int32
	fetchGate  chan struct{}
	fetchErr   error
	listPage   domain.PageRequest
	total      int64
}

func newStubService(docs ...*domain.QueryDocument) *stubService {
	s := &stubService{docs: map[string]*domain.QueryDocument{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *stubService) Get(_ context.Context, id string) (*domain.QueryDocument, error) {
	d, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound("query %q not found", id)
	}
	return d, nil
}

func (s *stubService) List(_ context.Context, page domain.PageRequest) ([]domain.QueryDocument, int64, error) {
	s.listPage = page
	out := make([]domain.QueryDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, *d)
	}
	return out, s.total, nil
}

func (s *stubService) Fetch(_ context.Context, id string) (*domain.ResultSet, error) {
	s.fetchCalls.Add(1)
	if s.fetchGate != nil {
		<-s.fetchGate
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &domain.ResultSet{
		Columns: []domain.ResultColumn{domain.NewResultColumn("n", domain.TypeInteger)},
		Rows:    [][]any{{1}},
	}, nil
}

// ResultsUsing treats every cache as empty on a successfully executed query,
// so each read triggers the implicit fetch.
func (s *stubService) ResultsUsing(ctx context.Context, id string, fetch func(context.Context, string) (*domain.ResultSet, error)) (*domain.ResultSet, error) {
	return fetch(ctx, id)
}

func (s *stubService) Delete(_ context.Context, id string) error {
	if _, ok := s.docs[id]; !ok {
		return domain.ErrNotFound("query %q not found", id)
	}
	delete(s.docs, id)
	return nil
}

func newStubServer(t *testing.T, svc QueryService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Handler:            NewHandler(svc, nil),
		CORSAllowedOrigins: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeError(t *testing.T, body []byte) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

// === Error mapping ===

func TestHTTPStatusFromDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ErrValidation("bad"), http.StatusBadRequest},
		{"not found", domain.ErrNotFound("missing"), http.StatusNotFound},
		{"conflict", domain.ErrConflict("dup"), http.StatusConflict},
		{"execution", &domain.ExecutionError{QueryID: "q", Err: errors.New("boom")}, http.StatusBadGateway},
		{"execution wrapping validation", &domain.ExecutionError{QueryID: "q", Err: domain.ErrValidation("bad transform")}, http.StatusBadRequest},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, httpStatusFromDomainError(tc.err))
		})
	}
}

func TestFetch_InternalErrorHidden(t *testing.T) {
	svc := newStubService()
	svc.fetchErr = errors.New("secret connection string leaked")
	srv := newStubServer(t, svc)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/queries/q1/fetch", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	e := decodeError(t, body)
	assert.Equal(t, 500, e.Code)
	assert.Equal(t, "internal error", e.Message)
}

// === Handlers with stub service ===

func TestGetQuery_NotFound(t *testing.T) {
	srv := newStubServer(t, newStubService())

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/queries/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Message, "nope")
}

func TestListQueries_Pagination(t *testing.T) {
	svc := newStubService(&domain.QueryDocument{ID: "q1", Title: "one", Status: domain.QueryStatusPending})
	svc.total = 5
	srv := newStubServer(t, svc)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/queries?max_results=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, svc.listPage.MaxResults)

	var out listQueriesResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Queries, 1)
	assert.Equal(t, "legacy", out.Queries[0].Variant)
	assert.Equal(t, []domain.Table{}, out.Queries[0].Tables)
	assert.Equal(t, domain.NextPageToken(0, 2, 5), out.NextPageToken)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/queries?max_results=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateQuery_RejectsUnknownFields(t *testing.T) {
	srv := newStubServer(t, newStubService())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/queries", map[string]any{"data_source": "duckdb", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Message, "invalid request body")
}

func TestDeleteQuery(t *testing.T) {
	srv := newStubServer(t, newStubService(&domain.QueryDocument{ID: "q1"}))

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/queries/q1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/queries/q1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchQuery_ConcurrentRequestsShareOneRun(t *testing.T) {
	svc := newStubService()
	svc.fetchGate = make(chan struct{})
	srv := newStubServer(t, svc)

	const callers = 5
	var wg sync.WaitGroup
	statuses := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/queries/q1/fetch", nil)
			statuses[i] = resp.StatusCode
		}()
	}

	require.Eventually(t, func() bool { return svc.fetchCalls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight run.
	time.Sleep(100 * time.Millisecond)
	close(svc.fetchGate)
	wg.Wait()

	for _, s := range statuses {
		assert.Equal(t, http.StatusOK, s)
	}
	assert.Equal(t, int32(1), svc.fetchCalls.Load())
}

func TestGetResults_ImplicitFetchJoinsExplicitFetch(t *testing.T) {
	svc := newStubService()
	svc.fetchGate = make(chan struct{})
	srv := newStubServer(t, svc)

	const readers = 4
	var wg sync.WaitGroup
	statuses := make([]int, readers+1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/queries/q1/fetch", nil)
		statuses[0] = resp.StatusCode
	}()
	require.Eventually(t, func() bool { return svc.fetchCalls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	for i := 1; i <= readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/queries/q1/results", nil)
			statuses[i] = resp.StatusCode
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(svc.fetchGate)
	wg.Wait()

	for _, s := range statuses {
		assert.Equal(t, http.StatusOK, s)
	}
	assert.Equal(t, int32(1), svc.fetchCalls.Load())
}

// === Router ===

func TestRouter_Healthz(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Handler:            NewHandler(newStubService(), nil),
		CORSAllowedOrigins: []string{"*"},
		Health: func(context.Context) error {
			if !healthy.Load() {
				return errors.New("metadata store unavailable")
			}
			return nil
		},
	}))
	t.Cleanup(srv.Close)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_MetricsAndRequestID(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Handler:            NewHandler(newStubService(), nil),
		CORSAllowedOrigins: []string{"*"},
		Gatherer:           reg,
	}))
	t.Cleanup(srv.Close)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_total 1")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

// === End to end ===

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	duck, err := engine.OpenDuckDB(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = duck.Close() })
	_, err = duck.ExecContext(ctx, `
		CREATE TABLE orders (id INTEGER, region VARCHAR, amount DECIMAL(10,2));
		INSERT INTO orders VALUES (1, 'north', 10.50), (2, 'south', 4.00), (3, 'north', 2.00);`)
	require.NoError(t, err)

	registry := engine.NewRegistry()
	registry.Register("duckdb", engine.NewSQLDataSource("duckdb", duck, engine.DialectDuckDB))

	writeDB, _ := internaldb.OpenTestSQLite(t)
	results, err := cache.NewLRU(16)
	require.NoError(t, err)

	svc := query.NewQueryService(query.ServiceDeps{
		Queries:     repository.NewQueryRepo(writeDB),
		DataSources: registry,
		Cache:       results,
		Settings:    config.DefaultSettings(),
		Tables:      repository.NewTableRepo(writeDB),
		Metrics:     query.NewMetrics(prometheus.NewRegistry()),
	})

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Handler:            NewHandler(svc, nil),
		CORSAllowedOrigins: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEnd_NativeQueryLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/v1"

	// Create
	resp, body := doJSON(t, http.MethodPost, base+"/queries", map[string]any{
		"title":           "Revenue by region",
		"data_source":     "duckdb",
		"is_native_query": true,
		"sql":             "SELECT region, SUM(amount) AS total FROM orders GROUP BY region ORDER BY region",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created queryResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "native", created.Variant)
	assert.Equal(t, domain.QueryStatusPending, created.Status)
	assert.NotEmpty(t, created.Name)

	// Results before any fetch are empty.
	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	// Fetch
	resp, body = doJSON(t, http.MethodPost, base+"/queries/"+created.ID+"/fetch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var fetched domain.ResultSet
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, []string{"region", "total"}, fetched.Labels())
	require.Len(t, fetched.Rows, 2)
	assert.Equal(t, "north", fetched.Rows[0][0])
	assert.InDelta(t, 12.5, fetched.Rows[0][1], 0.001)
	assert.Equal(t, domain.TypeDecimal, fetched.Columns[1].Type)

	// The document records the execution.
	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got queryResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.QueryStatusSuccess, got.Status)
	assert.Equal(t, 2, got.ResultsRowCount)
	assert.NotNil(t, got.LastExecution)

	// Columns come from the cached results.
	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID+"/columns", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cols columnsResponse
	require.NoError(t, json.Unmarshal(body, &cols))
	require.Len(t, cols.Columns, 2)
	assert.Equal(t, "region", cols.Columns[0].Label)

	// SQL
	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID+"/sql", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "GROUP BY region")

	// Updating the SQL clears results and returns to pending.
	resp, body = doJSON(t, http.MethodPut, base+"/queries/"+created.ID, map[string]any{
		"sql": "SELECT COUNT(*) AS n FROM orders",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.QueryStatusPending, got.Status)

	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	// Writes are rejected for native queries.
	resp, body = doJSON(t, http.MethodPut, base+"/queries/"+created.ID, map[string]any{
		"sql": "DELETE FROM orders",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Message, "read statement")

	// Delete
	resp, _ = doJSON(t, http.MethodDelete, base+"/queries/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, base+"/queries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndToEnd_LegacyFiltersAndReset(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/v1"

	resp, body := doJSON(t, http.MethodPost, base+"/queries", map[string]any{
		"data_source": "duckdb",
		"tables":      []map[string]any{{"table": "orders"}},
		"columns":     []map[string]any{{"table": "orders", "column": "region"}},
		"filters":     "amount > 3",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created queryResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "legacy", created.Variant)
	assert.Equal(t, "amount > 3", created.Filters)
	assert.Contains(t, created.SQL, "WHERE (amount > 3)")

	resp, body = doJSON(t, http.MethodPost, base+"/queries/"+created.ID+"/fetch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var fetched domain.ResultSet
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Len(t, fetched.Rows, 2)

	resp, body = doJSON(t, http.MethodPut, base+"/queries/"+created.ID, map[string]any{"filters": "amount > 5"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated queryResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Contains(t, updated.SQL, "WHERE (amount > 5)")

	// A reset query reads back as empty results, not an error.
	resp, body = doJSON(t, http.MethodPost, base+"/queries/"+created.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, "[]", string(body))
}

func TestEndToEnd_FetchFailureIsBadGateway(t *testing.T) {
	srv := setupTestServer(t)
	base := srv.URL + "/v1"

	resp, body := doJSON(t, http.MethodPost, base+"/queries", map[string]any{
		"data_source":     "duckdb",
		"is_native_query": true,
		"sql":             "SELECT * FROM missing_table",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created queryResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = doJSON(t, http.MethodPost, base+"/queries/"+created.ID+"/fetch", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/queries/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got queryResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.QueryStatusFailed, got.Status)
}

func TestEndToEnd_SyncDataSource(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/data-sources/duckdb/sync", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out syncResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "duckdb", out.DataSource)
	assert.Equal(t, 1, out.Tables)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/data-sources/nope/sync", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
