package query

import (
	"context"
	"sync"
	"time"

	"query-insights/internal/domain"
)

type fakeQueryRepo struct {
	mu      sync.Mutex
	docs    map[string]domain.QueryDocument
	updates int
}

func newFakeQueryRepo(docs ...domain.QueryDocument) *fakeQueryRepo {
	r := &fakeQueryRepo{docs: map[string]domain.QueryDocument{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeQueryRepo) Create(_ context.Context, doc *domain.QueryDocument) (*domain.QueryDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; ok {
		return nil, domain.ErrConflict("query %s already exists", doc.ID)
	}
	r.docs[doc.ID] = *doc
	out := *doc
	return &out, nil
}

func (r *fakeQueryRepo) GetByID(_ context.Context, id string) (*domain.QueryDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound("query %q not found", id)
	}
	return &d, nil
}

func (r *fakeQueryRepo) List(_ context.Context, _ domain.PageRequest) ([]domain.QueryDocument, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.QueryDocument, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (r *fakeQueryRepo) Update(_ context.Context, doc *domain.QueryDocument) (*domain.QueryDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return nil, domain.ErrNotFound("query %q not found", doc.ID)
	}
	r.updates++
	r.docs[doc.ID] = *doc
	out := *doc
	return &out, nil
}

func (r *fakeQueryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrNotFound("query %q not found", id)
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeQueryRepo) doc(id string) domain.QueryDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id]
}

type fakeDataSource struct {
	calls   int
	lastSQL string
	runFn   func(doc *domain.QueryDocument) (*domain.ResultSet, error)
	tables  []domain.DataTable
}

func (f *fakeDataSource) RunQuery(_ context.Context, doc *domain.QueryDocument) (*domain.ResultSet, error) {
	f.calls++
	f.lastSQL = doc.SQL
	return f.runFn(doc)
}

func (f *fakeDataSource) DescribeTables(context.Context) ([]domain.DataTable, error) {
	return f.tables, nil
}

type plainDataSource struct{}

func (plainDataSource) RunQuery(context.Context, *domain.QueryDocument) (*domain.ResultSet, error) {
	return &domain.ResultSet{}, nil
}

type fakeRegistry map[string]domain.DataSource

func (r fakeRegistry) Get(name string) (domain.DataSource, error) {
	ds, ok := r[name]
	if !ok {
		return nil, domain.ErrNotFound("data source %q not found", name)
	}
	return ds, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.ResultSet
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.ResultSet{}}
}

func (c *fakeCache) Get(_ context.Context, id string) (*domain.ResultSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rs, ok := c.entries[id]; ok {
		return rs, nil
	}
	return &domain.ResultSet{}, nil
}

func (c *fakeCache) Set(_ context.Context, id string, rs *domain.ResultSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[id] = rs
	return nil
}

type fakeSettings struct{ limit int }

func (s fakeSettings) QueryResultLimit() int { return s.limit }
func (s fakeSettings) QueryResultExpiry() time.Duration { return time.Hour }

type tableKey struct{ dataSource, table string }

type fakeTableStore struct {
	mu     sync.Mutex
	tables map[tableKey]domain.DataTable
}

func newFakeTableStore(tables ...domain.DataTable) *fakeTableStore {
	s := &fakeTableStore{tables: map[tableKey]domain.DataTable{}}
	for _, t := range tables {
		s.tables[tableKey{t.DataSource, t.Table}] = t
	}
	return s
}

func (s *fakeTableStore) CreateOrUpdateTable(_ context.Context, t *domain.DataTable) (*domain.DataTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[tableKey{t.DataSource, t.Table}] = *t
	out := *t
	return &out, nil
}

func (s *fakeTableStore) GetColumns(_ context.Context, dataSource, table string) ([]domain.TableColumn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableKey{dataSource, table}]
	if !ok {
		return nil, domain.ErrNotFound("table %q not found", table)
	}
	return t.Columns, nil
}

func (s *fakeTableStore) GetTable(_ context.Context, dataSource, table string) (*domain.DataTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableKey{dataSource, table}]
	if !ok {
		return nil, domain.ErrNotFound("table %q not found", table)
	}
	t.Columns = nil
	return &t, nil
}

func (s *fakeTableStore) DeleteTable(_ context.Context, dataSource, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, tableKey{dataSource, table})
	return nil
}

func (s *fakeTableStore) table(dataSource, table string) (domain.DataTable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableKey{dataSource, table}]
	return t, ok
}
