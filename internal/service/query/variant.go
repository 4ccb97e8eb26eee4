package query

import (
	"context"

	"query-insights/internal/domain"
)

// Controller is the capability set shared by the three query variants. The
// service only ever talks to a query document through its controller.
type Controller interface {
	// Validate checks and normalizes the document before it is saved.
	Validate() error
	// GetSQL returns the statement sent to the data source.
	GetSQL() (string, error)
	// GetColumns returns the reconciled columns of the cached results.
	GetColumns(ctx context.Context) ([]domain.ResultColumn, error)
	GetColumnsFromResults(results *domain.ResultSet) []domain.ResultColumn
	// GetTablesColumns returns the stored columns of every selected table.
	GetTablesColumns(ctx context.Context) ([]domain.TableColumn, error)
	GetSelectedTables() []domain.Table
	// BeforeFetch may reject a fetch before anything runs.
	BeforeFetch() error
	AfterFetchResults(results *domain.ResultSet) (*domain.ResultSet, error)
	// AfterReset restores variant defaults on a document that was just reset.
	AfterReset()
}

// controllerDeps are the collaborators a controller may reach.
type controllerDeps struct {
	tables   domain.TableMetadataStore
	maxLimit int
	// results returns the cached results of the bound document.
	results func(ctx context.Context) (*domain.ResultSet, error)
}

// newController binds a document to the controller of its variant. The variant
// is derived from the document's kind flags on every call.
func newController(doc *domain.QueryDocument, deps controllerDeps) (Controller, error) {
	switch domain.VariantOf(doc) {
	case domain.VariantNative:
		return &nativeController{doc: doc, deps: deps}, nil
	case domain.VariantAssisted:
		spec, err := domain.ParseQuerySpec([]byte(doc.JSON))
		if err != nil {
			return nil, err
		}
		return &assistedController{doc: doc, spec: spec, deps: deps}, nil
	default:
		return &legacyController{doc: doc, deps: deps}, nil
	}
}

// tablesColumns loads the stored columns of each distinct table, tagged with
// the table they belong to.
func tablesColumns(ctx context.Context, store domain.TableMetadataStore, dataSource string, tables []domain.Table) ([]domain.TableColumn, error) {
	columns := []domain.TableColumn{}
	if store == nil {
		return columns, nil
	}

	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if t.Table == "" || seen[t.Table] {
			continue
		}
		seen[t.Table] = true

		table, err := store.GetTable(ctx, dataSource, t.Table)
		if err != nil {
			return nil, err
		}
		cols, err := store.GetColumns(ctx, dataSource, t.Table)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			c.DataSource = dataSource
			c.Table = table.Table
			c.TableLabel = table.Label
			columns = append(columns, c)
		}
	}
	return columns, nil
}

func cachedResults(ctx context.Context, deps controllerDeps) (*domain.ResultSet, error) {
	if deps.results == nil {
		return &domain.ResultSet{}, nil
	}
	return deps.results(ctx)
}
