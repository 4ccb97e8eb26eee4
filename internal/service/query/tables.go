package query

import (
	"context"
	"fmt"

	"query-insights/internal/domain"
)

// refreshQueryTable registers the result shape of a query as a query-based
// table of its data source, keyed by the query ID.
func (s *QueryService) refreshQueryTable(ctx context.Context, doc *domain.QueryDocument, results *domain.ResultSet) error {
	if s.tables == nil {
		return nil
	}

	columns := make([]domain.TableColumn, 0, len(results.Columns))
	for _, c := range results.Columns {
		columns = append(columns, domain.TableColumnFromResult(c))
	}

	_, err := s.tables.CreateOrUpdateTable(ctx, &domain.DataTable{
		DataSource:   doc.DataSource,
		Table:        doc.ID,
		Label:        doc.Title,
		IsQueryBased: true,
		Columns:      columns,
	})
	return err
}

// SyncDataSource introspects the physical tables of a data source and stores
// their metadata. It returns the number of tables synced.
func (s *QueryService) SyncDataSource(ctx context.Context, name string) (int, error) {
	if s.tables == nil {
		return 0, domain.ErrValidation("table metadata store is not configured")
	}
	source, err := s.dataSources.Get(name)
	if err != nil {
		return 0, err
	}
	introspector, ok := source.(domain.TableIntrospector)
	if !ok {
		return 0, domain.ErrValidation("data source %q does not support table introspection", name)
	}

	tables, err := introspector.DescribeTables(ctx)
	if err != nil {
		return 0, fmt.Errorf("describe tables of %s: %w", name, err)
	}
	for i := range tables {
		t := tables[i]
		t.DataSource = name
		if _, err := s.tables.CreateOrUpdateTable(ctx, &t); err != nil {
			return i, fmt.Errorf("store table %s: %w", t.Table, err)
		}
	}

	s.logger.Info("data source synced", "data_source", name, "tables", len(tables))
	return len(tables), nil
}
