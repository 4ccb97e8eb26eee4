package query

import (
	"context"
	"strings"

	"query-insights/internal/domain"
)

// assistedController binds queries described by a JSON specification.
type assistedController struct {
	doc  *domain.QueryDocument
	spec *domain.QuerySpec
	deps controllerDeps
}

var _ Controller = (*assistedController)(nil)

func (c *assistedController) Validate() error {
	switch strings.TrimSpace(c.doc.JSON) {
	case "", "null", "{}":
		c.doc.JSON = domain.DefaultQueryJSON
		c.spec = domain.NewQuerySpec()
	}
	return nil
}

func (c *assistedController) GetSQL() (string, error) {
	return BuildSQL(c.spec, c.deps.maxLimit)
}

func (c *assistedController) GetColumns(ctx context.Context) ([]domain.ResultColumn, error) {
	results, err := cachedResults(ctx, c.deps)
	if err != nil {
		return nil, err
	}
	return c.GetColumnsFromResults(results), nil
}

func (c *assistedController) GetColumnsFromResults(results *domain.ResultSet) []domain.ResultColumn {
	return ColumnsFromResults(results, c.spec.GetColumns())
}

func (c *assistedController) GetTablesColumns(ctx context.Context) ([]domain.TableColumn, error) {
	return tablesColumns(ctx, c.deps.tables, c.doc.DataSource, c.GetSelectedTables())
}

func (c *assistedController) GetSelectedTables() []domain.Table {
	return c.spec.GetSelectedTables()
}

func (c *assistedController) BeforeFetch() error {
	if c.doc.DataSource == domain.QueryStoreDataSource {
		return domain.ErrValidation("Query Store data source is not supported for assisted query")
	}
	return nil
}

func (c *assistedController) AfterFetchResults(results *domain.ResultSet) (*domain.ResultSet, error) {
	return results, nil
}

func (c *assistedController) AfterReset() {
	c.doc.IsAssistedQuery = true
	c.doc.JSON = domain.DefaultQueryJSON
	c.spec = domain.NewQuerySpec()
}
