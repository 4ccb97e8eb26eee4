package query

import (
	"context"
	"encoding/json"
	"strings"

	"query-insights/internal/domain"
)

// legacyController binds builder-based queries whose tables, columns and
// filters are stored directly on the document.
type legacyController struct {
	doc  *domain.QueryDocument
	deps controllerDeps
}

var _ Controller = (*legacyController)(nil)

func (c *legacyController) Validate() error {
	if len(c.doc.Tables) > 1 {
		return domain.ErrValidation("legacy queries select from a single table")
	}
	for _, col := range c.doc.Columns {
		if col.Column == "" {
			return domain.ErrValidation("legacy column %q has no column name", col.Label)
		}
	}
	return nil
}

// spec converts the stored builder fields to a query specification so legacy
// queries compile through the same assembler as assisted ones.
func (c *legacyController) spec() *domain.QuerySpec {
	spec := domain.NewQuerySpec()
	if len(c.doc.Tables) > 0 && c.doc.Tables[0].Table != "" {
		t := c.doc.Tables[0]
		if t.Label == "" {
			t.Label = t.Table
		}
		spec.Table = &t
	}
	for _, lc := range c.doc.Columns {
		spec.Columns = append(spec.Columns, domain.QueryColumn{
			Table:       lc.Table,
			Column:      lc.Column,
			Label:       lc.Label,
			Type:        lc.Type,
			Aggregation: lc.Aggregation,
			Granularity: lc.Granularity,
			Order:       lc.Order,
		}.Normalize())
	}
	if f := strings.TrimSpace(c.doc.Filters); f != "" {
		raw, _ := json.Marshal(map[string]any{"expression": domain.ColumnExpression{Raw: f}})
		spec.Filters = append(spec.Filters, raw)
	}
	if c.doc.Limit != nil && *c.doc.Limit > 0 {
		limit := *c.doc.Limit
		spec.Limit = &limit
	}
	return spec
}

func (c *legacyController) GetSQL() (string, error) {
	return BuildSQL(c.spec(), c.deps.maxLimit)
}

func (c *legacyController) GetColumns(ctx context.Context) ([]domain.ResultColumn, error) {
	results, err := cachedResults(ctx, c.deps)
	if err != nil {
		return nil, err
	}
	return c.GetColumnsFromResults(results), nil
}

func (c *legacyController) GetColumnsFromResults(results *domain.ResultSet) []domain.ResultColumn {
	return ColumnsFromResults(results, c.spec().GetColumns())
}

func (c *legacyController) GetTablesColumns(ctx context.Context) ([]domain.TableColumn, error) {
	return tablesColumns(ctx, c.deps.tables, c.doc.DataSource, c.GetSelectedTables())
}

func (c *legacyController) GetSelectedTables() []domain.Table {
	tables := make([]domain.Table, 0, len(c.doc.Tables))
	for _, t := range c.doc.Tables {
		if t.Table != "" {
			tables = append(tables, t)
		}
	}
	return tables
}

func (c *legacyController) BeforeFetch() error { return nil }

func (c *legacyController) AfterFetchResults(results *domain.ResultSet) (*domain.ResultSet, error) {
	return results, nil
}

func (c *legacyController) AfterReset() {}
