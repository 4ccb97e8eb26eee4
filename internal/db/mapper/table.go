package mapper

import "query-insights/internal/domain"

// DataTableRow mirrors a row of the data_tables table.
type DataTableRow struct {
	ID           string
	DataSource   string
	TableName    string
	Label        string
	IsQueryBased int64
	CreatedAt    string
	UpdatedAt    string
}

// ColumnRow mirrors a row of the data_table_columns table.
type ColumnRow struct {
	Position   int64
	ColumnName string
	Label      string
	Type       string
}

// DataTableFromDB converts a stored table row. Columns are loaded separately.
func DataTableFromDB(r DataTableRow) *domain.DataTable {
	return &domain.DataTable{
		ID:           r.ID,
		DataSource:   r.DataSource,
		Table:        r.TableName,
		Label:        r.Label,
		IsQueryBased: r.IsQueryBased != 0,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

// DataTableToDB converts a table to its row form.
func DataTableToDB(t *domain.DataTable) DataTableRow {
	label := t.Label
	if label == "" {
		label = t.Table
	}
	return DataTableRow{
		ID:           t.ID,
		DataSource:   t.DataSource,
		TableName:    t.Table,
		Label:        label,
		IsQueryBased: boolToInt(t.IsQueryBased),
	}
}

// ColumnsToDB numbers columns by position. Empty labels fall back to the column
// name and empty types to String.
func ColumnsToDB(cols []domain.TableColumn) []ColumnRow {
	out := make([]ColumnRow, len(cols))
	for i, c := range cols {
		label := c.Label
		if label == "" {
			label = c.Column
		}
		typ := c.Type
		if typ == "" {
			typ = domain.TypeString
		}
		out[i] = ColumnRow{Position: int64(i), ColumnName: c.Column, Label: label, Type: typ}
	}
	return out
}

// ColumnFromDB converts a stored column row.
func ColumnFromDB(r ColumnRow) domain.TableColumn {
	return domain.TableColumn{Column: r.ColumnName, Label: r.Label, Type: r.Type}
}
