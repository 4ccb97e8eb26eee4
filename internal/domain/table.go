package domain

import "time"

// TableColumn is stored metadata for one column of a data-source table.
type TableColumn struct {
	Column     string `json:"column"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	DataSource string `json:"data_source,omitempty"`
	Table      string `json:"table,omitempty"`
	TableLabel string `json:"table_label,omitempty"`
}

// TableColumnFromResult maps a result column to table metadata. The label and
// column name both come from the result label, the type defaults to String.
func TableColumnFromResult(c ResultColumn) TableColumn {
	label := c.Label
	if label == "" {
		label = "Unnamed"
	}
	typ := c.Type
	if typ == "" {
		typ = TypeString
	}
	return TableColumn{Column: label, Label: label, Type: typ}
}

// DataTable is a table registered for a data source. Query-based tables mirror
// the result shape of a query document and are keyed by the query ID.
type DataTable struct {
	ID           string
	DataSource   string
	Table        string
	Label        string
	IsQueryBased bool
	Columns      []TableColumn
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
