package mapper

import (
	"database/sql"

	"query-insights/internal/domain"
)

// QueryRow mirrors a row of the queries table.
type QueryRow struct {
	ID              string
	Name            string
	Title           string
	DataSource      string
	IsAssistedQuery int64
	IsNativeQuery   int64
	SQL             string
	JSON            string
	Tables          string
	Columns         string
	Filters         string
	RowLimit        sql.NullInt64
	Transforms      string
	Status          string
	ExecutionTime   float64
	LastExecution   sql.NullString
	ResultsRowCount int64
	CreatedAt       string
	UpdatedAt       string
}

// QueryToDB converts a query document to its row form. Timestamps are left to
// the caller.
func QueryToDB(doc *domain.QueryDocument) (QueryRow, error) {
	tables, err := encodeList("tables", doc.Tables)
	if err != nil {
		return QueryRow{}, err
	}
	columns, err := encodeList("columns", doc.Columns)
	if err != nil {
		return QueryRow{}, err
	}
	transforms, err := encodeList("transforms", doc.Transforms)
	if err != nil {
		return QueryRow{}, err
	}
	status := doc.Status
	if status == "" {
		status = domain.QueryStatusPending
	}
	return QueryRow{
		ID:              doc.ID,
		Name:            doc.Name,
		Title:           doc.Title,
		DataSource:      doc.DataSource,
		IsAssistedQuery: boolToInt(doc.IsAssistedQuery),
		IsNativeQuery:   boolToInt(doc.IsNativeQuery),
		SQL:             doc.SQL,
		JSON:            doc.JSON,
		Tables:          tables,
		Columns:         columns,
		Filters:         doc.Filters,
		RowLimit:        nullInt(doc.Limit),
		Transforms:      transforms,
		Status:          string(status),
		ExecutionTime:   doc.ExecutionTime,
		LastExecution:   nullTime(doc.LastExecution),
		ResultsRowCount: int64(doc.ResultsRowCount),
	}, nil
}

// QueryFromDB converts a stored row to a query document.
func QueryFromDB(r QueryRow) (*domain.QueryDocument, error) {
	tables, err := decodeList[domain.Table]("tables", r.Tables)
	if err != nil {
		return nil, err
	}
	columns, err := decodeList[domain.LegacyColumn]("columns", r.Columns)
	if err != nil {
		return nil, err
	}
	transforms, err := decodeList[domain.Transform]("transforms", r.Transforms)
	if err != nil {
		return nil, err
	}
	return &domain.QueryDocument{
		ID:              r.ID,
		Name:            r.Name,
		Title:           r.Title,
		DataSource:      r.DataSource,
		IsAssistedQuery: r.IsAssistedQuery != 0,
		IsNativeQuery:   r.IsNativeQuery != 0,
		SQL:             r.SQL,
		JSON:            r.JSON,
		Tables:          tables,
		Columns:         columns,
		Filters:         r.Filters,
		Limit:           ptrInt(r.RowLimit),
		Transforms:      transforms,
		Status:          domain.QueryStatus(r.Status),
		ExecutionTime:   r.ExecutionTime,
		LastExecution:   ptrTime(r.LastExecution),
		ResultsRowCount: int(r.ResultsRowCount),
		CreatedAt:       parseTime(r.CreatedAt),
		UpdatedAt:       parseTime(r.UpdatedAt),
	}, nil
}
