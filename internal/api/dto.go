package api

import (
	"bytes"
	"encoding/json"
	"time"

	"query-insights/internal/domain"
)

// queryResponse is the wire form of a query document.
type queryResponse struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Title           string                `json:"title"`
	DataSource      string                `json:"data_source"`
	Variant         string                `json:"variant"`
	IsAssistedQuery bool                  `json:"is_assisted_query"`
	IsNativeQuery   bool                  `json:"is_native_query"`
	SQL             string                `json:"sql"`
	JSON            json.RawMessage       `json:"json,omitempty"`
	Tables          []domain.Table        `json:"tables"`
	Columns         []domain.LegacyColumn `json:"columns"`
	Filters         string                `json:"filters,omitempty"`
	Limit           *int                  `json:"limit,omitempty"`
	Transforms      []domain.Transform    `json:"transforms"`
	Status          domain.QueryStatus    `json:"status"`
	ExecutionTime   float64               `json:"execution_time"`
	LastExecution   *time.Time            `json:"last_execution,omitempty"`
	ResultsRowCount int                   `json:"results_row_count"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func queryToAPI(doc *domain.QueryDocument) queryResponse {
	out := queryResponse{
		ID:              doc.ID,
		Name:            doc.Name,
		Title:           doc.Title,
		DataSource:      doc.DataSource,
		Variant:         domain.VariantOf(doc).String(),
		IsAssistedQuery: doc.IsAssistedQuery,
		IsNativeQuery:   doc.IsNativeQuery,
		SQL:             doc.SQL,
		Tables:          emptyIfNil(doc.Tables),
		Columns:         emptyIfNil(doc.Columns),
		Filters:         doc.Filters,
		Limit:           doc.Limit,
		Transforms:      emptyIfNil(doc.Transforms),
		Status:          doc.Status,
		ExecutionTime:   doc.ExecutionTime,
		LastExecution:   doc.LastExecution,
		ResultsRowCount: doc.ResultsRowCount,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if doc.JSON != "" && json.Valid([]byte(doc.JSON)) {
		out.JSON = json.RawMessage(doc.JSON)
	}
	return out
}

func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// listQueriesResponse is one page of query documents.
type listQueriesResponse struct {
	Queries       []queryResponse `json:"queries"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// createQueryRequest is the body of POST /v1/queries.
type createQueryRequest struct {
	Title           string                `json:"title"`
	DataSource      string                `json:"data_source"`
	IsAssistedQuery bool                  `json:"is_assisted_query"`
	IsNativeQuery   bool                  `json:"is_native_query"`
	SQL             string                `json:"sql"`
	JSON            json.RawMessage       `json:"json"`
	Tables          []domain.Table        `json:"tables"`
	Columns         []domain.LegacyColumn `json:"columns"`
	Filters         string                `json:"filters"`
	Limit           *int                  `json:"limit"`
	Transforms      []domain.Transform    `json:"transforms"`
}

func (r createQueryRequest) toDomain() (domain.CreateQueryRequest, error) {
	spec, err := specText(r.JSON)
	if err != nil {
		return domain.CreateQueryRequest{}, err
	}
	return domain.CreateQueryRequest{
		Title:           r.Title,
		DataSource:      r.DataSource,
		IsAssistedQuery: r.IsAssistedQuery,
		IsNativeQuery:   r.IsNativeQuery,
		SQL:             r.SQL,
		JSON:            spec,
		Tables:          r.Tables,
		Columns:         r.Columns,
		Filters:         r.Filters,
		Limit:           r.Limit,
		Transforms:      r.Transforms,
	}, nil
}

// updateQueryRequest is the body of PUT /v1/queries/{id}. Absent fields are
// left unchanged.
type updateQueryRequest struct {
	Title      *string               `json:"title"`
	DataSource *string               `json:"data_source"`
	SQL        *string               `json:"sql"`
	JSON       json.RawMessage       `json:"json"`
	Tables     []domain.Table        `json:"tables"`
	Columns    []domain.LegacyColumn `json:"columns"`
	Filters    *string               `json:"filters"`
	Limit      *int                  `json:"limit"`
	Transforms []domain.Transform    `json:"transforms"`
}

func (r updateQueryRequest) toDomain() (domain.UpdateQueryRequest, error) {
	out := domain.UpdateQueryRequest{
		Title:      r.Title,
		DataSource: r.DataSource,
		SQL:        r.SQL,
		Tables:     r.Tables,
		Columns:    r.Columns,
		Filters:    r.Filters,
		Limit:      r.Limit,
		Transforms: r.Transforms,
	}
	if len(r.JSON) > 0 {
		spec, err := specText(r.JSON)
		if err != nil {
			return domain.UpdateQueryRequest{}, err
		}
		out.JSON = &spec
	}
	return out, nil
}

// specText accepts the assisted specification either as a JSON object or as
// a string holding one.
func specText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", domain.ErrValidation("invalid json field: %v", err)
		}
		return s, nil
	}
	return string(raw), nil
}

type sqlResponse struct {
	SQL string `json:"sql"`
}

type columnsResponse struct {
	Columns []domain.ResultColumn `json:"columns"`
}

type tablesResponse struct {
	Tables []domain.Table `json:"tables"`
}

type tableColumnsResponse struct {
	Columns []domain.TableColumn `json:"columns"`
}

type syncResponse struct {
	DataSource string `json:"data_source"`
	Tables     int    `json:"tables"`
}
