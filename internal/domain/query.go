package domain

import (
	"time"
	"unicode/utf8"
)

// QueryStatus represents the execution state of a query document.
type QueryStatus string

// Query execution statuses. Success and Failed are re-enterable: a later fetch
// transitions out again.
const (
	QueryStatusPending QueryStatus = "Pending Execution"
	QueryStatusSuccess QueryStatus = "Execution Successful"
	QueryStatusFailed  QueryStatus = "Execution Failed"
)

// QueryStoreDataSource names the data source backed by stored query results.
const QueryStoreDataSource = "Query Store"

// MaxQueryTitleLength bounds query titles.
const MaxQueryTitleLength = 255

// QueryVariant selects which controller binds a query document.
type QueryVariant int

// Query variants. Legacy is the default when no kind flag is set.
const (
	VariantLegacy QueryVariant = iota
	VariantAssisted
	VariantNative
)

func (v QueryVariant) String() string {
	switch v {
	case VariantAssisted:
		return "assisted"
	case VariantNative:
		return "native"
	default:
		return "legacy"
	}
}

// LegacyColumn is a column selected through the builder-based editor.
type LegacyColumn struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Label       string `json:"label,omitempty"`
	Type        string `json:"type,omitempty"`
	Aggregation string `json:"aggregation,omitempty"`
	Granularity string `json:"granularity,omitempty"`
	Order       string `json:"order,omitempty"`
}

// QueryDocument is a persisted query. Its variant is derived from the kind flags
// on every read, never stored separately.
type QueryDocument struct {
	ID              string
	// Name is the short human-facing identifier, e.g. "QRY-0190a3f2c4".
	Name            string
	Title           string
	DataSource      string
	IsAssistedQuery bool
	IsNativeQuery   bool
	SQL             string
	JSON            string
	Tables          []Table
	Columns         []LegacyColumn
	Filters         string
	Limit           *int
	Transforms      []Transform
	Status          QueryStatus
	ExecutionTime   float64
	LastExecution   *time.Time
	ResultsRowCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VariantOf derives the variant from the document's kind flags. The native
// flag takes precedence over the assisted flag.
func VariantOf(doc *QueryDocument) QueryVariant {
	switch {
	case doc.IsNativeQuery:
		return VariantNative
	case doc.IsAssistedQuery:
		return VariantAssisted
	default:
		return VariantLegacy
	}
}

// CreateQueryRequest holds parameters for creating a query document.
type CreateQueryRequest struct {
	Title           string
	DataSource      string
	IsAssistedQuery bool
	IsNativeQuery   bool
	SQL             string
	JSON            string
	Tables          []Table
	Columns         []LegacyColumn
	Filters         string
	Limit           *int
	Transforms      []Transform
}

// Validate checks that the request is well-formed.
func (r *CreateQueryRequest) Validate() error {
	if r.DataSource == "" {
		return ErrValidation("data_source is required")
	}
	if utf8.RuneCountInString(r.Title) > MaxQueryTitleLength {
		return ErrValidation("title must be <= %d characters", MaxQueryTitleLength)
	}
	if r.IsAssistedQuery && r.IsNativeQuery {
		return ErrValidation("a query cannot be both assisted and native")
	}
	return ValidateTransforms(r.Transforms)
}

// UpdateQueryRequest holds partial-update parameters.
type UpdateQueryRequest struct {
	Title      *string
	DataSource *string
	SQL        *string
	JSON       *string
	Tables     []Table        // nil = no change
	Columns    []LegacyColumn // nil = no change
	Filters    *string
	Limit      *int
	Transforms []Transform // nil = no change, empty = clear
}

// Apply copies the set fields onto doc.
func (r *UpdateQueryRequest) Apply(doc *QueryDocument) {
	if r.Title != nil {
		doc.Title = *r.Title
	}
	if r.DataSource != nil {
		doc.DataSource = *r.DataSource
	}
	if r.SQL != nil {
		doc.SQL = *r.SQL
	}
	if r.JSON != nil {
		doc.JSON = *r.JSON
	}
	if r.Tables != nil {
		doc.Tables = r.Tables
	}
	if r.Columns != nil {
		doc.Columns = r.Columns
	}
	if r.Filters != nil {
		doc.Filters = *r.Filters
	}
	if r.Limit != nil {
		limit := *r.Limit
		doc.Limit = &limit
	}
	if r.Transforms != nil {
		doc.Transforms = r.Transforms
	}
}
