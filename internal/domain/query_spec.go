package domain

import (
	"bytes"
	"encoding/json"
)

// DefaultQueryJSON is the stored specification of a fresh assisted query.
const DefaultQueryJSON = `{"table":{},"joins":[],"columns":[],"calculations":[],"filters":[],"measures":[],"dimensions":[],"orders":[],"limit":null}`

// Table references a physical (or query-based) table of a data source.
type Table struct {
	Table string `json:"table"`
	Label string `json:"label,omitempty"`
}

// LabelValue is a UI-facing option pair such as a join type or filter operator.
type LabelValue struct {
	Label string `json:"label,omitempty"`
	Value any    `json:"value"`
}

// String returns the value rendered as a string, or "" when unset.
func (lv LabelValue) String() string {
	switch v := lv.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ColumnExpression is a calculated column body. Raw holds the SQL text; AST is
// kept opaque.
type ColumnExpression struct {
	Raw string          `json:"raw,omitempty"`
	AST json.RawMessage `json:"ast,omitempty"`
}

// QueryColumn is a declared column reference in an assisted query.
type QueryColumn struct {
	Table       string            `json:"table,omitempty"`
	Column      string            `json:"column,omitempty"`
	Type        string            `json:"type,omitempty"`
	Label       string            `json:"label,omitempty"`
	Alias       string            `json:"alias,omitempty"`
	Aggregation string            `json:"aggregation,omitempty"`
	Expression  *ColumnExpression `json:"expression,omitempty"`
	Format      json.RawMessage   `json:"format,omitempty"`
	Granularity string            `json:"granularity,omitempty"`
	Order       string            `json:"order,omitempty"`
	Meta        json.RawMessage   `json:"meta,omitempty"`
}

// Normalize applies the column defaults: type falls back to String, label to
// alias then column name, alias to label then column name.
func (c QueryColumn) Normalize() QueryColumn {
	if c.Type == "" {
		c.Type = TypeString
	}
	label := firstNonEmpty(c.Label, c.Alias, c.Column)
	alias := firstNonEmpty(c.Alias, c.Label, c.Column)
	c.Label, c.Alias = label, alias
	return c
}

// IsExpression reports whether the column is a calculated expression.
func (c QueryColumn) IsExpression() bool {
	return c.Expression != nil && c.Expression.Raw != ""
}

// IsAggregate reports whether the column carries a (non-custom) aggregation.
func (c QueryColumn) IsAggregate() bool {
	return c.Aggregation != "" && c.Aggregation != "custom"
}

// IsDateType reports whether the declared type is Date or Datetime.
func (c QueryColumn) IsDateType() bool {
	return c.Type == TypeDate || c.Type == TypeDatetime
}

// IsNumericType reports whether the declared type is Integer or Decimal.
func (c QueryColumn) IsNumericType() bool {
	return c.Type == TypeInteger || c.Type == TypeDecimal
}

// HasGranularity reports whether a date column is bucketed.
func (c QueryColumn) HasGranularity() bool {
	return c.IsDateType() && c.Granularity != ""
}

// Join describes one join step; its right table joins the selected-table set.
type Join struct {
	LeftTable   Table       `json:"left_table"`
	RightTable  Table       `json:"right_table"`
	JoinType    LabelValue  `json:"join_type"`
	LeftColumn  QueryColumn `json:"left_column"`
	RightColumn QueryColumn `json:"right_column"`
	// Condition is a raw ON expression; when set it replaces the column equality.
	Condition string `json:"condition,omitempty"`
}

// QuerySpec is the bound form of an assisted query. Every slice is non-nil after
// ParseQuerySpec; Table and Limit are nil when absent.
type QuerySpec struct {
	Table        *Table
	Joins        []Join
	Columns      []QueryColumn
	Calculations []QueryColumn
	Filters      []json.RawMessage
	Measures     []QueryColumn
	Dimensions   []QueryColumn
	Orders       []QueryColumn
	Limit        *int
}

type rawQuerySpec struct {
	Table        *Table            `json:"table"`
	Joins        []json.RawMessage `json:"joins"`
	Columns      []json.RawMessage `json:"columns"`
	Calculations []json.RawMessage `json:"calculations"`
	Filters      []json.RawMessage `json:"filters"`
	Measures     []json.RawMessage `json:"measures"`
	Dimensions   []json.RawMessage `json:"dimensions"`
	Orders       []json.RawMessage `json:"orders"`
	Limit        *int              `json:"limit"`
}

// NewQuerySpec returns an empty specification.
func NewQuerySpec() *QuerySpec {
	return &QuerySpec{
		Joins:        []Join{},
		Columns:      []QueryColumn{},
		Calculations: []QueryColumn{},
		Filters:      []json.RawMessage{},
		Measures:     []QueryColumn{},
		Dimensions:   []QueryColumn{},
		Orders:       []QueryColumn{},
	}
}

// ParseQuerySpec binds stored JSON into a QuerySpec. Absent or empty input yields
// an empty specification. Column entries wrapped as {"column": {...}} are
// unwrapped; other entries are taken as they are. Declaration order is kept.
func ParseQuerySpec(raw []byte) (*QuerySpec, error) {
	spec := NewQuerySpec()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return spec, nil
	}

	var r rawQuerySpec
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, ErrValidation("invalid query json: %v", err)
	}

	if r.Table != nil && r.Table.Table != "" {
		t := *r.Table
		if t.Label == "" {
			t.Label = t.Table
		}
		spec.Table = &t
	}
	if r.Limit != nil && *r.Limit > 0 {
		limit := *r.Limit
		spec.Limit = &limit
	}

	for _, j := range r.Joins {
		var join Join
		if err := json.Unmarshal(j, &join); err != nil {
			return nil, ErrValidation("invalid join: %v", err)
		}
		join.LeftColumn = join.LeftColumn.Normalize()
		join.RightColumn = join.RightColumn.Normalize()
		spec.Joins = append(spec.Joins, join)
	}

	var err error
	if spec.Columns, err = unwrapColumns(r.Columns); err != nil {
		return nil, err
	}
	if spec.Calculations, err = unwrapColumns(r.Calculations); err != nil {
		return nil, err
	}
	if spec.Measures, err = unwrapColumns(r.Measures); err != nil {
		return nil, err
	}
	if spec.Dimensions, err = unwrapColumns(r.Dimensions); err != nil {
		return nil, err
	}
	if spec.Orders, err = unwrapColumns(r.Orders); err != nil {
		return nil, err
	}
	spec.Filters = append(spec.Filters, r.Filters...)

	return spec, nil
}

func unwrapColumns(entries []json.RawMessage) ([]QueryColumn, error) {
	out := make([]QueryColumn, 0, len(entries))
	for _, e := range entries {
		body := e
		var wrapper struct {
			Column json.RawMessage `json:"column"`
		}
		if err := json.Unmarshal(e, &wrapper); err == nil {
			inner := bytes.TrimSpace(wrapper.Column)
			if len(inner) > 0 && inner[0] == '{' {
				body = inner
			}
		}
		var col QueryColumn
		if err := json.Unmarshal(body, &col); err != nil {
			return nil, ErrValidation("invalid column reference: %v", err)
		}
		out = append(out, col.Normalize())
	}
	return out, nil
}

// GetColumns returns the declared columns used for reconciliation: columns,
// calculations, measures, then dimensions. Duplicates are kept.
func (s *QuerySpec) GetColumns() []QueryColumn {
	out := make([]QueryColumn, 0, len(s.Columns)+len(s.Calculations)+len(s.Measures)+len(s.Dimensions))
	out = append(out, s.Columns...)
	out = append(out, s.Calculations...)
	out = append(out, s.Measures...)
	out = append(out, s.Dimensions...)
	return out
}

// GetSelectedTables returns the base table followed by each join's right table,
// or an empty slice when no base table is set.
func (s *QuerySpec) GetSelectedTables() []Table {
	if s.Table == nil {
		return []Table{}
	}
	tables := make([]Table, 0, len(s.Joins)+1)
	tables = append(tables, *s.Table)
	for _, j := range s.Joins {
		tables = append(tables, j.RightTable)
	}
	return tables
}

// EffectiveLimit clamps the declared limit to max. An absent limit means max.
func (s *QuerySpec) EffectiveLimit(max int) int {
	if s.Limit == nil {
		return max
	}
	if max > 0 && *s.Limit > max {
		return max
	}
	return *s.Limit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
