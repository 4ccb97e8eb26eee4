package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Semantic column types shared by declared columns, inferred columns, and
// table metadata.
const (
	TypeString   = "String"
	TypeText     = "Text"
	TypeInteger  = "Integer"
	TypeDecimal  = "Decimal"
	TypeDate     = "Date"
	TypeDatetime = "Datetime"
	TypeTime     = "Time"
)

// FormatDateFormat is the format option key derived from a column's granularity.
const FormatDateFormat = "date_format"

// ResultColumn describes one column of a result set. Before reconciliation only
// Label is meaningful; afterwards Type is always set and FormatOptions is never nil.
type ResultColumn struct {
	Label         string         `json:"label"`
	Type          string         `json:"type,omitempty"`
	FormatOptions map[string]any `json:"format_options"`
}

// NewResultColumn builds a column with an empty label falling back to "Unnamed"
// and an empty type falling back to String.
func NewResultColumn(label, typ string) ResultColumn {
	if label == "" {
		label = "Unnamed"
	}
	if typ == "" {
		typ = TypeString
	}
	return ResultColumn{Label: label, Type: typ, FormatOptions: map[string]any{}}
}

// ResultSet is a header row of column descriptors followed by value rows aligned
// positionally to the header.
type ResultSet struct {
	Columns []ResultColumn
	Rows    [][]any
}

// IsEmpty reports whether the result set has neither a header nor rows.
func (r *ResultSet) IsEmpty() bool {
	return r == nil || (len(r.Columns) == 0 && len(r.Rows) == 0)
}

// RowCount returns the number of value rows.
func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Labels returns the header labels in order.
func (r *ResultSet) Labels() []string {
	if r == nil {
		return nil
	}
	labels := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		labels[i] = c.Label
	}
	return labels
}

// ColumnIndex returns the position of the first column with the given label, or -1.
func (r *ResultSet) ColumnIndex(label string) int {
	if r == nil {
		return -1
	}
	for i, c := range r.Columns {
		if c.Label == label {
			return i
		}
	}
	return -1
}

// Truncate returns a copy holding the header and at most limit rows.
// A non-positive limit leaves the rows untouched.
func (r *ResultSet) Truncate(limit int) *ResultSet {
	if r == nil {
		return &ResultSet{}
	}
	out := &ResultSet{Columns: r.Columns, Rows: r.Rows}
	if limit > 0 && len(out.Rows) > limit {
		out.Rows = out.Rows[:limit]
	}
	return out
}

// MarshalJSON encodes the result set as a single list whose first element is the
// header row: [[{label,type,...}, ...], [v1, v2, ...], ...]. An empty result set
// encodes as [].
func (r ResultSet) MarshalJSON() ([]byte, error) {
	if len(r.Columns) == 0 && len(r.Rows) == 0 {
		return []byte("[]"), nil
	}
	out := make([]any, 0, len(r.Rows)+1)
	columns := r.Columns
	if columns == nil {
		columns = []ResultColumn{}
	}
	out = append(out, columns)
	for _, row := range r.Rows {
		out = append(out, row)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the list form produced by MarshalJSON. Header entries may
// be plain strings (raw labels) or column objects.
func (r *ResultSet) UnmarshalJSON(data []byte) error {
	return r.decode(data, false)
}

// DecodeResultSet decodes the list form like UnmarshalJSON but keeps row
// numbers as json.Number, so integers beyond float64 precision survive.
func DecodeResultSet(data []byte) (*ResultSet, error) {
	rs := &ResultSet{}
	if err := rs.decode(data, true); err != nil {
		return nil, err
	}
	return rs, nil
}

func (r *ResultSet) decode(data []byte, useNumber bool) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode result set: %w", err)
	}
	r.Columns = nil
	r.Rows = nil
	if len(raw) == 0 {
		return nil
	}

	var header []json.RawMessage
	if err := json.Unmarshal(raw[0], &header); err != nil {
		return fmt.Errorf("decode result header: %w", err)
	}
	r.Columns = make([]ResultColumn, 0, len(header))
	for _, h := range header {
		var label string
		if err := json.Unmarshal(h, &label); err == nil {
			r.Columns = append(r.Columns, ResultColumn{Label: label})
			continue
		}
		var col ResultColumn
		if err := json.Unmarshal(h, &col); err != nil {
			return fmt.Errorf("decode result column: %w", err)
		}
		r.Columns = append(r.Columns, col)
	}

	r.Rows = make([][]any, 0, len(raw)-1)
	for _, rr := range raw[1:] {
		var row []any
		dec := json.NewDecoder(bytes.NewReader(rr))
		if useNumber {
			dec.UseNumber()
		}
		if err := dec.Decode(&row); err != nil {
			return fmt.Errorf("decode result row: %w", err)
		}
		r.Rows = append(r.Rows, row)
	}
	return nil
}
