package domain

import "encoding/json"

// TransformType names a shape-changing post-fetch operation.
type TransformType string

// Supported transforms. At most one of them may be declared on a query.
const (
	TransformPivot     TransformType = "Pivot"
	TransformUnpivot   TransformType = "Unpivot"
	TransformTranspose TransformType = "Transpose"
)

// Transform is a declared post-fetch transform with its options object.
type Transform struct {
	Type    TransformType   `json:"type"`
	Options json.RawMessage `json:"options,omitempty"`
}

// PivotOptions configures a pivot: values of Column become new columns, rows are
// keyed by Index, and cells hold the sum of Value.
type PivotOptions struct {
	Column string `json:"column"`
	Index  string `json:"index"`
	Value  string `json:"value"`
}

// UnpivotOptions configures an unpivot (melt) around IndexColumn.
type UnpivotOptions struct {
	IndexColumn string `json:"index_column"`
	ColumnLabel string `json:"column_label"`
	ValueLabel  string `json:"value_label"`
}

// TransposeOptions configures a transpose keyed by IndexColumn.
type TransposeOptions struct {
	IndexColumn string `json:"index_column"`
	ColumnLabel string `json:"column_label"`
}

// ValidateTransforms checks the declared transforms: each type may appear at most
// once and no two different types may be combined.
func ValidateTransforms(transforms []Transform) error {
	seen := make(map[TransformType]bool, len(transforms))
	var first TransformType
	for _, t := range transforms {
		switch t.Type {
		case TransformPivot, TransformUnpivot, TransformTranspose:
		default:
			return ErrValidation("unsupported transform type %q", t.Type)
		}
		if seen[t.Type] {
			return ErrValidation("transform %s can only be applied once", t.Type)
		}
		if first != "" && first != t.Type {
			return ErrValidation("%s and %s transforms cannot be applied together", first, t.Type)
		}
		seen[t.Type] = true
		if first == "" {
			first = t.Type
		}
	}
	return nil
}
