package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"query-insights/internal/domain"
)

// ApplyTransforms validates the declared transforms and applies them in
// declaration order. Nothing is applied when validation fails.
func ApplyTransforms(results *domain.ResultSet, transforms []domain.Transform) (*domain.ResultSet, error) {
	if err := domain.ValidateTransforms(transforms); err != nil {
		return nil, err
	}
	if results == nil {
		results = &domain.ResultSet{}
	}

	out := results
	for _, t := range transforms {
		var err error
		switch t.Type {
		case domain.TransformPivot:
			out, err = applyPivot(out, t.Options)
		case domain.TransformUnpivot:
			out, err = applyUnpivot(out, t.Options)
		case domain.TransformTranspose:
			out, err = applyTranspose(out, t.Options)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeOptions(raw json.RawMessage, dst any, kind domain.TransformType) error {
	if len(raw) == 0 {
		return nil
	}
	// Options may arrive as a JSON object or as a JSON-encoded string.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.ErrValidation("invalid %s options: %v", strings.ToLower(string(kind)), err)
	}
	return nil
}

// applyPivot spreads the distinct values of the pivot column into new columns,
// one row per distinct index value, each cell holding the sum of the value
// column. Missing combinations are 0.
func applyPivot(results *domain.ResultSet, raw json.RawMessage) (*domain.ResultSet, error) {
	var opts domain.PivotOptions
	if err := decodeOptions(raw, &opts, domain.TransformPivot); err != nil {
		return nil, err
	}

	pivotIdx := results.ColumnIndex(opts.Column)
	indexIdx := results.ColumnIndex(opts.Index)
	valueIdx := results.ColumnIndex(opts.Value)
	if opts.Column == "" || opts.Index == "" || opts.Value == "" || pivotIdx < 0 || indexIdx < 0 || valueIdx < 0 {
		return nil, domain.ErrValidation("invalid pivot options")
	}
	if pivotIdx == indexIdx {
		return nil, domain.ErrValidation("pivot and index columns cannot be the same")
	}

	indexValues := map[string]any{}
	pivotValues := map[string]any{}
	sums := map[string]map[string]decimal.Decimal{}

	for _, row := range results.Rows {
		iv, pv, vv := cell(row, indexIdx), cell(row, pivotIdx), cell(row, valueIdx)
		ik, pk := renderValue(iv), renderValue(pv)
		if _, ok := indexValues[ik]; !ok {
			indexValues[ik] = iv
			sums[ik] = map[string]decimal.Decimal{}
		}
		if _, ok := pivotValues[pk]; !ok {
			pivotValues[pk] = pv
		}
		d, err := toDecimal(vv)
		if err != nil {
			return nil, domain.ErrValidation("pivot value column %q: %v", opts.Value, err)
		}
		sums[ik][pk] = sums[ik][pk].Add(d)
	}

	indexKeys := sortedKeys(indexValues)
	pivotKeys := sortedKeys(pivotValues)

	valueType := results.Columns[valueIdx].Type
	columns := make([]domain.ResultColumn, 0, len(pivotKeys)+1)
	columns = append(columns, resultColumnFrom(results.Columns[indexIdx]))
	for _, pk := range pivotKeys {
		columns = append(columns, domain.NewResultColumn(pk, valueType))
	}

	rows := make([][]any, 0, len(indexKeys))
	for _, ik := range indexKeys {
		row := make([]any, 0, len(pivotKeys)+1)
		row = append(row, indexValues[ik])
		for _, pk := range pivotKeys {
			row = append(row, sums[ik][pk].InexactFloat64())
		}
		rows = append(rows, row)
	}

	return &domain.ResultSet{Columns: columns, Rows: rows}, nil
}

// applyUnpivot melts every non-index column into (label, value) rows. Rows are
// emitted column by column, keeping the input row order within each column.
func applyUnpivot(results *domain.ResultSet, raw json.RawMessage) (*domain.ResultSet, error) {
	var opts domain.UnpivotOptions
	if err := decodeOptions(raw, &opts, domain.TransformUnpivot); err != nil {
		return nil, err
	}

	indexIdx := results.ColumnIndex(opts.IndexColumn)
	if opts.IndexColumn == "" || indexIdx < 0 || opts.ColumnLabel == "" || opts.ValueLabel == "" {
		return nil, domain.ErrValidation("invalid unpivot options")
	}

	columns := []domain.ResultColumn{
		resultColumnFrom(results.Columns[indexIdx]),
		domain.NewResultColumn(opts.ColumnLabel, domain.TypeString),
		domain.NewResultColumn(opts.ValueLabel, domain.TypeDecimal),
	}

	rows := make([][]any, 0, len(results.Rows)*(len(results.Columns)-1))
	for ci, col := range results.Columns {
		if ci == indexIdx {
			continue
		}
		for _, row := range results.Rows {
			rows = append(rows, []any{cell(row, indexIdx), col.Label, cell(row, ci)})
		}
	}

	return &domain.ResultSet{Columns: columns, Rows: rows}, nil
}

// applyTranspose turns each non-index column into a row and each index value
// into a column. The first column holds the original column labels; the types
// of the new columns are inferred from their values.
func applyTranspose(results *domain.ResultSet, raw json.RawMessage) (*domain.ResultSet, error) {
	var opts domain.TransposeOptions
	if err := decodeOptions(raw, &opts, domain.TransformTranspose); err != nil {
		return nil, err
	}

	indexIdx := results.ColumnIndex(opts.IndexColumn)
	if opts.IndexColumn == "" || indexIdx < 0 || opts.ColumnLabel == "" {
		return nil, domain.ErrValidation("invalid transpose options")
	}

	rows := make([][]any, 0, len(results.Columns)-1)
	for ci, col := range results.Columns {
		if ci == indexIdx {
			continue
		}
		row := make([]any, 0, len(results.Rows)+1)
		row = append(row, col.Label)
		for _, r := range results.Rows {
			row = append(row, cell(r, ci))
		}
		rows = append(rows, row)
	}

	columns := make([]domain.ResultColumn, 0, len(results.Rows)+1)
	columns = append(columns, domain.NewResultColumn(opts.ColumnLabel, domain.TypeString))
	for ri, r := range results.Rows {
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, row[ri+1])
		}
		columns = append(columns, domain.NewResultColumn(renderValue(cell(r, indexIdx)), InferType(values)))
	}

	return &domain.ResultSet{Columns: columns, Rows: rows}, nil
}

// resultColumnFrom copies a header column, filling the type and format options.
func resultColumnFrom(c domain.ResultColumn) domain.ResultColumn {
	out := domain.NewResultColumn(c.Label, c.Type)
	for k, v := range c.FormatOptions {
		out.FormatOptions[k] = v
	}
	return out
}

func cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return decimal.NewFromFloat(val).String()
	default:
		return fmt.Sprint(val)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case decimal.Decimal:
		return val, nil
	case json.Number:
		return decimal.NewFromString(val.String())
	case string:
		if strings.TrimSpace(val) == "" {
			return decimal.Zero, nil
		}
		return parseNumber(strings.TrimSpace(val))
	case []byte:
		return toDecimal(string(val))
	default:
		return decimal.Zero, fmt.Errorf("value %v is not numeric", v)
	}
}

// sortedKeys orders rendered values ascending, numerically when both sides are
// numbers.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := decimal.NewFromString(keys[i])
		b, errB := decimal.NewFromString(keys[j])
		if errA == nil && errB == nil {
			return a.LessThan(b)
		}
		return keys[i] < keys[j]
	})
	return keys
}
