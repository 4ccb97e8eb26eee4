package query

import "query-insights/internal/domain"

// ReconcileColumns merges the inferred column types of a result set with the
// declared query columns. One descriptor is returned per header entry, in header
// order.
//
// The first declared column whose label or alias equals the result label wins;
// later declarations with the same label are never considered. A match takes
// the declared alias (or label), the declared type, and a date_format option
// carrying the declared granularity. Unmatched columns keep their label and the
// inferred type.
func ReconcileColumns(header []domain.ResultColumn, declared []domain.QueryColumn, inferred []domain.ResultColumn) []domain.ResultColumn {
	inferredTypes := make(map[string]string, len(inferred))
	for _, c := range inferred {
		if _, ok := inferredTypes[c.Label]; !ok {
			inferredTypes[c.Label] = c.Type
		}
	}

	out := make([]domain.ResultColumn, 0, len(header))
	for _, h := range header {
		typ := inferredTypes[h.Label]
		if typ == "" {
			typ = domain.TypeString
		}

		match, ok := findDeclared(declared, h.Label)
		if !ok {
			out = append(out, domain.NewResultColumn(h.Label, typ))
			continue
		}

		col := domain.NewResultColumn(firstNonEmpty(match.Alias, match.Label, h.Label), match.Type)
		var granularity any
		if match.Granularity != "" {
			granularity = match.Granularity
		}
		col.FormatOptions[domain.FormatDateFormat] = granularity
		out = append(out, col)
	}
	return out
}

func findDeclared(declared []domain.QueryColumn, label string) (domain.QueryColumn, bool) {
	for _, c := range declared {
		if c.Label == label || c.Alias == label {
			return c, true
		}
	}
	return domain.QueryColumn{}, false
}

// ColumnsFromResults infers and reconciles the header of a result set. An empty
// result set yields an empty slice without running inference.
func ColumnsFromResults(results *domain.ResultSet, declared []domain.QueryColumn) []domain.ResultColumn {
	if results.IsEmpty() {
		return []domain.ResultColumn{}
	}
	return ReconcileColumns(results.Columns, declared, InferColumnTypes(results))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
