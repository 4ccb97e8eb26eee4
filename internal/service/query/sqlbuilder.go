package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"query-insights/internal/domain"
)

var aggregations = map[string]string{
	"sum":            "SUM(%s)",
	"count":          "COUNT(%s)",
	"avg":            "AVG(%s)",
	"average":        "AVG(%s)",
	"min":            "MIN(%s)",
	"minimum":        "MIN(%s)",
	"max":            "MAX(%s)",
	"maximum":        "MAX(%s)",
	"distinct_count": "COUNT(DISTINCT %s)",
	"count_distinct": "COUNT(DISTINCT %s)",
}

var granularities = map[string]bool{
	"second": true, "minute": true, "hour": true, "day": true,
	"week": true, "month": true, "quarter": true, "year": true,
}

var joinTypes = map[string]string{
	"":      "LEFT JOIN",
	"left":  "LEFT JOIN",
	"inner": "INNER JOIN",
	"right": "RIGHT JOIN",
	"full":  "FULL OUTER JOIN",
	"cross": "CROSS JOIN",
}

// selectStatement is the assembled form of a query before rendering.
type selectStatement struct {
	from    string
	joins   []string
	selects []string
	where   []string
	groupBy []string
	orderBy []string
	limit   int
}

func (s *selectStatement) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(s.selects) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.selects, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.from)
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.groupBy, ", "))
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}
	if s.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.limit)
	}
	return b.String()
}

// BuildSQL compiles an assisted query specification into a SELECT statement.
// A specification without a base table compiles to an empty string. The limit
// is the declared limit clamped to maxLimit; an absent limit means maxLimit.
func BuildSQL(spec *domain.QuerySpec, maxLimit int) (string, error) {
	if spec == nil || spec.Table == nil {
		return "", nil
	}

	stmt := &selectStatement{
		from:  quoteIdent(spec.Table.Table),
		limit: spec.EffectiveLimit(maxLimit),
	}

	for _, j := range spec.Joins {
		clause, err := joinClause(j)
		if err != nil {
			return "", err
		}
		stmt.joins = append(stmt.joins, clause)
	}

	var selected []domain.QueryColumn
	if len(spec.Measures) > 0 || len(spec.Dimensions) > 0 {
		selected = append(selected, spec.Dimensions...)
		selected = append(selected, spec.Measures...)
	} else {
		selected = append(selected, spec.Columns...)
	}
	selected = append(selected, spec.Calculations...)

	if err := stmt.addColumns(selected); err != nil {
		return "", err
	}

	for _, raw := range spec.Filters {
		cond, err := filterCondition(raw)
		if err != nil {
			return "", err
		}
		if cond != "" {
			stmt.where = append(stmt.where, cond)
		}
	}

	orders := spec.Orders
	if len(orders) == 0 {
		orders = selected
	}
	if err := stmt.addOrders(orders, selected); err != nil {
		return "", err
	}

	return stmt.String(), nil
}

// addColumns renders the select list and groups by every non-aggregate column
// when at least one column aggregates.
func (s *selectStatement) addColumns(cols []domain.QueryColumn) error {
	aggregated := false
	for _, c := range cols {
		if c.IsAggregate() {
			aggregated = true
			break
		}
	}

	for _, c := range cols {
		expr, err := columnExpr(c)
		if err != nil {
			return err
		}
		if alias := selectAlias(c); alias != "" {
			s.selects = append(s.selects, expr+" AS "+quoteIdent(alias))
		} else {
			s.selects = append(s.selects, expr)
		}
		if aggregated && !c.IsAggregate() && !isAggregateExpression(c) {
			s.groupBy = append(s.groupBy, expr)
		}
	}
	return nil
}

func (s *selectStatement) addOrders(orders, selected []domain.QueryColumn) error {
	aliases := make(map[string]bool, len(selected))
	for _, c := range selected {
		if a := selectAlias(c); a != "" {
			aliases[a] = true
		}
	}
	for _, c := range orders {
		dir := strings.ToUpper(strings.TrimSpace(c.Order))
		switch dir {
		case "":
			continue
		case "ASC", "DESC":
		default:
			return domain.ErrValidation("invalid sort order %q for column %q", c.Order, c.Label)
		}
		if a := selectAlias(c); a != "" && aliases[a] {
			s.orderBy = append(s.orderBy, quoteIdent(a)+" "+dir)
			continue
		}
		expr, err := columnExpr(c)
		if err != nil {
			return err
		}
		s.orderBy = append(s.orderBy, expr+" "+dir)
	}
	return nil
}

// columnExpr renders a column reference with its granularity and aggregation.
func columnExpr(c domain.QueryColumn) (string, error) {
	var expr string
	switch {
	case c.IsExpression():
		expr = "(" + c.Expression.Raw + ")"
	case c.Column != "":
		expr = qualifiedColumn(c.Table, c.Column)
	case c.Aggregation == "count":
		return "COUNT(*)", nil
	default:
		return "", domain.ErrValidation("column %q has no column name or expression", c.Label)
	}

	if c.HasGranularity() {
		g := strings.ToLower(c.Granularity)
		if !granularities[g] {
			return "", domain.ErrValidation("unsupported granularity %q", c.Granularity)
		}
		expr = fmt.Sprintf("date_trunc('%s', %s)", g, expr)
	}

	if c.IsAggregate() {
		tmpl, ok := aggregations[strings.ToLower(c.Aggregation)]
		if !ok {
			return "", domain.ErrValidation("unsupported aggregation %q", c.Aggregation)
		}
		expr = fmt.Sprintf(tmpl, expr)
	}
	return expr, nil
}

func isAggregateExpression(c domain.QueryColumn) bool {
	return c.Aggregation == "custom"
}

func selectAlias(c domain.QueryColumn) string {
	if c.Alias == "" {
		return ""
	}
	if c.Alias == c.Column && !c.IsExpression() && !c.IsAggregate() && !c.HasGranularity() {
		return ""
	}
	return c.Alias
}

func joinClause(j domain.Join) (string, error) {
	if j.RightTable.Table == "" {
		return "", domain.ErrValidation("join is missing its right table")
	}
	kind, ok := joinTypes[strings.ToLower(j.JoinType.String())]
	if !ok {
		return "", domain.ErrValidation("unsupported join type %q", j.JoinType.String())
	}
	right := quoteIdent(j.RightTable.Table)
	if kind == "CROSS JOIN" {
		return kind + " " + right, nil
	}
	if cond := strings.TrimSpace(j.Condition); cond != "" {
		return fmt.Sprintf("%s %s ON %s", kind, right, cond), nil
	}
	if j.LeftColumn.Column == "" || j.RightColumn.Column == "" {
		return "", domain.ErrValidation("join on %q requires a condition or both join columns", j.RightTable.Table)
	}
	leftTable := firstNonEmpty(j.LeftColumn.Table, j.LeftTable.Table)
	rightTable := firstNonEmpty(j.RightColumn.Table, j.RightTable.Table)
	return fmt.Sprintf("%s %s ON %s = %s", kind, right,
		qualifiedColumn(leftTable, j.LeftColumn.Column),
		qualifiedColumn(rightTable, j.RightColumn.Column)), nil
}

type filterDescriptor struct {
	Column     json.RawMessage          `json:"column"`
	Operator   domain.LabelValue        `json:"operator"`
	Value      json.RawMessage          `json:"value"`
	Expression *domain.ColumnExpression `json:"expression"`
}

// filterCondition renders one filter descriptor as a predicate. Descriptors of
// the form {"expression": {"raw": ...}} are used verbatim.
func filterCondition(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f filterDescriptor
	if err := dec.Decode(&f); err != nil {
		return "", domain.ErrValidation("invalid filter: %v", err)
	}
	if f.Expression != nil && strings.TrimSpace(f.Expression.Raw) != "" {
		return "(" + f.Expression.Raw + ")", nil
	}

	fc, err := unwrapFilterColumn(f.Column)
	if err != nil {
		return "", err
	}
	col, err := columnExpr(fc)
	if err != nil {
		return "", err
	}

	op := strings.ToLower(strings.TrimSpace(f.Operator.String()))
	value := filterValue(f.Value)

	switch op {
	case "=", "!=", ">", ">=", "<", "<=":
		lit, err := literal(value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, op, lit), nil
	case "is_set":
		return col + " IS NOT NULL", nil
	case "is_not_set":
		return col + " IS NULL", nil
	case "contains", "not_contains", "starts_with", "ends_with":
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		pattern := escapeLike(s)
		switch op {
		case "contains", "not_contains":
			pattern = "%" + pattern + "%"
		case "starts_with":
			pattern += "%"
		case "ends_with":
			pattern = "%" + pattern
		}
		neg := ""
		if op == "not_contains" {
			neg = "NOT "
		}
		return fmt.Sprintf("%s %sLIKE %s ESCAPE '\\'", col, neg, quoteLiteral(pattern)), nil
	case "in", "not_in":
		items := listValue(value)
		if len(items) == 0 {
			return "", domain.ErrValidation("operator %s requires at least one value", op)
		}
		lits := make([]string, 0, len(items))
		for _, it := range items {
			lit, err := literal(it)
			if err != nil {
				return "", err
			}
			lits = append(lits, lit)
		}
		kw := "IN"
		if op == "not_in" {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(lits, ", ")), nil
	case "between":
		items := listValue(value)
		if len(items) != 2 {
			return "", domain.ErrValidation("operator between requires exactly two values")
		}
		lo, err := literal(items[0])
		if err != nil {
			return "", err
		}
		hi, err := literal(items[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi), nil
	default:
		return "", domain.ErrValidation("unsupported filter operator %q", f.Operator.String())
	}
}

func unwrapFilterColumn(raw json.RawMessage) (domain.QueryColumn, error) {
	var col domain.QueryColumn
	if len(bytes.TrimSpace(raw)) == 0 {
		return col, domain.ErrValidation("filter is missing its column")
	}
	if err := json.Unmarshal(raw, &col); err != nil {
		return col, domain.ErrValidation("invalid filter column: %v", err)
	}
	return col.Normalize(), nil
}

// filterValue unwraps a {"label", "value"} object to its value.
func filterValue(raw json.RawMessage) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["value"]; ok {
			return inner
		}
	}
	return v
}

// listValue accepts a JSON list or a comma-separated string.
func listValue(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case string:
		parts := strings.Split(val, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []any{val}
	}
}

func literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteLiteral(val), nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	default:
		return "", domain.ErrValidation("unsupported filter value %v", v)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func qualifiedColumn(table, column string) string {
	if table == "" {
		return quoteIdent(column)
	}
	return quoteIdent(table) + "." + quoteIdent(column)
}
