package query

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"query-insights/internal/domain"
)

// inferenceSampleSize bounds the number of rows inspected per column.
const inferenceSampleSize = 1000

type valueKind int

const (
	kindBlank valueKind = iota
	kindInteger
	kindDecimal
	kindDate
	kindDatetime
	kindString
)

// groupedNumber matches numbers written with comma thousands separators,
// e.g. "1,234" or "-12,345,678.90".
var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
}

// InferColumnTypes classifies every column of a result set from a sample of its
// rows. It returns one label-and-type column per header entry, in header order,
// and an empty slice when there is no header.
func InferColumnTypes(results *domain.ResultSet) []domain.ResultColumn {
	if results == nil || len(results.Columns) == 0 {
		return []domain.ResultColumn{}
	}

	rows := results.Rows
	if len(rows) > inferenceSampleSize {
		rows = rows[:inferenceSampleSize]
	}

	out := make([]domain.ResultColumn, len(results.Columns))
	for i, col := range results.Columns {
		values := make([]any, 0, len(rows))
		for _, row := range rows {
			if i < len(row) {
				values = append(values, row[i])
			}
		}
		out[i] = domain.NewResultColumn(col.Label, InferType(values))
	}
	return out
}

// InferType returns the most specific type shared by all non-blank values.
// Numeric and temporal values never mix: a column holding both is a String.
func InferType(values []any) string {
	seen := map[valueKind]bool{}
	for _, v := range values {
		k := classifyValue(v)
		if k == kindString {
			return domain.TypeString
		}
		if k != kindBlank {
			seen[k] = true
		}
	}

	numeric := seen[kindInteger] || seen[kindDecimal]
	temporal := seen[kindDate] || seen[kindDatetime]
	switch {
	case numeric && temporal:
		return domain.TypeString
	case seen[kindDecimal]:
		return domain.TypeDecimal
	case seen[kindInteger]:
		return domain.TypeInteger
	case seen[kindDatetime]:
		return domain.TypeDatetime
	case seen[kindDate]:
		return domain.TypeDate
	default:
		return domain.TypeString
	}
}

func classifyValue(v any) valueKind {
	switch val := v.(type) {
	case nil:
		return kindBlank
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInteger
	case float32:
		return classifyDecimal(decimal.NewFromFloat32(val))
	case float64:
		return classifyDecimal(decimal.NewFromFloat(val))
	case decimal.Decimal:
		return classifyDecimal(val)
	case json.Number:
		return classifyString(val.String())
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return kindDate
		}
		return kindDatetime
	case string:
		return classifyString(val)
	case []byte:
		return classifyString(string(val))
	default:
		return kindString
	}
}

func classifyDecimal(d decimal.Decimal) valueKind {
	if d.IsInteger() {
		return kindInteger
	}
	return kindDecimal
}

// parseNumber parses a decimal, accepting comma thousands separators only in
// their grouped positions.
func parseNumber(s string) (decimal.Decimal, error) {
	if groupedNumber.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	return decimal.NewFromString(s)
}

func classifyString(s string) valueKind {
	s = strings.TrimSpace(s)
	if s == "" {
		return kindBlank
	}
	if d, err := parseNumber(s); err == nil {
		return classifyDecimal(d)
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return kindDate
		}
	}
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return kindDatetime
		}
	}
	return kindString
}
