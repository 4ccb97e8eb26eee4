// Package mapper converts between domain types and metadata store rows.
package mapper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the layout of every timestamp column in the metadata store.
const TimeLayout = "2006-01-02 15:04:05"

func parseTime(s string) time.Time {
	t, _ := time.Parse(TimeLayout, s)
	return t
}

// FormatTime renders t in the store layout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

func ptrTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(TimeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func ptrInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// encodeList stores a slice column as JSON; nil encodes as [].
func encodeList[T any](field string, v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", field, err)
	}
	return string(data), nil
}

func decodeList[T any](field, raw string) ([]T, error) {
	if raw == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return out, nil
}
