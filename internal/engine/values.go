package engine

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// normalizeValue converts driver values into JSON-friendly scalars so results
// survive the cache round trip unchanged.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, int32, int16, int8, int, uint8, uint16, uint32, float32, float64:
		return x
	case uint64:
		if x <= 1<<53 {
			return int64(x)
		}
		return fmt.Sprintf("%d", x)
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		if len(x) == 16 {
			if id, err := uuid.FromBytes(x); err == nil {
				return id.String()
			}
		}
		return hex.EncodeToString(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		return decimal.NewFromBigInt(x.Value, -int32(x.Scale)).InexactFloat64()
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %d us", x.Months, x.Days, x.Micros)
	case time.Time:
		return x.UTC()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case fmt.Stringer:
		return x.String()
	default:
		if id, ok := uuidArray(x); ok {
			return id.String()
		}
		return fmt.Sprintf("%v", x)
	}
}

// uuidArray recognises 16-byte array types such as the driver's UUID.
func uuidArray(v any) (uuid.UUID, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array || rv.Len() != 16 || rv.Type().Elem().Kind() != reflect.Uint8 {
		return uuid.UUID{}, false
	}
	var id uuid.UUID
	reflect.Copy(reflect.ValueOf(id[:]), rv)
	return id, true
}
