package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-insights/internal/domain"
)

func mustSpec(t *testing.T, raw string) *domain.QuerySpec {
	t.Helper()
	spec, err := domain.ParseQuerySpec([]byte(raw))
	require.NoError(t, err)
	return spec
}

func TestBuildSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		spec     string
		maxLimit int
		want     string
	}{
		{
			name:     "no base table",
			spec:     `{"columns":[{"column":{"column":"id"}}]}`,
			maxLimit: 1000,
			want:     "",
		},
		{
			name:     "star when nothing is selected",
			spec:     `{"table":{"table":"orders"},"limit":5}`,
			maxLimit: 1000,
			want:     `SELECT * FROM "orders" LIMIT 5`,
		},
		{
			name: "plain columns",
			spec: `{"table":{"table":"orders"},"columns":[
				{"column":{"table":"orders","column":"id"}},
				{"column":{"table":"orders","column":"amount","label":"Amount"}}
			],"limit":10}`,
			maxLimit: 1000,
			want:     `SELECT "orders"."id", "orders"."amount" AS "Amount" FROM "orders" LIMIT 10`,
		},
		{
			name:     "limit clamped to max",
			spec:     `{"table":{"table":"orders"},"limit":5000}`,
			maxLimit: 1000,
			want:     `SELECT * FROM "orders" LIMIT 1000`,
		},
		{
			name:     "calculation",
			spec:     `{"table":{"table":"t"},"calculations":[{"column":{"label":"double","expression":{"raw":"amount * 2"}}}]}`,
			maxLimit: 1000,
			want:     `SELECT (amount * 2) AS "double" FROM "t" LIMIT 1000`,
		},
		{
			name: "measures and dimensions",
			spec: `{
				"table":{"table":"orders"},
				"joins":[{
					"left_table":{"table":"orders"},"right_table":{"table":"customers"},
					"join_type":{"value":"inner"},
					"left_column":{"column":"customer_id"},"right_column":{"column":"id"}
				}],
				"dimensions":[{"column":{"table":"orders","column":"created_at","type":"Date","granularity":"Month","label":"month"}}],
				"measures":[{"column":{"table":"orders","column":"amount","aggregation":"sum","label":"total","order":"desc"}}],
				"filters":[{"column":{"table":"customers","column":"country"},"operator":{"value":"="},"value":{"value":"NL"}}]
			}`,
			maxLimit: 500,
			want: `SELECT date_trunc('month', "orders"."created_at") AS "month", SUM("orders"."amount") AS "total" ` +
				`FROM "orders" INNER JOIN "customers" ON "orders"."customer_id" = "customers"."id" ` +
				`WHERE "customers"."country" = 'NL' ` +
				`GROUP BY date_trunc('month', "orders"."created_at") ORDER BY "total" DESC LIMIT 500`,
		},
		{
			name: "join with raw condition",
			spec: `{"table":{"table":"a"},"joins":[{
				"left_table":{"table":"a"},"right_table":{"table":"b"},
				"join_type":{"value":"left"},"condition":"a.x = b.y AND b.z > 0"
			}]}`,
			maxLimit: 10,
			want:     `SELECT * FROM "a" LEFT JOIN "b" ON a.x = b.y AND b.z > 0 LIMIT 10`,
		},
		{
			name: "explicit orders",
			spec: `{"table":{"table":"t"},"columns":[{"column":{"column":"name"}}],
				"orders":[{"column":{"column":"created","order":"asc"}}]}`,
			maxLimit: 10,
			want:     `SELECT "name" FROM "t" ORDER BY "created" ASC LIMIT 10`,
		},
		{
			name:     "quoted identifiers",
			spec:     `{"table":{"table":"we\"ird"}}`,
			maxLimit: 1,
			want:     `SELECT * FROM "we""ird" LIMIT 1`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildSQL(mustSpec(t, tc.spec), tc.maxLimit)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildSQL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
	}{
		{name: "unknown aggregation", spec: `{"table":{"table":"t"},"measures":[{"column":{"column":"x","aggregation":"median"}}]}`},
		{name: "unknown granularity", spec: `{"table":{"table":"t"},"dimensions":[{"column":{"column":"d","type":"Date","granularity":"Fortnight"}}]}`},
		{name: "join without columns", spec: `{"table":{"table":"a"},"joins":[{"right_table":{"table":"b"}}]}`},
		{name: "unknown join type", spec: `{"table":{"table":"a"},"joins":[{"right_table":{"table":"b"},"join_type":{"value":"sideways"},"condition":"1=1"}]}`},
		{name: "column without name", spec: `{"table":{"table":"t"},"columns":[{"column":{"label":"x"}}]}`},
		{name: "bad sort order", spec: `{"table":{"table":"t"},"columns":[{"column":{"column":"x","order":"up"}}]}`},
		{name: "bad filter", spec: `{"table":{"table":"t"},"filters":[{"column":{"column":"x"},"operator":{"value":"~"},"value":{"value":1}}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildSQL(mustSpec(t, tc.spec), 100)
			require.Error(t, err)
			var valErr *domain.ValidationError
			assert.ErrorAs(t, err, &valErr)
		})
	}
}

func TestFilterCondition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filter  string
		want    string
		wantErr bool
	}{
		{
			name:   "equals string",
			filter: `{"column":{"column":"status"},"operator":{"value":"="},"value":{"value":"open"}}`,
			want:   `"status" = 'open'`,
		},
		{
			name:   "greater or equal number",
			filter: `{"column":{"column":"amount"},"operator":{"value":">="},"value":5}`,
			want:   `"amount" >= 5`,
		},
		{
			name:   "contains escapes quotes",
			filter: `{"column":{"column":"name"},"operator":{"value":"contains"},"value":{"value":"o'k"}}`,
			want:   `"name" LIKE '%o''k%' ESCAPE '\'`,
		},
		{
			name:   "not contains",
			filter: `{"column":{"column":"name"},"operator":{"value":"not_contains"},"value":{"value":"x"}}`,
			want:   `"name" NOT LIKE '%x%' ESCAPE '\'`,
		},
		{
			name:   "starts with escapes wildcards",
			filter: `{"column":{"column":"name"},"operator":{"value":"starts_with"},"value":{"value":"ab_"}}`,
			want:   `"name" LIKE 'ab\_%' ESCAPE '\'`,
		},
		{
			name:   "ends with",
			filter: `{"column":{"column":"name"},"operator":{"value":"ends_with"},"value":{"value":"z"}}`,
			want:   `"name" LIKE '%z' ESCAPE '\'`,
		},
		{
			name:   "in list",
			filter: `{"column":{"column":"status"},"operator":{"value":"in"},"value":{"value":["a","b"]}}`,
			want:   `"status" IN ('a', 'b')`,
		},
		{
			name:   "in comma separated",
			filter: `{"column":{"column":"status"},"operator":{"value":"in"},"value":{"value":"a, b"}}`,
			want:   `"status" IN ('a', 'b')`,
		},
		{
			name:   "not in",
			filter: `{"column":{"column":"status"},"operator":{"value":"not_in"},"value":{"value":["x"]}}`,
			want:   `"status" NOT IN ('x')`,
		},
		{
			name:   "between",
			filter: `{"column":{"column":"amount"},"operator":{"value":"between"},"value":{"value":[1, 10]}}`,
			want:   `"amount" BETWEEN 1 AND 10`,
		},
		{
			name:   "is set",
			filter: `{"column":{"column":"email"},"operator":{"value":"is_set"},"value":{}}`,
			want:   `"email" IS NOT NULL`,
		},
		{
			name:   "is not set",
			filter: `{"column":{"column":"email"},"operator":{"value":"is_not_set"}}`,
			want:   `"email" IS NULL`,
		},
		{
			name:   "raw expression",
			filter: `{"expression":{"raw":"amount > 5"}}`,
			want:   `(amount > 5)`,
		},
		{
			name:    "empty in list",
			filter:  `{"column":{"column":"s"},"operator":{"value":"in"},"value":{"value":[]}}`,
			wantErr: true,
		},
		{
			name:    "between needs two values",
			filter:  `{"column":{"column":"s"},"operator":{"value":"between"},"value":{"value":[1]}}`,
			wantErr: true,
		},
		{
			name:    "missing column",
			filter:  `{"operator":{"value":"="},"value":{"value":1}}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := filterCondition(json.RawMessage(tc.filter))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
