package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-insights/internal/domain"
)

func sampleResults() *domain.ResultSet {
	return &domain.ResultSet{
		Columns: []domain.ResultColumn{
			domain.NewResultColumn("region", domain.TypeString),
			domain.NewResultColumn("total", domain.TypeDecimal),
		},
		Rows: [][]any{{"north", 12.5}, {"south", 4.0}},
	}
}

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl), mr
}

func TestCaches_RoundTrip(t *testing.T) {
	t.Parallel()

	lruCache, err := NewLRU(4)
	require.NoError(t, err)
	redisCache, _ := newTestRedis(t, time.Hour)

	caches := map[string]domain.ResultCache{
		"lru":   lruCache,
		"redis": redisCache,
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			miss, err := c.Get(ctx, "q1")
			require.NoError(t, err)
			assert.True(t, miss.IsEmpty())

			require.NoError(t, c.Set(ctx, "q1", sampleResults()))
			got, err := c.Get(ctx, "q1")
			require.NoError(t, err)
			assert.Equal(t, sampleResults().Columns, got.Columns)
			assert.Equal(t, [][]any{{"north", json.Number("12.5")}, {"south", json.Number("4")}}, got.Rows)

			require.NoError(t, c.Set(ctx, "q1", &domain.ResultSet{}))
			cleared, err := c.Get(ctx, "q1")
			require.NoError(t, err)
			assert.True(t, cleared.IsEmpty())
		})
	}
}

func TestCaches_KeepLargeIntegers(t *testing.T) {
	lruCache, err := NewLRU(4)
	require.NoError(t, err)
	redisCache, _ := newTestRedis(t, time.Hour)
	ctx := context.Background()

	big := &domain.ResultSet{
		Columns: []domain.ResultColumn{domain.NewResultColumn("id", domain.TypeInteger)},
		Rows:    [][]any{{int64(9007199254740993)}},
	}
	for _, c := range []domain.ResultCache{lruCache, redisCache} {
		require.NoError(t, c.Set(ctx, "q1", big))
		got, err := c.Get(ctx, "q1")
		require.NoError(t, err)
		require.Len(t, got.Rows, 1)
		assert.Equal(t, json.Number("9007199254740993"), got.Rows[0][0])
	}
}

func TestRedis_KeyAndExpiry(t *testing.T) {
	c, mr := newTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q1", sampleResults()))
	assert.True(t, mr.Exists("insights_query_results:q1"))
	assert.Equal(t, time.Minute, mr.TTL("insights_query_results:q1"))

	mr.FastForward(2 * time.Minute)
	got, err := c.Get(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestRedis_StoresListForm(t *testing.T) {
	c, mr := newTestRedis(t, 0)
	require.NoError(t, c.Set(context.Background(), "q1", &domain.ResultSet{}))

	raw, err := mr.Get("insights_query_results:q1")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestRedis_CorruptEntry(t *testing.T) {
	c, mr := newTestRedis(t, 0)
	require.NoError(t, mr.Set(Key("q1"), "not json"))

	_, err := c.Get(context.Background(), "q1")
	require.Error(t, err)
}

func TestLRU_Evicts(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, id, sampleResults()))
	}
	assert.Equal(t, 2, c.Len())

	evicted, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, evicted.IsEmpty())
}
