package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"query-insights/internal/domain"
)

// DefaultLRUSize is the number of query results kept in memory.
const DefaultLRUSize = 256

// LRU is an in-process result cache bounded by entry count.
type LRU struct {
	entries *lru.Cache[string, []byte]
}

var _ domain.ResultCache = (*LRU)(nil)

// NewLRU creates an LRU cache holding at most size entries.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{entries: entries}, nil
}

// Get returns the cached results, or an empty result set on a miss.
func (c *LRU) Get(_ context.Context, queryID string) (*domain.ResultSet, error) {
	data, ok := c.entries.Get(Key(queryID))
	if !ok {
		return &domain.ResultSet{}, nil
	}
	return decode(data)
}

// Set replaces the cached results of a query.
func (c *LRU) Set(_ context.Context, queryID string, results *domain.ResultSet) error {
	data, err := encode(results)
	if err != nil {
		return err
	}
	c.entries.Add(Key(queryID), data)
	return nil
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}
