// Package cache provides result caches keyed by query ID. Entries are stored
// in their JSON list form so cached payloads are independent of the caller's
// result values.
package cache

import (
	"encoding/json"
	"fmt"

	"query-insights/internal/domain"
)

// KeyPrefix namespaces cached query results.
const KeyPrefix = "insights_query_results:"

// Key returns the cache key for a query's results.
func Key(queryID string) string {
	return KeyPrefix + queryID
}

func encode(results *domain.ResultSet) ([]byte, error) {
	if results == nil {
		results = &domain.ResultSet{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.ResultSet, error) {
	if len(data) == 0 {
		return &domain.ResultSet{}, nil
	}
	rs, err := domain.DecodeResultSet(data)
	if err != nil {
		return nil, fmt.Errorf("decode cached results: %w", err)
	}
	return rs, nil
}
