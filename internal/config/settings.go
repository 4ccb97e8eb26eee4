package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"query-insights/internal/domain"
)

// Settings defaults.
const (
	DefaultQueryResultLimit  = 1000
	DefaultQueryResultExpiry = 24 * time.Hour
)

// settingsFile is the on-disk YAML layout.
type settingsFile struct {
	QueryResultLimit  *int   `yaml:"query_result_limit"`
	QueryResultExpiry string `yaml:"query_result_expiry"`
	AutoExecuteQuery  *bool  `yaml:"auto_execute_query"`
}

// Settings holds runtime settings read by the query service.
type Settings struct {
	resultLimit  int
	resultExpiry time.Duration
	autoExecute  bool
}

var _ domain.SettingsProvider = (*Settings)(nil)

// DefaultSettings returns settings with every value at its default.
func DefaultSettings() *Settings {
	return &Settings{
		resultLimit:  DefaultQueryResultLimit,
		resultExpiry: DefaultQueryResultExpiry,
		autoExecute:  true,
	}
}

// LoadSettings reads a YAML settings file. An empty path or a missing file
// yields the defaults; keys absent from the file keep their defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var f settingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	if f.QueryResultLimit != nil {
		if *f.QueryResultLimit <= 0 {
			return nil, fmt.Errorf("query_result_limit must be positive, got %d", *f.QueryResultLimit)
		}
		s.resultLimit = *f.QueryResultLimit
	}
	if f.QueryResultExpiry != "" {
		d, err := time.ParseDuration(f.QueryResultExpiry)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("query_result_expiry must be a non-negative duration, got %q", f.QueryResultExpiry)
		}
		s.resultExpiry = d
	}
	if f.AutoExecuteQuery != nil {
		s.autoExecute = *f.AutoExecuteQuery
	}
	return s, nil
}

// QueryResultLimit is the maximum number of rows returned when reading results.
func (s *Settings) QueryResultLimit() int { return s.resultLimit }

// QueryResultExpiry is how long cached results are kept by expiring caches.
func (s *Settings) QueryResultExpiry() time.Duration { return s.resultExpiry }

// AutoExecuteQuery reports whether clients should run a query right after editing it.
func (s *Settings) AutoExecuteQuery() bool { return s.autoExecute }

// Get looks a setting up by its file key.
func (s *Settings) Get(key string) (any, bool) {
	switch key {
	case "query_result_limit":
		return s.resultLimit, true
	case "query_result_expiry":
		return s.resultExpiry.String(), true
	case "auto_execute_query":
		return s.autoExecute, true
	default:
		return nil, false
	}
}

// All returns every setting keyed by its file key.
func (s *Settings) All() map[string]any {
	return map[string]any{
		"query_result_limit":  s.resultLimit,
		"query_result_expiry": s.resultExpiry.String(),
		"auto_execute_query":  s.autoExecute,
	}
}
