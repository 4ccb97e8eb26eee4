package app

import (
	"context"
	"log/slog"

	"query-insights/internal/cache"
	"query-insights/internal/config"
	"query-insights/internal/domain"
)

// NewResultCache returns a Redis cache when cfg.RedisAddr is set, otherwise an
// in-process LRU. Redis entries expire after the configured result expiry.
// The returned close function is never nil.
func NewResultCache(ctx context.Context, cfg *config.Config, settings *config.Settings, logger *slog.Logger) (domain.ResultCache, func() error, error) {
	if cfg.RedisAddr == "" {
		lru, err := cache.NewLRU(cfg.ResultCacheSize)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("result cache: in-process lru", "size", cfg.ResultCacheSize)
		return lru, func() error { return nil }, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("result cache: redis", "addr", cfg.RedisAddr, "expiry", settings.QueryResultExpiry())
	return cache.NewRedis(client, settings.QueryResultExpiry()), client.Close, nil
}
