// file: db/redis.go

package db

import (
	"context"
	"fmt"
	"lighthouse-api/config"
	"lighthouse-api/logger"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes and returns a new Redis client.
// It returns (nil, nil) when no redis host is configured.
func ConnectRedis() (*redis.Client, error) {
	cfg := config.AppConfig.Redis
	if cfg.Host == "" {
		logger.Log.Warn("Redis host not configured, caching and the shared ledger are unavailable")
		return nil, nil
	}

	redisAddr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logger.Log.WithError(err).Error("Failed to ping Redis")
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Log.WithField("address", redisAddr).Info("Redis connection established successfully")
	return rdb, nil
}
