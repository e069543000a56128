package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "lighthouse:refresh:"

// RedisLedger stores one expiring key per honored refresh token so that logout
// holds across restarts and across every instance sharing the redis server.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := l.client.Set(ctx, l.prefix+key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("ledger add: %w", err)
	}
	return nil
}

func (l *RedisLedger) Remove(ctx context.Context, token string) error {
	if err := l.client.Del(ctx, l.prefix+key(token)).Err(); err != nil {
		return fmt.Errorf("ledger remove: %w", err)
	}
	return nil
}

func (l *RedisLedger) Contains(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger contains: %w", err)
	}
	return n == 1, nil
}
