package ledger

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = 10 * time.Minute

// MemoryLedger keeps the set in process memory. Its contents do not survive a
// restart and are not shared between instances; use RedisLedger for that.
type MemoryLedger struct {
	entries *cache.Cache
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: cache.New(cache.NoExpiration, defaultCleanupInterval),
	}
}

func (l *MemoryLedger) Add(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	l.entries.Set(key(token), struct{}{}, ttl)
	return nil
}

func (l *MemoryLedger) Remove(_ context.Context, token string) error {
	l.entries.Delete(key(token))
	return nil
}

func (l *MemoryLedger) Contains(_ context.Context, token string) (bool, error) {
	_, found := l.entries.Get(key(token))
	return found, nil
}

// Len reports the number of live entries.
func (l *MemoryLedger) Len() int {
	return l.entries.ItemCount()
}
