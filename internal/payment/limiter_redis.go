package payment

import (
	"context"
	"time"

	"renthub-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter caps open deposit intents per user with a TTL'd counter.
// The slot TTL tracks the intent TTL so crashed processes cannot leak slots
// past the point where the intents themselves expire.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) AcquireOpenIntent(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireOpenIntentSlot(ctx, l.rdb, l.key(userID), l.limit, l.ttl)
}

func (l *RedisLimiter) ReleaseOpenIntent(ctx context.Context, userID string) error {
	return utils.ReleaseOpenIntentSlot(ctx, l.rdb, l.key(userID))
}

func (l *RedisLimiter) key(userID string) string {
	return "payments:open_intents:" + userID
}
