package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "payments:status:"

// RedisNotifier publishes hints on a per-user pub/sub channel. The gateway
// holding the client's websocket subscribes to payments:status:<user_id>.
// Pub/sub gives at-most-once transport; the client-side contract of
// re-reading authoritative status tolerates both loss and duplication.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) PaymentChanged(ctx context.Context, h Hint) error {
	if h.UserID == "" || h.IntentID == "" {
		return fmt.Errorf("notify: hint requires user_id and intent_id")
	}
	payload, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("notify: marshal hint: %w", err)
	}
	if err := n.rdb.Publish(ctx, channelPrefix+h.UserID, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Channel returns the pub/sub channel carrying a user's hints.
func Channel(userID string) string { return channelPrefix + userID }
