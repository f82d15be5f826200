package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
)

// DefaultRedisKey is the list holding the notification history.
const DefaultRedisKey = "fraudgate:notifications"

// Dial connects to the Redis server at url and verifies it with a ping.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisHistory stores the history in a Redis list shared by every gateway
// instance. Entries are JSON encoded, newest at the tail.
type RedisHistory struct {
	client redis.Cmdable
	key    string
	max    int
}

// NewRedisHistory creates a history on key, trimmed to capacity entries.
func NewRedisHistory(client redis.Cmdable, key string, capacity int) *RedisHistory {
	if key == "" {
		key = DefaultRedisKey
	}
	if capacity <= 0 {
		capacity = DefaultMaxHistory
	}
	return &RedisHistory{client: client, key: key, max: capacity}
}

func (h *RedisHistory) Append(ctx context.Context, n event.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, h.key, data)
	// keep only the newest max entries
	pipe.LTrim(ctx, h.key, int64(-h.max), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append notification: %w", err)
	}
	return nil
}

func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]event.Notification, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	items, err := h.client.LRange(ctx, h.key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read notifications: %w", err)
	}
	out := make([]event.Notification, 0, len(items))
	for _, item := range items {
		var n event.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
