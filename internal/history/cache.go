// Package history keeps the bounded recent-state window in a Redis list so
// late-joining stream clients can be caught up, including across process
// restarts.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/sweeney/activity-sensor/internal/logic"
)

// Key is the Redis list holding serialized states, newest first.
const Key = "sensor_history"

// Cache is a most-recent-N window backed by a Redis list. It satisfies
// hub.History.
type Cache struct {
	client *redis.Client
	limit  int64
}

// New creates a Cache trimmed to the given capacity.
func New(client *redis.Client, limit int) *Cache {
	return &Cache{client: client, limit: int64(limit)}
}

// Append pushes s to the front of the window and trims the list to capacity,
// dropping the oldest entries.
func (c *Cache) Append(ctx context.Context, s logic.State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := c.client.LPush(ctx, Key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", Key, err)
	}
	if err := c.client.LTrim(ctx, Key, 0, c.limit-1).Err(); err != nil {
		return fmt.Errorf("ltrim %s: %w", Key, err)
	}
	return nil
}

// Recent returns the window ordered oldest first. LPUSH stores newest first,
// so the range is walked backwards. Entries that fail to decode are skipped.
func (c *Cache) Recent(ctx context.Context) ([]logic.State, error) {
	raw, err := c.client.LRange(ctx, Key, 0, c.limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", Key, err)
	}

	states := make([]logic.State, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var s logic.State
		if err := json.Unmarshal([]byte(raw[i]), &s); err != nil {
			continue
		}
		states = append(states, s)
	}
	return states, nil
}
