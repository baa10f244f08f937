package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeCache remembers gateway message ids so redeliveries are ignored
type DedupeCache interface {
	// FirstSeen records id and reports whether it was new.
	FirstSeen(ctx context.Context, messageID string) (bool, error)
}

type dedupeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDedupeCache(client *redis.Client, ttl time.Duration) DedupeCache {
	return &dedupeCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *dedupeCache) key(messageID string) string {
	return fmt.Sprintf("inbound:sid:%s", messageID)
}

func (c *dedupeCache) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}
	return c.client.SetNX(ctx, c.key(messageID), time.Now().Unix(), c.ttl).Result()
}
