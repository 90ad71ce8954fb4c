package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chat-service/event"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL bounds staleness of cached projections. Reads repopulate from
// the durable store on miss, so expiry is self-healing.
const DefaultTTL = 10 * time.Minute

// ErrMiss is returned when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the shared cache-aside helper for chat/message/contact
// projections. Mutation discipline is delete-on-write: writers drop the
// affected keys through Invalidate and the next read rebuilds them.
type Cache struct {
	rdb *redis.Client
	log *zap.Logger
}

func New(rdb *redis.Client, log *zap.Logger) *Cache {
	return &Cache{rdb: rdb, log: log}
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Invalidate drops every cached projection the state change made stale.
// Failures are logged only: a stale window self-heals on expiry.
func (c *Cache) Invalidate(ctx context.Context, t event.Type, scope Scope) {
	keys := KeysFor(t, scope)
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache: invalidation failed",
			zap.String("event", string(t)),
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}
