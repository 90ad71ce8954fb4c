package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionTTL bounds how long a crashed process can leave a stale session
// behind. Lookups stay best-effort either way: a dead socket id is skipped
// by the consumer, not treated as an error.
const sessionTTL = 12 * time.Hour

// Store tracks which sockets a user currently holds. Entries are rebuilt
// from scratch on reconnect and carry no durability guarantee.
type Store interface {
	// Connect registers a socket under the user's session set.
	Connect(ctx context.Context, userID uint, socketID string) error

	// Disconnect removes one socket and reports how many sessions remain.
	Disconnect(ctx context.Context, userID uint, socketID string) (remaining int64, err error)

	// Sockets lists the user's live socket ids.
	Sockets(ctx context.Context, userID uint) ([]string, error)

	// IsOnline reports whether the user holds at least one session.
	IsOnline(ctx context.Context, userID uint) (bool, error)

	// SessionCount reports the number of live sessions.
	SessionCount(ctx context.Context, userID uint) (int64, error)

	SetLastSeen(ctx context.Context, userID uint, t time.Time) error
	LastSeen(ctx context.Context, userID uint) (time.Time, error)
}

func sessionsKey(userID uint) string { return fmt.Sprintf("presence:sessions:%d", userID) }
func lastSeenKey(userID uint) string { return fmt.Sprintf("presence:lastseen:%d", userID) }

// RedisStore is the shared implementation: one session set per user plus a
// last-seen timestamp, all with expiry.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Connect(ctx context.Context, userID uint, socketID string) error {
	key := sessionsKey(userID)
	if err := s.rdb.SAdd(ctx, key, socketID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, sessionTTL).Err()
}

func (s *RedisStore) Disconnect(ctx context.Context, userID uint, socketID string) (int64, error) {
	key := sessionsKey(userID)
	if err := s.rdb.SRem(ctx, key, socketID).Err(); err != nil {
		return 0, err
	}
	return s.rdb.SCard(ctx, key).Result()
}

func (s *RedisStore) Sockets(ctx context.Context, userID uint) ([]string, error) {
	return s.rdb.SMembers(ctx, sessionsKey(userID)).Result()
}

func (s *RedisStore) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := s.rdb.SCard(ctx, sessionsKey(userID)).Result()
	return n > 0, err
}

func (s *RedisStore) SessionCount(ctx context.Context, userID uint) (int64, error) {
	return s.rdb.SCard(ctx, sessionsKey(userID)).Result()
}

func (s *RedisStore) SetLastSeen(ctx context.Context, userID uint, t time.Time) error {
	return s.rdb.Set(ctx, lastSeenKey(userID), t.UnixMilli(), sessionTTL).Err()
}

func (s *RedisStore) LastSeen(ctx context.Context, userID uint) (time.Time, error) {
	ms, err := s.rdb.Get(ctx, lastSeenKey(userID)).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
