package database

import (
	"fmt"

	"chat-service/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis opens a client against the given logical database. Callers hold
// separate clients for the cache/presence keyspace, the fan-out relay and
// the socket.io adapter.
func NewRedis(db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf(
			"%s:%s",
			config.Config("REDIS_HOST"),
			config.Config("REDIS_PORT"),
		),
		Password: config.Config("REDIS_PASSWORD"),
		DB:       db,
	})
}
