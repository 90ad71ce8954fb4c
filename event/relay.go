package event

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the single logical channel every fan-out event rides on.
const Channel = "chat-events"

// Handler consumes one decoded envelope. Handlers must tolerate duplicate
// and out-of-order delivery; the relay promises at-least-once only.
type Handler func(ctx context.Context, e Event)

// HandlerTable maps each variant to its consumer. Events whose type has no
// entry are dropped.
type HandlerTable map[Type]Handler

// Relay decouples the process committing a state change from the processes
// holding live sockets. Publish must be called only after the durable write
// committed: a lost notification degrades to a refetch, never to data loss.
type Relay interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context, handlers HandlerTable)
	Close() error
}

// RedisRelay carries envelopes over redis pub/sub. One long-lived
// subscriber loop runs per gateway process.
type RedisRelay struct {
	rdb     *redis.Client
	log     *zap.Logger
	channel string
	sub     *redis.PubSub
}

func NewRedisRelay(rdb *redis.Client, log *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, log: log, channel: Channel}
}

func (r *RedisRelay) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, raw).Err()
}

// Subscribe starts the consumer loop. Malformed envelopes and unknown types
// are logged and dropped, the loop never stops on bad input.
func (r *RedisRelay) Subscribe(ctx context.Context, handlers HandlerTable) {
	r.sub = r.rdb.Subscribe(ctx, r.channel)

	go func() {
		for msg := range r.sub.Channel() {
			Dispatch(ctx, r.log, handlers, []byte(msg.Payload))
		}
	}()
}

// Dispatch decodes one raw envelope and routes it to its handler. Bad input
// never propagates: malformed envelopes, unknown types and unhandled types
// are logged and dropped.
func Dispatch(ctx context.Context, log *zap.Logger, handlers HandlerTable, raw []byte) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn("relay: malformed envelope dropped", zap.Error(err))
		return
	}
	if !e.Type.Known() {
		log.Warn("relay: unknown event type dropped", zap.String("type", string(e.Type)))
		return
	}
	handler, ok := handlers[e.Type]
	if !ok {
		log.Debug("relay: no handler registered", zap.String("type", string(e.Type)))
		return
	}
	handler(ctx, e)
}

func (r *RedisRelay) Close() error {
	if r.sub != nil {
		return r.sub.Close()
	}
	return nil
}
