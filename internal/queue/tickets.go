package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TicketRegistry mirrors queued-or-running ticket ids in a shared store so
// duplicate submissions collapse across processes, not just within one.
type TicketRegistry interface {
	// Register claims a ticket id. False means a ticket with this id is
	// already queued or running somewhere.
	Register(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Unregister releases a ticket id after the ticket reached a terminal
	// state.
	Unregister(ctx context.Context, id string) error
}

// ticketRedis is the subset of the go-redis client the registry needs.
type ticketRedis interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTicketRegistry keeps ticket claims in Redis with a TTL safety net, so
// a crashed process cannot block a plant's polls forever.
type RedisTicketRegistry struct {
	rdb ticketRedis
}

// NewRedisTicketRegistry creates the Redis-backed registry.
func NewRedisTicketRegistry(rdb ticketRedis) *RedisTicketRegistry {
	return &RedisTicketRegistry{rdb: rdb}
}

var _ TicketRegistry = (*RedisTicketRegistry)(nil)

func ticketKey(id string) string { return "ticket:" + id }

// Register claims the id with SETNX.
func (r *RedisTicketRegistry) Register(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, ticketKey(id), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("register ticket %s: %w", id, err)
	}
	return ok, nil
}

// Unregister drops the claim.
func (r *RedisTicketRegistry) Unregister(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, ticketKey(id)).Err(); err != nil {
		return fmt.Errorf("unregister ticket %s: %w", id, err)
	}
	return nil
}
