// Package lock implements distributed mutual exclusion on Redis.
//
// Acquire is SET NX PX with a caller token; Release is a Lua compare-and-delete
// so only the holder can release. TTL expiry is the only other way a lock goes
// away, which bounds the damage of a crashed executor to two scheduling
// intervals.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseScript deletes the key only when the stored token matches the caller.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Redis is the subset of the go-redis client the lock service needs.
type Redis interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Service provides acquire-if-absent / release-if-owner lock semantics.
type Service struct {
	rdb Redis
}

// NewService creates a lock Service on the given Redis client.
func NewService(rdb Redis) *Service {
	return &Service{rdb: rdb}
}

// Acquire attempts to take the lock. Returns false when another holder exists;
// that is an expected outcome, not an error.
func (s *Service) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release frees the lock if and only if token still owns it. Returns false
// when the lock expired or belongs to someone else; callers treat that as
// informational.
func (s *Service) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := s.rdb.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	return n == 1, nil
}
