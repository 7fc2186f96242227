// Package inflight enforces "one request per action kind per session".
// The handler acquires <kind>:<session> before calling the backend and
// a second submission gets a conflict instead of a queue.
package inflight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// guardTTL bounds how long a key can stay held if a process dies between
// acquire and release. In-process guards release on every handler exit
// path, so the TTL only matters for the Redis guard.
const guardTTL = 5 * time.Minute

type Guard interface {
	// TryAcquire claims key. ok=false means someone already holds it.
	// release is non-nil only when ok.
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// MemoryGuard is the default single-process guard. Each claim gets a
// generation token so a stale or doubled release cannot free a key that a
// newer acquire holds.
type MemoryGuard struct {
	mu   sync.Mutex
	gen  uint64
	held map[string]uint64
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]uint64)}
}

func (g *MemoryGuard) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, false, nil
	}
	g.gen++
	token := g.gen
	g.held[key] = token

	release := func() {
		g.mu.Lock()
		if g.held[key] == token {
			delete(g.held, key)
		}
		g.mu.Unlock()
	}
	return release, true, nil
}

// RedisGuard coordinates across instances via SETNX with a TTL.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(redisURL string) (*RedisGuard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisGuard{client: client}, nil
}

func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	redisKey := "inflight:" + key

	acquired, err := g.client.SetNX(ctx, redisKey, 1, guardTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire guard: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// Release outlives the request context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		g.client.Del(releaseCtx, redisKey)
	}
	return release, true, nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}
