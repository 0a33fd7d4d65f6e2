// README: Run guard for the rollup: a cross-process lock plus a per-month done marker (Redis and in-memory).
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ridebook/internal/types"
)

const (
	lockKey       = "archive:lock"
	doneKeyPrefix = "archive:done:%s"
	// Markers outlive the month they guard so a late restart cannot re-run it.
	doneTTL = 400 * 24 * time.Hour
)

// Guard serialises rollup runs across processes and remembers finished months.
type Guard interface {
	// Acquire returns ok=false when another holder owns the lock.
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
	Done(ctx context.Context, monthKey string) (bool, error)
	MarkDone(ctx context.Context, monthKey string, at time.Time) error
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisGuard struct {
	redis *redis.Client
}

func NewRedisGuard(redis *redis.Client) *RedisGuard {
	return &RedisGuard{redis: redis}
}

func (g *RedisGuard) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := string(types.NewID())
	ok, err := g.redis.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), g.redis, []string{lockKey}, token).Err()
	}
	return release, true, nil
}

func (g *RedisGuard) Done(ctx context.Context, monthKey string) (bool, error) {
	n, err := g.redis.Exists(ctx, doneKey(monthKey)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (g *RedisGuard) MarkDone(ctx context.Context, monthKey string, at time.Time) error {
	return g.redis.Set(ctx, doneKey(monthKey), at.UTC().Format(time.RFC3339), doneTTL).Err()
}

func doneKey(monthKey string) string {
	return fmt.Sprintf(doneKeyPrefix, monthKey)
}

// MemGuard is the single-process guard used with the in-memory stores.
type MemGuard struct {
	mu     sync.Mutex
	locked bool
	done   map[string]time.Time
}

func NewMemGuard() *MemGuard {
	return &MemGuard{done: map[string]time.Time{}}
}

func (g *MemGuard) Acquire(_ context.Context, _ time.Duration) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return func() {}, false, nil
	}
	g.locked = true
	return func() {
		g.mu.Lock()
		g.locked = false
		g.mu.Unlock()
	}, true, nil
}

func (g *MemGuard) Done(_ context.Context, monthKey string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.done[monthKey]
	return ok, nil
}

func (g *MemGuard) MarkDone(_ context.Context, monthKey string, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done[monthKey] = at
	return nil
}
