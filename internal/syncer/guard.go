package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/packfinderz-pos/pkg/redis"
)

const defaultLockTTL = 5 * time.Minute

// Guard admits at most one sync pass at a time.
type Guard interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// AtomicGuard is an in-process guard owned by one orchestrator.
type AtomicGuard struct {
	busy atomic.Bool
}

func (g *AtomicGuard) TryAcquire(context.Context) (bool, error) {
	return g.busy.CompareAndSwap(false, true), nil
}

func (g *AtomicGuard) Release(context.Context) error {
	g.busy.Store(false)
	return nil
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

var _ redisStore = (*pkgredis.Client)(nil)

// RedisGuard extends single-flight to sibling processes sharing a redis, using SETNX with
// an owner token and TTL. The TTL bounds how long a crashed holder blocks the others.
type RedisGuard struct {
	local  AtomicGuard
	client redisStore
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

func NewRedisGuard(client redisStore, key string, ttl time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required for guard")
	}
	if key == "" {
		return nil, errors.New("guard key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisGuard{client: client, key: key, ttl: ttl}, nil
}

func (g *RedisGuard) TryAcquire(ctx context.Context) (bool, error) {
	if ok, _ := g.local.TryAcquire(ctx); !ok {
		return false, nil
	}
	owner := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, owner, g.ttl)
	if err != nil || !ok {
		_ = g.local.Release(ctx)
		if err != nil {
			return false, fmt.Errorf("setnx: %w", err)
		}
		return false, nil
	}
	g.mu.Lock()
	g.owner = owner
	g.mu.Unlock()
	return true, nil
}

// Release drops the redis key only while this guard still owns it.
func (g *RedisGuard) Release(ctx context.Context) error {
	g.mu.Lock()
	owner := g.owner
	g.owner = ""
	g.mu.Unlock()
	defer g.local.Release(ctx)

	if owner == "" {
		return nil
	}
	if _, err := g.client.DeleteIfValue(ctx, g.key, owner); err != nil {
		return fmt.Errorf("delete guard: %w", err)
	}
	return nil
}
