package devapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	nsUnknownEmail = "login.unknown_email"
	nsMissingQuiz  = "quiz.not_found"
)

// MissCache remembers lookups that found nothing, so repeated misses skip the database.
type MissCache interface {
	Get(ctx context.Context, namespace, key string) (bool, error)
	Set(ctx context.Context, namespace, key string, ttl time.Duration) error
	InvalidateNamespace(ctx context.Context, namespace string) error
}

type noopMissCache struct{}

func (noopMissCache) Get(context.Context, string, string) (bool, error)        { return false, nil }
func (noopMissCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (noopMissCache) InvalidateNamespace(context.Context, string) error        { return nil }

type InMemoryMissCache struct {
	mu    sync.Mutex
	now   func() time.Time
	store map[string]map[string]time.Time
}

func NewInMemoryMissCache(now func() time.Time) *InMemoryMissCache {
	if now == nil {
		now = time.Now
	}
	return &InMemoryMissCache{now: now, store: make(map[string]map[string]time.Time)}
}

func (c *InMemoryMissCache) Get(_ context.Context, namespace, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.store[namespace]
	if !ok {
		return false, nil
	}
	expiresAt, ok := ns[key]
	if !ok {
		return false, nil
	}
	if !c.now().Before(expiresAt) {
		delete(ns, key)
		if len(ns) == 0 {
			delete(c.store, namespace)
		}
		return false, nil
	}
	return true, nil
}

func (c *InMemoryMissCache) Set(_ context.Context, namespace, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.store[namespace]
	if !ok {
		ns = make(map[string]time.Time)
		c.store[namespace] = ns
	}
	ns[key] = c.now().Add(ttl)
	return nil
}

func (c *InMemoryMissCache) InvalidateNamespace(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, namespace)
	return nil
}

// RedisMissCache keeps one key per miss plus a per-namespace index set used for invalidation.
type RedisMissCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMissCache(client redis.UniversalClient, prefix string) *RedisMissCache {
	if prefix == "" {
		prefix = "devapi_miss"
	}
	return &RedisMissCache{client: client, prefix: prefix}
}

func (c *RedisMissCache) Get(ctx context.Context, namespace, key string) (bool, error) {
	err := c.client.Get(ctx, c.dataKey(namespace, key)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisMissCache) Set(ctx context.Context, namespace, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	dataKey := c.dataKey(namespace, key)
	index := c.indexKey(namespace)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, dataKey, "1", ttl)
	pipe.SAdd(ctx, index, dataKey)
	pipe.Expire(ctx, index, ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisMissCache) InvalidateNamespace(ctx context.Context, namespace string) error {
	index := c.indexKey(namespace)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := c.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, index)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisMissCache) dataKey(namespace, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:data:%s:%s", c.prefix, namespace, hex.EncodeToString(sum[:]))
}

func (c *RedisMissCache) indexKey(namespace string) string {
	return fmt.Sprintf("%s:index:%s", c.prefix, namespace)
}
