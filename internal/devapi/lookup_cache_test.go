package devapi

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestInMemoryMissCacheSetGetInvalidate(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewInMemoryMissCache(clock.Now)
	ctx := context.Background()

	if err := cache.Set(ctx, nsMissingQuiz, "42", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hit, _ := cache.Get(ctx, nsMissingQuiz, "42"); !hit {
		t.Fatal("expected hit after set")
	}
	if hit, _ := cache.Get(ctx, nsUnknownEmail, "42"); hit {
		t.Fatal("namespaces must not share entries")
	}

	clock.Advance(time.Minute)
	if hit, _ := cache.Get(ctx, nsMissingQuiz, "42"); hit {
		t.Fatal("expected entry to expire")
	}

	_ = cache.Set(ctx, nsMissingQuiz, "7", time.Minute)
	if err := cache.InvalidateNamespace(ctx, nsMissingQuiz); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if hit, _ := cache.Get(ctx, nsMissingQuiz, "7"); hit {
		t.Fatal("expected miss after invalidate")
	}
	if err := cache.Set(ctx, nsMissingQuiz, "8", 0); err != nil {
		t.Fatalf("zero ttl set: %v", err)
	}
	if hit, _ := cache.Get(ctx, nsMissingQuiz, "8"); hit {
		t.Fatal("zero ttl must not cache")
	}
}

func TestRedisMissCacheSetGetInvalidateAndStale(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisMissCache(client, "miss_test")

	key := "missing@example.com"
	if hit, err := cache.Get(ctx, nsUnknownEmail, key); err != nil || hit {
		t.Fatalf("expected initial miss, hit=%v err=%v", hit, err)
	}
	if err := cache.Set(ctx, nsUnknownEmail, key, 2*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hit, err := cache.Get(ctx, nsUnknownEmail, key); err != nil || !hit {
		t.Fatalf("expected hit after set, hit=%v err=%v", hit, err)
	}
	for _, k := range server.Keys() {
		if k == "miss_test:data:"+nsUnknownEmail+":"+key {
			t.Fatal("raw keys must be hashed")
		}
	}

	server.FastForward(3 * time.Second)
	if hit, _ := cache.Get(ctx, nsUnknownEmail, key); hit {
		t.Fatal("expected miss after ttl expiry")
	}

	_ = cache.Set(ctx, nsUnknownEmail, key, time.Minute)
	if err := cache.InvalidateNamespace(ctx, nsUnknownEmail); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if hit, _ := cache.Get(ctx, nsUnknownEmail, key); hit {
		t.Fatal("expected miss after invalidate")
	}
	if len(server.Keys()) != 0 {
		t.Fatalf("expected no keys left, got %v", server.Keys())
	}
}
