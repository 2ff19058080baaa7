package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryFixedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	lim := NewMemory(2, time.Minute)
	lim.SetClock(func() time.Time { return now })
	ctx := context.Background()
	key := KeyForIP("10.0.0.1")

	first := lim.Admit(ctx, key)
	if !first.Allowed || first.Count != 1 || first.Remaining != 1 || first.RetryAfter != 0 {
		t.Fatalf("unexpected first decision: %+v", first)
	}
	if second := lim.Admit(ctx, key); !second.Allowed || second.Remaining != 0 {
		t.Fatalf("unexpected second decision: %+v", second)
	}

	now = now.Add(20 * time.Second)
	third := lim.Admit(ctx, key)
	if third.Allowed {
		t.Fatalf("third request must be throttled: %+v", third)
	}
	if third.RetryAfter != 40*time.Second {
		t.Fatalf("retry after = %s, want 40s", third.RetryAfter)
	}

	now = now.Add(40 * time.Second)
	if reset := lim.Admit(ctx, key); !reset.Allowed || reset.Count != 1 {
		t.Fatalf("expected reset after window, got %+v", reset)
	}
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	lim := NewMemory(1, time.Minute)
	ctx := context.Background()
	if !lim.Admit(ctx, KeyForPrincipal("alice")).Allowed {
		t.Fatal("alice first request throttled")
	}
	if !lim.Admit(ctx, KeyForPrincipal("bob")).Allowed {
		t.Fatal("bob throttled by alice's window")
	}
	if lim.Admit(ctx, KeyForPrincipal("alice")).Allowed {
		t.Fatal("alice second request admitted")
	}
}

// Exactly limit requests are admitted regardless of interleaving.
func TestMemoryConcurrentAdmitsExactlyLimit(t *testing.T) {
	const limit = 100
	lim := NewMemory(limit, time.Hour)
	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Admit(context.Background(), "ip:1.2.3.4").Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	if admitted.Load() != limit {
		t.Fatalf("admitted %d, want %d", admitted.Load(), limit)
	}
}

// 1000 requests in an hour pass, the 1001st is throttled with a retry
// hint that never exceeds the window.
func TestMemoryDefaultBudget(t *testing.T) {
	lim := NewMemory(1000, time.Hour)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		if d := lim.Admit(ctx, "ip:9.9.9.9"); !d.Allowed {
			t.Fatalf("request %d throttled", i+1)
		}
	}
	d := lim.Admit(ctx, "ip:9.9.9.9")
	if d.Allowed {
		t.Fatal("1001st request admitted")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Hour {
		t.Fatalf("retry after out of range: %s", d.RetryAfter)
	}
}

func TestMemorySweep(t *testing.T) {
	now := time.Now().UTC()
	lim := NewMemory(5, time.Second)
	lim.SetClock(func() time.Time { return now })
	lim.Admit(context.Background(), "a")
	lim.Admit(context.Background(), "b")
	if n := lim.Sweep(); n != 0 {
		t.Fatalf("swept live windows: %d", n)
	}
	now = now.Add(2 * time.Second)
	if n := lim.Sweep(); n != 2 {
		t.Fatalf("expected 2 expired windows, got %d", n)
	}
}

func TestKeyKind(t *testing.T) {
	if KeyKind(KeyForPrincipal("p1")) != "principal" || KeyKind(KeyForIP("")) != "ip" || KeyKind("x") != "other" {
		t.Fatal("unexpected key kinds")
	}
}

func TestRedisLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lim := NewRedis(client, 2, time.Minute)
	ctx := context.Background()
	key := KeyForPrincipal("u1")

	if d := lim.Admit(ctx, key); !d.Allowed || d.Count != 1 {
		t.Fatalf("unexpected first decision: %+v", d)
	}
	if d := lim.Admit(ctx, key); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("unexpected second decision: %+v", d)
	}
	third := lim.Admit(ctx, key)
	if third.Allowed || third.RetryAfter <= 0 || third.RetryAfter > time.Minute {
		t.Fatalf("unexpected third decision: %+v", third)
	}
	if !mr.Exists("rl:" + key) {
		t.Fatal("expected prefixed key in redis")
	}

	mr.FastForward(time.Minute + time.Second)
	if d := lim.Admit(ctx, key); !d.Allowed || d.Count != 1 {
		t.Fatalf("expected reset after window, got %+v", d)
	}
}

func TestRedisLimiterFallsBackOnOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	lim := NewRedis(client, 1, time.Minute)
	ctx := context.Background()
	if d := lim.Admit(ctx, "ip:1.1.1.1"); !d.Allowed {
		t.Fatalf("expected local admit, got %+v", d)
	}
	if d := lim.Admit(ctx, "ip:1.1.1.1"); d.Allowed {
		t.Fatalf("fallback must still enforce the limit, got %+v", d)
	}
}
