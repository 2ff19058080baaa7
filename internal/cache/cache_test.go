package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Projects int `json:"projects"`
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get: %q %v", got, err)
	}
	now = now.Add(time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	c := NewCache(ctx, client)
	if _, ok := c.(*Redis); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	if err := SetJSON(ctx, c, "dash", payload{Projects: 3}, 5*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("cache:dash") {
		t.Fatal("expected prefixed key in redis")
	}
	var p payload
	ok, err := GetJSON(ctx, c, "dash", &p)
	if err != nil || !ok || p.Projects != 3 {
		t.Fatalf("get: ok=%v err=%v p=%+v", ok, err, p)
	}

	mr.FastForward(6 * time.Minute)
	ok, err = GetJSON(ctx, c, "dash", &p)
	if err != nil || ok {
		t.Fatalf("expected miss after ttl, ok=%v err=%v", ok, err)
	}
}

func TestNewCacheFallsBackToMemory(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	if _, ok := NewCache(context.Background(), client).(*Memory); !ok {
		t.Fatal("expected memory fallback when redis is unreachable")
	}
	if _, ok := NewCache(context.Background(), nil).(*Memory); !ok {
		t.Fatal("expected memory cache without a client")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("{not json"), time.Minute)
	var p payload
	ok, err := GetJSON(ctx, c, "k", &p)
	if err != nil || ok {
		t.Fatalf("expected silent miss, ok=%v err=%v", ok, err)
	}
}
