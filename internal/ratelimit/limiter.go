package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// Decision is the outcome of one admission.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the time until the window resets; zero when allowed.
	RetryAfter time.Duration
}

// Limiter admits or throttles requests for a caller key.
type Limiter interface {
	Admit(ctx context.Context, key string) Decision
}

// KeyForPrincipal and KeyForIP build caller keys. An authenticated
// principal is always preferred over the client address.
func KeyForPrincipal(id string) string { return "principal:" + id }

func KeyForIP(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// KeyKind returns "principal" or "ip" for metrics.
func KeyKind(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return "other"
}

const shardCount = 64

type window struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu    sync.Mutex
	items map[string]*window
}

// Memory is a fixed-window counter per key. Keys are spread over
// independently locked shards; no lock spans all keys.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time
	shards [shardCount]shard
}

var _ Limiter = (*Memory)(nil)

// NewMemory builds a limiter admitting limit requests per window.
func NewMemory(limit int, win time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	if win <= 0 {
		win = time.Hour
	}
	m := &Memory{limit: limit, window: win, now: func() time.Time { return time.Now().UTC() }}
	for i := range m.shards {
		m.shards[i].items = make(map[string]*window)
	}
	return m
}

// SetClock overrides the time source for tests.
func (m *Memory) SetClock(fn func() time.Time) { m.now = fn }

// Limit and Window report the configured budget.
func (m *Memory) Limit() int { return m.limit }

func (m *Memory) Window() time.Duration { return m.window }

func (m *Memory) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// Admit increments the key's counter and compares it to the limit in one
// critical section.
func (m *Memory) Admit(_ context.Context, key string) Decision {
	now := m.now()
	s := m.shardFor(key)
	s.mu.Lock()
	w, ok := s.items[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.window)}
		s.items[key] = w
	}
	w.count++
	count, resetAt := w.count, w.resetAt
	s.mu.Unlock()

	return decide(count, m.limit, resetAt, now)
}

// Sweep drops expired windows and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, w := range s.items {
			if !now.Before(w.resetAt) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps on every tick until ctx ends.
func (m *Memory) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func decide(count, limit int, resetAt, now time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d
}
