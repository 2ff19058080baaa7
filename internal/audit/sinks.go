package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"aibridge.io/internal/obs"
)

// LogSink writes each record as a JSON line on the shared logger.
type LogSink struct{}

func (LogSink) Write(_ context.Context, r Record) error {
	entry := map[string]any{
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
		"type":        "audit",
		"id":          r.ID,
		"occurred_at": r.OccurredAt.Format(time.RFC3339Nano),
		"actor_id":    r.ActorID,
		"kind":        r.Kind,
		"outcome":     r.Outcome,
	}
	if r.Resource != "" {
		entry["resource"] = r.Resource
	}
	if r.Reason != "" {
		entry["reason"] = r.Reason
	}
	if r.RequestID != "" {
		entry["request_id"] = r.RequestID
	}
	if len(r.Metadata) > 0 {
		entry["metadata"] = r.Metadata
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

// Hub fans records out to live subscribers (the operator SSE tail).
// Slow subscribers miss records rather than stalling the worker.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Record
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Record)}
}

// Subscribe registers a subscriber. The channel closes when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Record {
	ch := make(chan Record, 32)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

func (h *Hub) Write(_ context.Context, r Record) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- r:
		default:
		}
	}
	return nil
}

// Subscribers reports the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
