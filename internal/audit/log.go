package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"aibridge.io/internal/auth"
	"aibridge.io/internal/ids"
	"aibridge.io/internal/obs"
)

type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
	OutcomeError Outcome = "error"
)

// Anonymous is the actor recorded when no principal is authenticated.
const Anonymous = "anonymous"

// Record is one append-only audit entry.
type Record struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    string            `json:"actor_id"`
	Kind       string            `json:"kind"`
	Resource   string            `json:"resource,omitempty"`
	Outcome    Outcome           `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Recorder accepts audit records without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, r Record)
}

// Sink persists records. Sinks are only ever called from the log worker.
type Sink interface {
	Write(ctx context.Context, r Record) error
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

var errQueueFull = errors.New("audit queue full")

// Log queues records and drains them into sinks on a single worker, so a
// slow or failing sink never stalls request handling. Failures are counted
// and reported on the fault log, never returned.
type Log struct {
	queue chan Record
	sinks []Sink
	now   func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New starts the drain worker. Close must be called to flush.
func New(queueSize int, sinks ...Sink) *Log {
	if queueSize <= 0 {
		queueSize = 1024
	}
	l := &Log{
		queue: make(chan Record, queueSize),
		sinks: sinks,
		now:   func() time.Time { return time.Now().UTC() },
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Record stamps defaults and enqueues r.
func (l *Log) Record(ctx context.Context, r Record) {
	if r.ID == "" {
		r.ID = ids.New()
	}
	if r.OccurredAt.IsZero() {
		r.OccurredAt = l.now()
	}
	if r.ActorID == "" {
		r.ActorID = auth.ActorID(ctx)
	}
	if r.ActorID == "" {
		r.ActorID = Anonymous
	}
	if r.RequestID == "" {
		r.RequestID = RequestIDFromContext(ctx)
	}
	if r.Outcome == "" {
		r.Outcome = OutcomeAllow
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		fail("closed", errors.New("audit log closed"), r)
		return
	}
	select {
	case l.queue <- r:
	default:
		fail("queue_full", errQueueFull, r)
	}
}

// Close stops intake and waits for queued records to drain or ctx to end.
func (l *Log) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Log) run() {
	defer close(l.done)
	for r := range l.queue {
		for _, s := range l.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Write(ctx, r); err != nil {
				fail("sink_error", err, r)
			}
			cancel()
		}
	}
}

func fail(reason string, err error, r Record) {
	obs.RecordAuditFailure(reason)
	obs.Fault("audit", err, map[string]any{
		"reason":    reason,
		"record_id": r.ID,
		"kind":      r.Kind,
		"actor_id":  r.ActorID,
	})
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) {}
