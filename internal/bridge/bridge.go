package bridge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
	"aibridge.io/internal/obs"
)

const shardCount = 32

type pairKey struct {
	principalID string
	projectID   string
}

// slot holds the state of one pair. Slots outlive their sessions so the
// sequence keeps counting up across revocations and expiry.
type slot struct {
	mu      sync.Mutex
	session *Session
	seq     uint64
	// epoch advances on every revocation; an acquisition only commits
	// if the epoch it started under is still current.
	epoch uint64
}

type shard struct {
	mu    sync.Mutex
	slots map[pairKey]*slot
}

// genShard counts RevokeAll calls per principal.
type genShard struct {
	mu   sync.Mutex
	gens map[string]uint64
}

// Bridge maps platform identities to engine sessions.
type Bridge struct {
	engine Engine
	audit  audit.Recorder
	now    func() time.Time

	maxTTL        time.Duration
	maxAttempts   int
	baseBackoff   time.Duration
	flightTimeout time.Duration
	cleanupBudget time.Duration

	shards  [shardCount]shard
	gens    [shardCount]genShard
	flights singleflight.Group
}

type Option func(*Bridge)

// WithMaxTTL caps session lifetime regardless of what the engine grants.
func WithMaxTTL(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.maxTTL = d
		}
	}
}

// WithRetry sets how often transient engine failures are retried.
func WithRetry(attempts int, base time.Duration) Option {
	return func(b *Bridge) {
		if attempts > 0 {
			b.maxAttempts = attempts
		}
		if base >= 0 {
			b.baseBackoff = base
		}
	}
}

// WithFlightTimeout bounds one acquisition including retries.
func WithFlightTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.flightTimeout = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.now = fn
		}
	}
}

func New(engine Engine, rec audit.Recorder, opts ...Option) *Bridge {
	if rec == nil {
		rec = audit.Nop{}
	}
	b := &Bridge{
		engine:        engine,
		audit:         rec,
		now:           func() time.Time { return time.Now().UTC() },
		maxTTL:        time.Hour,
		maxAttempts:   3,
		baseBackoff:   100 * time.Millisecond,
		flightTimeout: 15 * time.Second,
		cleanupBudget: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	for i := range b.shards {
		b.shards[i].slots = make(map[pairKey]*slot)
		b.gens[i].gens = make(map[string]uint64)
	}
	return b
}

func (b *Bridge) genShardFor(principalID string) *genShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principalID))
	return &b.gens[h.Sum32()%shardCount]
}

func (b *Bridge) generation(principalID string) uint64 {
	gs := b.genShardFor(principalID)
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.gens[principalID]
}

func (b *Bridge) bumpGeneration(principalID string) {
	gs := b.genShardFor(principalID)
	gs.mu.Lock()
	gs.gens[principalID]++
	gs.mu.Unlock()
}

type pinKey struct{}

type pin struct {
	principalID string
	generation  uint64
}

// Pin records the principal's current revocation generation on ctx. Call it
// before reading the principal's roles: an Acquire under the returned
// context fails with ErrRevoked once RevokeAll has run for that principal,
// so a role read before a downgrade can never be committed after it.
func (b *Bridge) Pin(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, pinKey{}, pin{principalID: principalID, generation: b.generation(principalID)})
}

func (b *Bridge) pinned(ctx context.Context, principalID string) uint64 {
	if p, ok := ctx.Value(pinKey{}).(pin); ok && p.principalID == principalID {
		return p.generation
	}
	return b.generation(principalID)
}

func (b *Bridge) shardFor(k pairKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.principalID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.projectID))
	return &b.shards[h.Sum32()%shardCount]
}

func (b *Bridge) slot(k pairKey, create bool) *slot {
	sh := b.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sl, ok := sh.slots[k]
	if !ok && create {
		sl = &slot{}
		sh.slots[k] = sl
	}
	return sl
}

// Acquire returns the live session for the pair when it matches role, or
// obtains a new one. Concurrent callers for the same pair share a single
// engine call. Cancelling ctx abandons the wait, not the acquisition: the
// result is either committed in full or not at all.
func (b *Bridge) Acquire(ctx context.Context, principalID string, role auth.Role, projectID string) (Session, error) {
	if principalID == "" || projectID == "" || !role.Valid() {
		return Session{}, fmt.Errorf("%w: principal, project and role are required", auth.ErrInvalidInput)
	}
	k := pairKey{principalID: principalID, projectID: projectID}
	gen := b.pinned(ctx, principalID)
	sl := b.slot(k, true)

	sl.mu.Lock()
	if b.generation(principalID) != gen {
		sl.mu.Unlock()
		return Session{}, ErrRevoked
	}
	if s, ok := b.reusable(sl, role); ok {
		sl.mu.Unlock()
		obs.RecordAcquire("cache")
		return s, nil
	}
	epoch := sl.epoch
	sl.mu.Unlock()

	flightKey := principalID + "\x00" + projectID + "\x00" + strconv.Itoa(int(role)) + "\x00" +
		strconv.FormatUint(epoch, 10) + "\x00" + strconv.FormatUint(gen, 10)
	fctx := context.WithoutCancel(ctx)
	ch := b.flights.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(fctx, b.flightTimeout)
		defer cancel()
		return b.obtain(fctx, k, sl, role, epoch, gen)
	})

	select {
	case <-ctx.Done():
		return Session{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			obs.RecordAcquire("error")
			return Session{}, res.Err
		}
		if res.Shared {
			obs.RecordAcquire("shared")
		}
		return res.Val.(Session), nil
	}
}

func (b *Bridge) reusable(sl *slot, role auth.Role) (Session, bool) {
	if sl.session == nil || sl.session.Role != role || !sl.session.Live(b.now()) {
		return Session{}, false
	}
	return copySession(*sl.session), true
}

func (b *Bridge) obtain(ctx context.Context, k pairKey, sl *slot, role auth.Role, epoch, gen uint64) (Session, error) {
	sl.mu.Lock()
	if sl.epoch != epoch || b.generation(k.principalID) != gen {
		sl.mu.Unlock()
		return Session{}, ErrRevoked
	}
	if s, ok := b.reusable(sl, role); ok {
		sl.mu.Unlock()
		obs.RecordAcquire("cache")
		return s, nil
	}
	sl.mu.Unlock()

	scopes := ScopesFor(role)
	cred, err := b.issueWithRetry(ctx, IssueRequest{
		PrincipalID: k.principalID,
		ProjectID:   k.projectID,
		Role:        role,
		Scopes:      scopes,
		TTL:         b.maxTTL,
	})
	if err != nil {
		b.audit.Record(ctx, audit.Record{
			ActorID:  k.principalID,
			Kind:     "bridge.issue",
			Resource: "project:" + k.projectID,
			Outcome:  audit.OutcomeError,
			Reason:   err.Error(),
		})
		return Session{}, err
	}

	now := b.now()
	expires := now.Add(b.maxTTL)
	if !cred.ExpiresAt.IsZero() && cred.ExpiresAt.Before(expires) {
		expires = cred.ExpiresAt
	}
	if !now.Before(expires) {
		b.invalidate(ctx, cred.ID, "expired_on_arrival")
		return Session{}, fmt.Errorf("%w: credential expired on arrival", ErrUnavailable)
	}

	sl.mu.Lock()
	if sl.epoch != epoch || b.generation(k.principalID) != gen {
		sl.mu.Unlock()
		b.invalidate(ctx, cred.ID, "revoked_in_flight")
		return Session{}, ErrRevoked
	}
	prev := sl.session
	sl.seq++
	sess := Session{
		PrincipalID:  k.principalID,
		ProjectID:    k.projectID,
		CredentialID: cred.ID,
		Token:        cred.Token,
		Scopes:       scopes,
		Role:         role,
		IssuedAt:     now,
		ExpiresAt:    expires,
		Sequence:     sl.seq,
	}
	sl.session = &sess
	sl.mu.Unlock()

	if prev == nil {
		obs.AddSessions(1)
	} else {
		b.invalidate(ctx, prev.CredentialID, "replaced")
	}
	obs.RecordAcquire("issued")
	b.audit.Record(ctx, audit.Record{
		ActorID:  k.principalID,
		Kind:     "bridge.issue",
		Resource: "project:" + k.projectID,
		Outcome:  audit.OutcomeAllow,
		Metadata: map[string]string{
			"role":       role.String(),
			"sequence":   strconv.FormatUint(sess.Sequence, 10),
			"expires_at": expires.Format(time.RFC3339),
		},
	})
	return copySession(sess), nil
}

func (b *Bridge) issueWithRetry(ctx context.Context, req IssueRequest) (Credential, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := b.baseBackoff << (attempt - 1)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return Credential{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-t.C:
			}
		}
		start := time.Now()
		cred, err := b.engine.Issue(ctx, req)
		switch {
		case err == nil:
			obs.RecordUpstream("issue", "ok", time.Since(start))
			return cred, nil
		case errors.Is(err, ErrUnauthorized):
			obs.RecordUpstream("issue", "unauthorized", time.Since(start))
			return Credential{}, err
		case errors.Is(err, ErrUnavailable):
			obs.RecordUpstream("issue", "unavailable", time.Since(start))
			lastErr = err
		case ctx.Err() != nil:
			obs.RecordUpstream("issue", "unavailable", time.Since(start))
			return Credential{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			// Anything else is a contract error; repeating it changes nothing.
			obs.RecordUpstream("issue", "error", time.Since(start))
			return Credential{}, fmt.Errorf("bridge: issue: %w", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Credential{}, lastErr
}

// invalidate tells the engine to drop a credential. Failures are logged
// and counted; local state is already authoritative.
func (b *Bridge) invalidate(ctx context.Context, credentialID, cause string) {
	if credentialID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cleanupBudget)
	defer cancel()
	start := time.Now()
	if err := b.engine.Invalidate(ctx, credentialID); err != nil {
		obs.RecordUpstream("invalidate", "error", time.Since(start))
		obs.Fault("bridge", err, map[string]any{"op": "invalidate", "cause": cause})
		return
	}
	obs.RecordUpstream("invalidate", "ok", time.Since(start))
}

// Revoke ends the pair's session. It takes effect locally before the
// engine is told, and any acquisition already in flight will not commit.
// It reports whether a live session was dropped.
func (b *Bridge) Revoke(ctx context.Context, principalID, projectID string) bool {
	sl := b.slot(pairKey{principalID: principalID, projectID: projectID}, false)
	if sl == nil {
		return false
	}
	return b.revokeSlot(ctx, sl, "revoke")
}

// RevokeAll ends every session the principal holds and returns how many
// were live. Acquisitions pinned before the call will not commit.
func (b *Bridge) RevokeAll(ctx context.Context, principalID string) int {
	b.bumpGeneration(principalID)
	var slots []*slot
	for i := range b.shards {
		sh := &b.shards[i]
		sh.mu.Lock()
		for k, sl := range sh.slots {
			if k.principalID == principalID {
				slots = append(slots, sl)
			}
		}
		sh.mu.Unlock()
	}
	n := 0
	for _, sl := range slots {
		if b.revokeSlot(ctx, sl, "revoke_all") {
			n++
		}
	}
	return n
}

func (b *Bridge) revokeSlot(ctx context.Context, sl *slot, cause string) bool {
	sl.mu.Lock()
	sl.epoch++
	prev := sl.session
	sl.session = nil
	sl.mu.Unlock()

	if prev == nil {
		return false
	}
	obs.AddSessions(-1)
	b.audit.Record(ctx, audit.Record{
		ActorID:  auth.ActorID(ctx),
		Kind:     "bridge.revoke",
		Resource: "project:" + prev.ProjectID,
		Outcome:  audit.OutcomeAllow,
		Reason:   cause,
		Metadata: map[string]string{
			"principal_id": prev.PrincipalID,
			"sequence":     strconv.FormatUint(prev.Sequence, 10),
		},
	})
	b.invalidate(ctx, prev.CredentialID, cause)
	return prev.Live(b.now())
}

// Lookup returns the live session for the pair without contacting the engine.
func (b *Bridge) Lookup(principalID, projectID string) (Session, bool) {
	sl := b.slot(pairKey{principalID: principalID, projectID: projectID}, false)
	if sl == nil {
		return Session{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.session == nil || !sl.session.Live(b.now()) {
		return Session{}, false
	}
	return copySession(*sl.session), true
}

// Sweep clears expired sessions and returns how many were cleared.
func (b *Bridge) Sweep() int {
	now := b.now()
	n := 0
	for i := range b.shards {
		sh := &b.shards[i]
		sh.mu.Lock()
		for _, sl := range sh.slots {
			sl.mu.Lock()
			if sl.session != nil && !sl.session.Live(now) {
				sl.session = nil
				n++
			}
			sl.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	if n > 0 {
		obs.AddSessions(-n)
	}
	return n
}

// Run sweeps on every tick until ctx ends.
func (b *Bridge) Run(ctx context.Context, every time.Duration) {
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
			b.Sweep()
		}
	}
}

func copySession(s Session) Session {
	s.Scopes = append([]string(nil), s.Scopes...)
	return s
}
