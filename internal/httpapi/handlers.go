package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
	"aibridge.io/internal/authz"
	"aibridge.io/internal/bridge"
	"aibridge.io/internal/dashboard"
	"aibridge.io/internal/obs"
	"aibridge.io/internal/ratelimit"
)

const serviceName = "aibridge-gateway"

// ReadyProbe checks dependencies needed to serve traffic (the database).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps are the collaborators the gateway sequences on every request.
type Deps struct {
	Credentials *auth.Service
	Tokens      *auth.TokenIssuer
	Limiter     ratelimit.Limiter
	Authz       *authz.Engine
	Bridge      *bridge.Bridge
	Audit       audit.Recorder
	AuditHub    *audit.Hub
	Dashboard   *dashboard.Service
	// Engine is the annotation engine the passthrough proxy forwards to.
	Engine      EngineTarget
	Ready       readinessChecker
	Version     string
	CORSOrigins []string
	MaxBody     int64

	// TrustedProxies may set X-Forwarded-For; everyone else is keyed by peer address.
	TrustedProxies []netip.Prefix
}

// API is the request gateway.
type API struct {
	mux   *http.ServeMux
	deps  Deps
	proxy http.Handler
}

func New(deps Deps) *API {
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Ready == nil {
		deps.Ready = ReadyProbe{}
	}
	if deps.MaxBody <= 0 {
		deps.MaxBody = 1 << 20
	}
	a := &API{mux: http.NewServeMux(), deps: deps}
	if deps.Engine != nil {
		a.proxy = newEngineProxy(deps.Engine, deps.Bridge)
	}

	a.mux.HandleFunc("GET /api/health", a.Healthz)
	a.mux.HandleFunc("GET /api/ready", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("GET /api/auth/me", a.handleMe)
	a.mux.HandleFunc("POST /api/auth/password", a.handleChangePassword)

	a.mux.HandleFunc("GET /api/dashboard/stats", a.handleDashboardStats)

	a.mux.HandleFunc("PUT /api/organizations/{org}/members/{principal}", a.handleSetMember)
	a.mux.HandleFunc("DELETE /api/organizations/{org}/members/{principal}", a.handleRemoveMember)
	a.mux.HandleFunc("POST /api/principals/{principal}/deactivate", a.handleDeactivate)

	a.mux.HandleFunc("POST /api/projects/{project}/session", a.handleAcquireSession)
	a.mux.HandleFunc("DELETE /api/projects/{project}/session", a.handleRevokeSession)
	a.mux.HandleFunc("/api/projects/{project}/engine/{path...}", a.handleEngine)

	a.mux.HandleFunc("GET /api/audit/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	return a
}

// Handler returns the mux wrapped in the gateway's middleware chain:
// rate limiting runs before authentication, which runs before any handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	if a.deps.Limiter != nil {
		h = RateLimit(h, a.deps.Limiter, a.deps.Tokens)
	}
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, a.deps.MaxBody)
	h = CORS(h, a.deps.CORSOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = ClientIP(h, a.deps.TrustedProxies)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// denial carries a negative authorization decision to writeFailure.
type denial struct{ reason string }

func (d denial) Error() string { return "denied: " + d.reason }

const unavailableRetryAfter = 5 * time.Second

// writeFailure is the single place error kinds become HTTP statuses.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var d denial
	switch {
	case errors.As(err, &d) && d.reason == authz.ReasonNotFound:
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.As(err, &d):
		writeError(w, r, http.StatusForbidden, "not permitted")
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountDisabled),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "already exists")
	case errors.Is(err, bridge.ErrUnauthorized):
		obs.Error("annotation engine rejected service credentials", map[string]any{"error": err.Error()})
		writeError(w, r, http.StatusForbidden, "not permitted")
	case errors.Is(err, bridge.ErrRevoked):
		writeError(w, r, http.StatusConflict, "session revoked, retry the request")
	case errors.Is(err, bridge.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		w.Header().Set("Retry-After", strconv.Itoa(int(unavailableRetryAfter/time.Second)))
		writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		obs.Error("request failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// authorize runs the authorization engine for the current identity and
// turns a deny into an error writeFailure understands.
func (a *API) authorize(ctx context.Context, res authz.Resource, action authz.Action) (authz.Decision, error) {
	id, ok := identityFromContext(ctx)
	if !ok {
		return authz.Decision{}, auth.ErrInvalidToken
	}
	dec, err := a.deps.Authz.Authorize(ctx, id.principal, id.memberships, res, action)
	if err != nil {
		return dec, err
	}
	if !dec.Permit {
		return dec, denial{reason: dec.Reason}
	}
	return dec, nil
}

func (a *API) audit(ctx context.Context, kind, resource string, outcome audit.Outcome, reason string, meta map[string]string) {
	a.deps.Audit.Record(ctx, audit.Record{
		Kind:     kind,
		Resource: resource,
		Outcome:  outcome,
		Reason:   reason,
		Metadata: meta,
	})
}
