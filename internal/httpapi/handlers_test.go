package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
	"aibridge.io/internal/authz"
	"aibridge.io/internal/bridge"
	"aibridge.io/internal/cache"
	"aibridge.io/internal/dashboard"
	"aibridge.io/internal/ratelimit"
)

const testSecret = "correct-horse-battery"

// engineStub is both the bridge's engine and the passthrough target.
type engineStub struct {
	mu          sync.Mutex
	issued      int
	scopes      [][]string
	invalidated []string
	failIssue   error
	lastAuth    string
	lastPath    string
	lastQuery   string
	srv         *httptest.Server
}

func newEngineStub(t *testing.T) *engineStub {
	t.Helper()
	e := &engineStub{}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.lastAuth = r.Header.Get("Authorization")
		e.lastPath = r.URL.Path
		e.lastQuery = r.URL.RawQuery
		e.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"tasks": []string{"t1", "t2"}})
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *engineStub) BaseURL() *url.URL {
	u, _ := url.Parse(e.srv.URL)
	return u
}

func (e *engineStub) Issue(_ context.Context, req bridge.IssueRequest) (bridge.Credential, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failIssue != nil {
		return bridge.Credential{}, e.failIssue
	}
	e.issued++
	e.scopes = append(e.scopes, req.Scopes)
	return bridge.Credential{
		ID:        fmt.Sprintf("cred-%d", e.issued),
		Token:     fmt.Sprintf("tok-%d", e.issued),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (e *engineStub) Invalidate(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidated = append(e.invalidated, id)
	return nil
}

func (e *engineStub) issuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issued
}

type testEnv struct {
	t       *testing.T
	handler http.Handler
	store   *auth.MemoryStore
	creds   *auth.Service
	engine  *engineStub
	bridge  *bridge.Bridge
	hub     *audit.Hub

	alice auth.Principal
	owner auth.Principal
	bob   auth.Principal
	op    auth.Principal
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := auth.NewMemoryStore()
	creds, err := auth.NewService(store, auth.WithDirectory(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret-0123456789", "aibridge", time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	hub := audit.NewHub()
	rec := audit.New(256, hub)
	t.Cleanup(func() { _ = rec.Close(context.Background()) })

	engine := newEngineStub(t)
	br := bridge.New(engine, rec, bridge.WithRetry(1, 0))
	creds.SetRevoker(br)
	engineAuthz := authz.New(store, rec)

	api := New(Deps{
		Credentials: creds,
		Tokens:      tokens,
		Limiter:     ratelimit.NewMemory(limit, time.Hour),
		Authz:       engineAuthz,
		Bridge:      br,
		Audit:       rec,
		AuditHub:    hub,
		Dashboard:   dashboard.New(store, engineAuthz, cache.NewMemory(), time.Minute),
		Engine:      engine,
		Version:     "test",
	})

	env := &testEnv{t: t, handler: api.Handler(), store: store, creds: creds, engine: engine, bridge: br, hub: hub}

	orgA, _ := store.CreateOrganization(ctx, auth.Organization{ID: "org-a", Name: "Acme"})
	orgB, _ := store.CreateOrganization(ctx, auth.Organization{ID: "org-b", Name: "Beta"})
	_, _ = store.CreateProject(ctx, auth.Project{ID: "prj-a", OrganizationID: orgA.ID, Name: "cats"})
	_, _ = store.CreateProject(ctx, auth.Project{ID: "prj-b", OrganizationID: orgB.ID, Name: "dogs"})

	env.alice = env.register("alice@example.com", false)
	env.owner = env.register("owner@example.com", false)
	env.bob = env.register("bob@example.com", false)
	env.op = env.register("ops@example.com", true)
	env.bind(env.alice, orgA.ID, auth.RoleManager)
	env.bind(env.owner, orgA.ID, auth.RoleOwner)
	env.bind(env.bob, orgB.ID, auth.RoleOwner)
	return env
}

func (e *testEnv) register(identifier string, operator bool) auth.Principal {
	e.t.Helper()
	p, err := e.creds.Register(context.Background(), auth.RegisterInput{Identifier: identifier, Secret: testSecret, Operator: operator})
	if err != nil {
		e.t.Fatalf("register %s: %v", identifier, err)
	}
	return p
}

func (e *testEnv) bind(p auth.Principal, orgID string, role auth.Role) {
	e.t.Helper()
	if _, err := e.creds.SetRole(context.Background(), p.ID, orgID, role); err != nil {
		e.t.Fatalf("bind %s: %v", p.Identifier, err)
	}
}

func (e *testEnv) do(method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.doFrom("192.0.2.10:5555", method, path, token, body, headers)
}

func (e *testEnv) doFrom(remoteAddr, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	req.RemoteAddr = remoteAddr
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(identifier string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": identifier, "secret": testSecret}, nil)
	if rr.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d body %s", identifier, rr.Code, rr.Body.String())
	}
	out := decode[loginResponse](e.t, rr)
	return out.Token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rr.Code, rr.Body.String())
	}
	body := decode[map[string]any](t, rr)
	if body["error"] != msg {
		t.Fatalf("expected error %q, got %v", msg, body["error"])
	}
	if body["request_id"] == nil || body["request_id"] == "" {
		t.Fatalf("expected request_id in body: %v", body)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, 1000)

	wrong := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "alice@example.com", "secret": "nope-nope-nope"}, nil)
	unknown := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "ghost@example.com", "secret": "nope-nope-nope"}, nil)
	expectError(t, wrong, http.StatusUnauthorized, "authentication failed")
	expectError(t, unknown, http.StatusUnauthorized, "authentication failed")

	_ = env.creds.Deactivate(context.Background(), env.bob.ID)
	disabled := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "bob@example.com", "secret": testSecret}, nil)
	expectError(t, disabled, http.StatusUnauthorized, "authentication failed")
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t, 1000)
	rr := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "Alice@Example.com", "secret": testSecret}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "argon2") {
		t.Fatal("login response leaked the secret hash")
	}
	token := decode[loginResponse](t, rr).Token

	me := env.do(http.MethodGet, "/api/auth/me", token, nil, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("me: %d %s", me.Code, me.Body.String())
	}
	body := decode[struct {
		Principal   auth.Principal    `json:"principal"`
		Memberships []auth.Membership `json:"memberships"`
	}](t, me)
	if body.Principal.ID != env.alice.ID || len(body.Memberships) != 1 || body.Memberships[0].Role != auth.RoleManager {
		t.Fatalf("unexpected me body %+v", body)
	}
}

func TestMissingOrBadTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, 1000)
	expectError(t, env.do(http.MethodGet, "/api/auth/me", "", nil, nil), http.StatusUnauthorized, "authentication failed")
	expectError(t, env.do(http.MethodGet, "/api/auth/me", "not-a-jwt", nil, nil), http.StatusUnauthorized, "authentication failed")
}

func TestRoleDowngradeRevokesBridgedSession(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	owner := env.login("owner@example.com")

	rr := env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("acquire: %d %s", rr.Code, rr.Body.String())
	}
	sess := decode[sessionResponse](t, rr)
	if sess.Sequence != 1 || sess.Role != auth.RoleManager {
		t.Fatalf("unexpected session %+v", sess)
	}
	if strings.Contains(rr.Body.String(), "tok-") {
		t.Fatal("session response exposed the engine credential")
	}

	rr = env.do(http.MethodPut, "/api/organizations/org-a/members/"+env.alice.ID, owner, map[string]string{"role": "viewer"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("set role: %d %s", rr.Code, rr.Body.String())
	}
	if _, ok := env.bridge.Lookup(env.alice.ID, "prj-a"); ok {
		t.Fatal("bridged session survived the role change")
	}
	env.engine.mu.Lock()
	invalidated := append([]string(nil), env.engine.invalidated...)
	env.engine.mu.Unlock()
	if len(invalidated) != 1 || invalidated[0] != "cred-1" {
		t.Fatalf("expected cred-1 invalidated upstream, got %v", invalidated)
	}

	expectError(t, env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil), http.StatusForbidden, "not permitted")
	if got := env.engine.issuedCount(); got != 1 {
		t.Fatalf("denied request reached the bridge: %d issues", got)
	}

	// reads still work and get a fresh, narrower session
	rr = env.do(http.MethodGet, "/api/projects/prj-a/engine/api/tasks", alice, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("engine read: %d %s", rr.Code, rr.Body.String())
	}
	s, ok := env.bridge.Lookup(env.alice.ID, "prj-a")
	if !ok || s.Role != auth.RoleViewer || s.Sequence != 2 {
		t.Fatalf("unexpected session after downgrade %+v (ok=%v)", s, ok)
	}
}

func TestCrossTenantProjectIsNotFound(t *testing.T) {
	env := newTestEnv(t, 1000)
	bob := env.login("bob@example.com")
	expectError(t, env.do(http.MethodPost, "/api/projects/prj-a/session", bob, nil, nil), http.StatusNotFound, "not found")
	expectError(t, env.do(http.MethodPost, "/api/projects/missing/session", bob, nil, nil), http.StatusNotFound, "not found")
	if env.engine.issuedCount() != 0 {
		t.Fatal("denied requests reached the engine")
	}
}

func TestUnauthenticatedStatsThrottledByIP(t *testing.T) {
	env := newTestEnv(t, 1000)
	for i := 1; i <= 1000; i++ {
		rr := env.do(http.MethodGet, "/api/dashboard/stats", "", nil, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i, rr.Code)
		}
	}
	rr := env.do(http.MethodGet, "/api/dashboard/stats", "", nil, nil)
	expectError(t, rr, http.StatusTooManyRequests, "rate limit exceeded")
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 3600 {
		t.Fatalf("unexpected Retry-After %q", rr.Header().Get("Retry-After"))
	}

	other := env.doFrom("198.51.100.1:4444", http.MethodGet, "/api/dashboard/stats", "", nil, nil)
	if other.Code != http.StatusUnauthorized {
		t.Fatalf("other IP should have its own budget, got %d", other.Code)
	}
}

func TestForwardedForFromUntrustedPeerDoesNotSplitBudget(t *testing.T) {
	env := newTestEnv(t, 5)
	throttled := 0
	for i := 0; i < 50; i++ {
		headers := map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i)}
		body := map[string]string{"identifier": "alice@example.com", "secret": "wrong-secret"}
		rr := env.do(http.MethodPost, "/api/auth/login", "", body, headers)
		switch rr.Code {
		case http.StatusTooManyRequests:
			throttled++
		case http.StatusUnauthorized:
		default:
			t.Fatalf("attempt %d: unexpected status %d", i, rr.Code)
		}
	}
	if throttled != 45 {
		t.Fatalf("expected 45 throttled logins, got %d", throttled)
	}
}

func TestAuthenticatedCallersAreKeyedByPrincipal(t *testing.T) {
	env := newTestEnv(t, 3)
	// login itself is keyed by IP and spends one unit of that budget
	alice := env.login("alice@example.com")
	for i := 0; i < 3; i++ {
		if rr := env.do(http.MethodGet, "/api/auth/me", alice, nil, nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
	rr := env.do(http.MethodGet, "/api/auth/me", alice, nil, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	// probes are never limited
	if rr := env.do(http.MethodGet, "/api/health", "", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	rr := env.do(http.MethodGet, "/api/dashboard/stats", alice, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rr.Code, rr.Body.String())
	}
	body := decode[struct {
		Organizations []dashboard.OrganizationStats `json:"organizations"`
	}](t, rr)
	if len(body.Organizations) != 1 || body.Organizations[0].OrganizationID != "org-a" || body.Organizations[0].Projects != 1 {
		t.Fatalf("unexpected stats %+v", body.Organizations)
	}
}

func TestEngineProxyInjectsBridgedCredential(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")

	rr := env.do(http.MethodGet, "/api/projects/prj-a/engine/api/tasks?page=2", alice, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("proxy: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "t1") {
		t.Fatalf("engine body not relayed: %s", rr.Body.String())
	}
	env.engine.mu.Lock()
	defer env.engine.mu.Unlock()
	if env.engine.lastAuth != "Token tok-1" {
		t.Fatalf("engine saw authorization %q", env.engine.lastAuth)
	}
	if env.engine.lastPath != "/api/tasks" || env.engine.lastQuery != "page=2" {
		t.Fatalf("engine saw %s?%s", env.engine.lastPath, env.engine.lastQuery)
	}
	if len(env.engine.scopes) != 1 || len(env.engine.scopes[0]) != 3 {
		t.Fatalf("manager session should carry three scopes, got %v", env.engine.scopes)
	}
}

func TestEngineUnavailableIs503(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.engine.failIssue = bridge.ErrUnavailable
	alice := env.login("alice@example.com")
	rr := env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil)
	expectError(t, rr, http.StatusServiceUnavailable, "service temporarily unavailable")
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestEngineRejectingServiceCredentialIs403(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.engine.failIssue = fmt.Errorf("%w: status 401", bridge.ErrUnauthorized)
	alice := env.login("alice@example.com")
	expectError(t, env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil), http.StatusForbidden, "not permitted")
}

func TestLogoutRevokesSessionsAndToken(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	if rr := env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("acquire: %d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/api/auth/logout", alice, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rr.Code)
	}
	if _, ok := env.bridge.Lookup(env.alice.ID, "prj-a"); ok {
		t.Fatal("session survived logout")
	}
	expectError(t, env.do(http.MethodGet, "/api/auth/me", alice, nil, nil), http.StatusUnauthorized, "authentication failed")
}

func TestRevokeOwnSession(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	_ = env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil)
	if rr := env.do(http.MethodDelete, "/api/projects/prj-a/session", alice, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("revoke: %d", rr.Code)
	}
	rr := env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil)
	if decode[sessionResponse](t, rr).Sequence != 2 {
		t.Fatalf("expected sequence 2 after revoke: %s", rr.Body.String())
	}
}

func TestMembershipAdminRequiresOwner(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	bob := env.login("bob@example.com")

	expectError(t, env.do(http.MethodPut, "/api/organizations/org-a/members/"+env.bob.ID, alice, map[string]string{"role": "viewer"}, nil),
		http.StatusForbidden, "not permitted")
	expectError(t, env.do(http.MethodDelete, "/api/organizations/org-a/members/"+env.alice.ID, bob, nil, nil),
		http.StatusNotFound, "not found")

	owner := env.login("owner@example.com")
	rr := env.do(http.MethodPut, "/api/organizations/org-a/members/"+env.bob.ID, owner, map[string]string{"role": "admin"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/api/organizations/org-a/members/"+env.alice.ID, owner, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("remove: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, env.do(http.MethodPost, "/api/projects/prj-a/session", alice, nil, nil), http.StatusNotFound, "not found")
}

func TestDeactivateRequiresOperator(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	op := env.login("ops@example.com")

	expectError(t, env.do(http.MethodPost, "/api/principals/"+env.bob.ID+"/deactivate", alice, nil, nil), http.StatusForbidden, "not permitted")
	if rr := env.do(http.MethodPost, "/api/principals/"+env.alice.ID+"/deactivate", op, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate: %d %s", rr.Code, rr.Body.String())
	}
	expectError(t, env.do(http.MethodGet, "/api/auth/me", alice, nil, nil), http.StatusUnauthorized, "authentication failed")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	bad := env.do(http.MethodPost, "/api/auth/password", alice, map[string]string{"current_secret": "wrong-secret", "new_secret": "another-long-secret"}, nil)
	expectError(t, bad, http.StatusUnauthorized, "authentication failed")

	ok := env.do(http.MethodPost, "/api/auth/password", alice, map[string]string{"current_secret": testSecret, "new_secret": "another-long-secret"}, nil)
	if ok.Code != http.StatusNoContent {
		t.Fatalf("change password: %d %s", ok.Code, ok.Body.String())
	}
	rr := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "alice@example.com", "secret": "another-long-secret"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login with new secret: %d", rr.Code)
	}
}

func TestHealthReadyAndMetricsArePublic(t *testing.T) {
	env := newTestEnv(t, 1000)
	for _, path := range []string{"/api/health", "/api/ready", "/metrics"} {
		if rr := env.do(http.MethodGet, path, "", nil, nil); rr.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rr.Code)
		}
	}
}

func TestAuditStreamIsOperatorOnly(t *testing.T) {
	env := newTestEnv(t, 1000)
	alice := env.login("alice@example.com")
	expectError(t, env.do(http.MethodGet, "/api/audit/stream", alice, nil, nil), http.StatusForbidden, "not permitted")

	op := env.login("ops@example.com")
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/audit/stream", nil)
	req.Header.Set("Authorization", "Bearer "+op)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(first, ": stream started") {
		t.Fatalf("unexpected preamble %q (%v)", first, err)
	}

	// a failed login is always audited
	_ = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "alice@example.com", "secret": "bad-secret-value"}, nil)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"auth.login"`) {
			break
		}
	}
}
