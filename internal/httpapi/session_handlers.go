package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"aibridge.io/internal/auth"
	"aibridge.io/internal/authz"
	"aibridge.io/internal/bridge"
	"aibridge.io/internal/obs"
)

// EngineTarget locates the annotation engine for passthrough requests.
type EngineTarget interface {
	BaseURL() *url.URL
}

type sessionResponse struct {
	ProjectID string    `json:"project_id"`
	Role      auth.Role `json:"role"`
	Scopes    []string  `json:"scopes"`
	Sequence  uint64    `json:"sequence"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// acquire authorizes action on the project and returns the caller's
// bridged session for it. Denials never reach the bridge.
func (a *API) acquire(ctx context.Context, projectID string, action authz.Action) (bridge.Session, error) {
	if a.deps.Bridge == nil {
		return bridge.Session{}, fmt.Errorf("%w: bridge not configured", bridge.ErrUnavailable)
	}
	dec, err := a.authorize(ctx, authz.Resource{ProjectID: projectID}, action)
	if err != nil {
		return bridge.Session{}, err
	}
	role := dec.Role
	if !role.Valid() {
		// operators hold no binding; they act with full project scope
		role = auth.RoleOwner
	}
	id, _ := identityFromContext(ctx)
	return a.deps.Bridge.Acquire(ctx, id.principal.ID, role, projectID)
}

func (a *API) handleAcquireSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.acquire(r.Context(), r.PathValue("project"), authz.ActionWrite)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ProjectID: s.ProjectID,
		Role:      s.Role,
		Scopes:    s.Scopes,
		Sequence:  s.Sequence,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	})
}

func (a *API) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	if _, err := a.authorize(r.Context(), authz.Resource{ProjectID: projectID}, authz.ActionRead); err != nil {
		writeFailure(w, r, err)
		return
	}
	id, _ := identityFromContext(r.Context())
	if a.deps.Bridge != nil {
		a.deps.Bridge.Revoke(r.Context(), id.principal.ID, projectID)
	}
	w.WriteHeader(http.StatusNoContent)
}

type proxyTarget struct {
	session bridge.Session
	path    string
}

type proxyTargetKey struct{}

// handleEngine forwards a request to the annotation engine under the
// caller's bridged credential. Reads need read access, anything else write.
func (a *API) handleEngine(w http.ResponseWriter, r *http.Request) {
	if a.proxy == nil {
		writeFailure(w, r, fmt.Errorf("%w: engine passthrough not configured", bridge.ErrUnavailable))
		return
	}
	action := authz.ActionWrite
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		action = authz.ActionRead
	}
	s, err := a.acquire(r.Context(), r.PathValue("project"), action)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	ctx := context.WithValue(r.Context(), proxyTargetKey{}, proxyTarget{session: s, path: r.PathValue("path")})
	a.proxy.ServeHTTP(w, r.WithContext(ctx))
}

func newEngineProxy(target EngineTarget, b *bridge.Bridge) *httputil.ReverseProxy {
	base := target.BaseURL()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			t, _ := pr.In.Context().Value(proxyTargetKey{}).(proxyTarget)
			pr.Out.URL.Scheme = base.Scheme
			pr.Out.URL.Host = base.Host
			pr.Out.URL.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(t.path, "/")
			pr.Out.URL.RawPath = ""
			pr.Out.Host = base.Host
			pr.SetXForwarded()

			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Set("Authorization", "Token "+t.session.Token)
			if rid := RequestIDFromContext(pr.In.Context()); rid != "" {
				pr.Out.Header.Set(requestIDHeader, rid)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode != http.StatusUnauthorized || b == nil {
				return nil
			}
			// the engine no longer honours this credential; drop it so the
			// next request obtains a fresh one
			t, _ := resp.Request.Context().Value(proxyTargetKey{}).(proxyTarget)
			b.Revoke(resp.Request.Context(), t.session.PrincipalID, t.session.ProjectID)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			obs.Warn("engine passthrough failed", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			})
			if !errors.Is(err, context.Canceled) {
				err = fmt.Errorf("%w: %v", bridge.ErrUnavailable, err)
			}
			writeFailure(w, r, err)
		},
	}
}
