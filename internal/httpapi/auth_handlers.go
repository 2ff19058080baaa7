package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type loginResponse struct {
	Principal auth.Principal `json:"principal"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type changeSecretRequest struct {
	CurrentSecret string `json:"current_secret"`
	NewSecret     string `json:"new_secret"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	p, err := a.deps.Credentials.Verify(ctx, req.Identifier, req.Secret)
	if err != nil {
		a.audit(ctx, "auth.login", "principal", audit.OutcomeDeny, "authentication_failed", map[string]string{
			"remote_ip": clientIP(r),
		})
		writeFailure(w, r, err)
		return
	}
	token, claims, err := a.deps.Tokens.Issue(p)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	ctx = auth.ContextWithPrincipal(ctx, p)
	a.audit(ctx, "auth.login", "principal:"+p.ID, audit.OutcomeAllow, "", map[string]string{
		"remote_ip":  clientIP(r),
		"expires_at": claims.ExpiresAt.Time.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Principal: p.Redacted(),
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// handleLogout ends every bridged session the caller holds and revokes the
// presented token.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	n := 0
	if a.deps.Bridge != nil {
		n = a.deps.Bridge.RevokeAll(r.Context(), id.principal.ID)
	}
	a.deps.Tokens.Revoke(id.claims)
	a.audit(r.Context(), "auth.logout", "principal:"+id.principal.ID, audit.OutcomeAllow, "", map[string]string{
		"sessions_revoked": strconv.Itoa(n),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	memberships := id.memberships
	if memberships == nil {
		memberships = []auth.Membership{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal":   id.principal.Redacted(),
		"memberships": memberships,
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changeSecretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, _ := identityFromContext(r.Context())
	if err := a.deps.Credentials.ChangeSecret(r.Context(), id.principal.ID, req.CurrentSecret, req.NewSecret); err != nil {
		outcome := audit.OutcomeError
		if errors.Is(err, auth.ErrInvalidCredentials) {
			outcome = audit.OutcomeDeny
		}
		a.audit(r.Context(), "auth.password", "principal:"+id.principal.ID, outcome, err.Error(), nil)
		writeFailure(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.password", "principal:"+id.principal.ID, audit.OutcomeAllow, "", nil)
	w.WriteHeader(http.StatusNoContent)
}
