package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"aibridge.io/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/auth/login",
	"/api/health",
	"/api/ready",
	"/metrics",
}

// identity is what authentication attaches to a request.
type identity struct {
	principal   auth.Principal
	claims      *auth.Claims
	memberships []auth.Membership
}

type identityKey struct{}

func identityFromContext(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id, ok
}

// withAuth resolves the bearer token to a principal that is still active.
// Memberships are loaded fresh so role changes apply to the next request.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeFailure(w, r, auth.ErrInvalidToken)
			return
		}
		claims, err := a.deps.Tokens.Parse(token)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		ctx := r.Context()
		if a.deps.Bridge != nil {
			// pinned before the reads below so a concurrent downgrade fails this request's acquire
			ctx = a.deps.Bridge.Pin(ctx, claims.Subject)
		}
		principal, err := a.deps.Credentials.Principal(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				err = auth.ErrInvalidToken
			}
			writeFailure(w, r, err)
			return
		}
		if !principal.Active() {
			writeFailure(w, r, auth.ErrAccountDisabled)
			return
		}
		memberships, err := a.deps.Credentials.RolesFor(ctx, principal.ID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		ctx = auth.ContextWithPrincipal(ctx, principal)
		ctx = auth.ContextWithClaims(ctx, claims)
		ctx = context.WithValue(ctx, identityKey{}, identity{
			principal:   principal,
			claims:      claims,
			memberships: memberships,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
