package bridge

import (
	"context"
	"errors"
	"time"

	"aibridge.io/internal/auth"
)

var (
	// ErrUnavailable is transient: the engine timed out, refused or failed.
	ErrUnavailable = errors.New("bridge: annotation engine unavailable")
	// ErrUnauthorized means the engine rejected the service credential.
	// It is never retried.
	ErrUnauthorized = errors.New("bridge: annotation engine rejected service credentials")
	// ErrRevoked is returned to acquisitions overtaken by a revocation.
	ErrRevoked = errors.New("bridge: session revoked during acquisition")
)

// IssueRequest asks the engine for a credential scoped to one project.
type IssueRequest struct {
	PrincipalID string
	ProjectID   string
	Role        auth.Role
	Scopes      []string
	TTL         time.Duration
}

// Credential is what the engine hands back.
type Credential struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// Engine is the annotation engine's session API.
type Engine interface {
	Issue(ctx context.Context, req IssueRequest) (Credential, error)
	Invalidate(ctx context.Context, credentialID string) error
}

// Session is a live engine credential bound to a (principal, project) pair.
// The token never leaves the gateway.
type Session struct {
	PrincipalID  string    `json:"principal_id"`
	ProjectID    string    `json:"project_id"`
	CredentialID string    `json:"-"`
	Token        string    `json:"-"`
	Scopes       []string  `json:"scopes"`
	Role         auth.Role `json:"role"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Sequence     uint64    `json:"sequence"`
}

// Live reports whether the session is still usable at now.
func (s Session) Live(now time.Time) bool {
	return s.CredentialID != "" && now.Before(s.ExpiresAt)
}

var roleScopes = []struct {
	min   auth.Role
	scope string
}{
	{auth.RoleViewer, "tasks:read"},
	{auth.RoleAnnotator, "annotations:write"},
	{auth.RoleManager, "tasks:manage"},
	{auth.RoleOwner, "project:admin"},
}

// ScopesFor derives the least-privilege engine scopes for role.
func ScopesFor(role auth.Role) []string {
	var out []string
	for _, rs := range roleScopes {
		if role.AtLeast(rs.min) {
			out = append(out, rs.scope)
		}
	}
	return out
}
