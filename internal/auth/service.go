package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"aibridge.io/internal/obs"
)

// SessionRevoker drops every downstream session held for a principal.
// It is called synchronously whenever a principal's entitlements shrink.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, principalID string) int
}

// Service is the credential store: secret verification, role lookup and
// the membership changes that must invalidate bridged sessions.
type Service struct {
	store     Store
	directory Directory
	revoker   SessionRevoker
	now       func() time.Time

	// Every verification runs one argon2id and one bcrypt comparison,
	// against these dummies where the account has no hash of that kind.
	dummyHash   string
	dummyBcrypt string
	compare     func(encoded, secret string) bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithRevoker installs the hook invoked on role change and deactivation.
func WithRevoker(r SessionRevoker) ServiceOption {
	return func(s *Service) error {
		s.revoker = r
		return nil
	}
}

// WithDirectory lets SetRole reject unknown organizations up front.
func WithDirectory(d Directory) ServiceOption {
	return func(s *Service) error {
		s.directory = d
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
		compare: VerifySecret,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("auth: dummy secret: %w", err)
	}
	dummy, err := HashSecret(hex.EncodeToString(buf))
	if err != nil {
		return nil, err
	}
	svc.dummyHash = dummy
	legacy, err := bcrypt.GenerateFromPassword(buf, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: dummy bcrypt secret: %w", err)
	}
	svc.dummyBcrypt = string(legacy)
	return svc, nil
}

// SetRevoker wires the revocation hook after construction, for callers
// whose revoker depends on the service itself.
func (s *Service) SetRevoker(r SessionRevoker) { s.revoker = r }

// Verify checks a secret against the stored hash. Unknown identifiers and
// wrong secrets both yield ErrInvalidCredentials after the same amount of
// hashing work. A deactivated account is reported only when the secret
// matched. Verify never writes audit records.
func (s *Service) Verify(ctx context.Context, identifier, secret string) (Principal, error) {
	identifier = normalizeIdentifier(identifier)
	p, err := s.store.PrincipalByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) || (err == nil && p.SecretHash == "") {
		s.verifyBalanced("", secret)
		return Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return Principal{}, fmt.Errorf("auth: lookup principal: %w", err)
	}
	if !s.verifyBalanced(p.SecretHash, secret) {
		return Principal{}, ErrInvalidCredentials
	}
	if !p.Active() {
		return Principal{}, ErrAccountDisabled
	}
	if needsRehash(p.SecretHash) {
		s.upgradeHash(ctx, p.ID, secret)
	}
	return p.Redacted(), nil
}

// verifyBalanced checks secret against encoded while also paying for the
// scheme encoded does not use, so argon2id accounts, legacy bcrypt accounts
// and unknown identifiers take the same time. An empty encoded never matches.
func (s *Service) verifyBalanced(encoded, secret string) bool {
	argonHash, bcryptHash := s.dummyHash, s.dummyBcrypt
	legacy := isBcrypt(encoded)
	switch {
	case legacy:
		bcryptHash = encoded
	case encoded != "":
		argonHash = encoded
	}
	argonOK := s.compare(argonHash, secret)
	bcryptOK := s.compare(bcryptHash, secret)
	if encoded == "" {
		return false
	}
	if legacy {
		return bcryptOK
	}
	return argonOK
}

func (s *Service) upgradeHash(ctx context.Context, principalID, secret string) {
	hash, err := HashSecret(secret)
	if err != nil {
		return
	}
	if err := s.store.UpdateSecretHash(ctx, principalID, hash); err != nil {
		obs.Warn("secret rehash failed", map[string]any{"principal_id": principalID, "error": err.Error()})
	}
}

// Principal returns the principal without its secret hash.
func (s *Service) Principal(ctx context.Context, principalID string) (Principal, error) {
	p, err := s.store.PrincipalByID(ctx, principalID)
	if err != nil {
		return Principal{}, err
	}
	return p.Redacted(), nil
}

// RolesFor lists the principal's organization bindings.
func (s *Service) RolesFor(ctx context.Context, principalID string) ([]Membership, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, ErrInvalidInput
	}
	return s.store.Memberships(ctx, principalID)
}

// RotateSecret replaces the stored hash.
func (s *Service) RotateSecret(ctx context.Context, principalID, newSecret string) error {
	hash, err := HashSecret(newSecret)
	if err != nil {
		return err
	}
	return s.store.UpdateSecretHash(ctx, principalID, hash)
}

// ChangeSecret rotates the secret after proving knowledge of the current one.
func (s *Service) ChangeSecret(ctx context.Context, principalID, current, next string) error {
	p, err := s.store.PrincipalByID(ctx, principalID)
	if err != nil {
		return err
	}
	if !VerifySecret(p.SecretHash, current) {
		return ErrInvalidCredentials
	}
	return s.RotateSecret(ctx, principalID, next)
}

// RegisterInput describes a new principal.
type RegisterInput struct {
	Identifier  string
	DisplayName string
	Secret      string
	Operator    bool
}

// Register creates an active principal with a hashed secret.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Principal, error) {
	identifier := normalizeIdentifier(in.Identifier)
	if identifier == "" || !strings.Contains(identifier, "@") {
		return Principal{}, fmt.Errorf("%w: identifier must be an email address", ErrInvalidInput)
	}
	hash, err := HashSecret(in.Secret)
	if err != nil {
		return Principal{}, err
	}
	now := s.now()
	p, err := s.store.CreatePrincipal(ctx, Principal{
		Identifier:  identifier,
		DisplayName: strings.TrimSpace(in.DisplayName),
		SecretHash:  hash,
		Status:      StatusActive,
		Operator:    in.Operator,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Principal{}, err
	}
	return p.Redacted(), nil
}

// SetRole binds principal to organization with role, replacing any prior
// binding. When the role changes every bridged session of the principal is
// revoked before SetRole returns.
func (s *Service) SetRole(ctx context.Context, principalID, organizationID string, role Role) (Membership, error) {
	if !role.Valid() {
		return Membership{}, fmt.Errorf("%w: role", ErrInvalidInput)
	}
	if _, err := s.store.PrincipalByID(ctx, principalID); err != nil {
		return Membership{}, err
	}
	if s.directory != nil {
		if _, err := s.directory.Organization(ctx, organizationID); err != nil {
			return Membership{}, err
		}
	}
	prev, err := s.store.Membership(ctx, principalID, organizationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Membership{}, err
	}
	ms := Membership{
		PrincipalID:    principalID,
		OrganizationID: organizationID,
		Role:           role,
		CreatedAt:      s.now(),
	}
	if err := s.store.UpsertMembership(ctx, ms); err != nil {
		return Membership{}, err
	}
	if prev.Role != RoleNone && prev.Role != role {
		s.revoke(ctx, principalID, "role_change")
	}
	return ms, nil
}

// RemoveMembership drops the binding and revokes bridged sessions.
func (s *Service) RemoveMembership(ctx context.Context, principalID, organizationID string) error {
	if err := s.store.DeleteMembership(ctx, principalID, organizationID); err != nil {
		return err
	}
	s.revoke(ctx, principalID, "membership_removed")
	return nil
}

// Deactivate disables the principal and revokes bridged sessions. The
// record is kept; principals are never deleted.
func (s *Service) Deactivate(ctx context.Context, principalID string) error {
	if err := s.store.SetPrincipalStatus(ctx, principalID, StatusDisabled); err != nil {
		return err
	}
	s.revoke(ctx, principalID, "deactivated")
	return nil
}

func (s *Service) revoke(ctx context.Context, principalID, cause string) {
	if s.revoker == nil {
		return
	}
	n := s.revoker.RevokeAll(ctx, principalID)
	obs.Info("bridged sessions revoked", map[string]any{
		"principal_id": principalID,
		"cause":        cause,
		"count":        n,
	})
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
