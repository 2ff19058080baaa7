package auth

import "context"

// Store persists principals and their organization memberships.
type Store interface {
	CreatePrincipal(ctx context.Context, p Principal) (Principal, error)
	PrincipalByID(ctx context.Context, id string) (Principal, error)
	PrincipalByIdentifier(ctx context.Context, identifier string) (Principal, error)
	UpdateSecretHash(ctx context.Context, principalID, hash string) error
	SetPrincipalStatus(ctx context.Context, principalID, status string) error

	Memberships(ctx context.Context, principalID string) ([]Membership, error)
	Membership(ctx context.Context, principalID, organizationID string) (Membership, error)
	UpsertMembership(ctx context.Context, m Membership) error
	DeleteMembership(ctx context.Context, principalID, organizationID string) error
}

// Directory resolves the organization -> project -> dataset hierarchy.
type Directory interface {
	Organization(ctx context.Context, id string) (Organization, error)
	Project(ctx context.Context, id string) (Project, error)
	Dataset(ctx context.Context, id string) (Dataset, error)
	ProjectsByOrganization(ctx context.Context, organizationID string) ([]Project, error)
	DatasetsByProject(ctx context.Context, projectID string) ([]Dataset, error)

	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	CreateProject(ctx context.Context, p Project) (Project, error)
	CreateDataset(ctx context.Context, d Dataset) (Dataset, error)
}
