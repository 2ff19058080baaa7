package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"aibridge.io/internal/ids"
)

// MemoryStore is an in-process Store and Directory.
type MemoryStore struct {
	mu           sync.RWMutex
	principals   map[string]Principal
	byIdentifier map[string]string
	memberships  map[string]map[string]Membership // principal -> org -> membership
	orgs         map[string]Organization
	projects     map[string]Project
	datasets     map[string]Dataset
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ Directory = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals:   make(map[string]Principal),
		byIdentifier: make(map[string]string),
		memberships:  make(map[string]map[string]Membership),
		orgs:         make(map[string]Organization),
		projects:     make(map[string]Project),
		datasets:     make(map[string]Dataset),
	}
}

func (m *MemoryStore) CreatePrincipal(_ context.Context, p Principal) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byIdentifier[p.Identifier]; ok {
		return Principal{}, fmt.Errorf("%w: identifier %s", ErrAlreadyExists, p.Identifier)
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	m.principals[p.ID] = p
	m.byIdentifier[p.Identifier] = p.ID
	return p, nil
}

func (m *MemoryStore) PrincipalByID(_ context.Context, id string) (Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) PrincipalByIdentifier(_ context.Context, identifier string) (Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byIdentifier[identifier]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return m.principals[id], nil
}

func (m *MemoryStore) UpdateSecretHash(_ context.Context, principalID, hash string) error {
	return m.updatePrincipal(principalID, func(p *Principal) { p.SecretHash = hash })
}

func (m *MemoryStore) SetPrincipalStatus(_ context.Context, principalID, status string) error {
	return m.updatePrincipal(principalID, func(p *Principal) { p.Status = status })
}

func (m *MemoryStore) updatePrincipal(id string, fn func(*Principal)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = time.Now().UTC()
	m.principals[id] = p
	return nil
}

func (m *MemoryStore) Memberships(_ context.Context, principalID string) ([]Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Membership, 0, len(m.memberships[principalID]))
	for _, ms := range m.memberships[principalID] {
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

func (m *MemoryStore) Membership(_ context.Context, principalID, organizationID string) (Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.memberships[principalID][organizationID]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return ms, nil
}

func (m *MemoryStore) UpsertMembership(_ context.Context, ms Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.principals[ms.PrincipalID]; !ok {
		return fmt.Errorf("%w: principal %s", ErrNotFound, ms.PrincipalID)
	}
	if _, ok := m.orgs[ms.OrganizationID]; !ok {
		return fmt.Errorf("%w: organization %s", ErrNotFound, ms.OrganizationID)
	}
	byOrg := m.memberships[ms.PrincipalID]
	if byOrg == nil {
		byOrg = make(map[string]Membership)
		m.memberships[ms.PrincipalID] = byOrg
	}
	if prev, ok := byOrg[ms.OrganizationID]; ok {
		ms.CreatedAt = prev.CreatedAt
	} else if ms.CreatedAt.IsZero() {
		ms.CreatedAt = time.Now().UTC()
	}
	byOrg[ms.OrganizationID] = ms
	return nil
}

func (m *MemoryStore) DeleteMembership(_ context.Context, principalID, organizationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.memberships[principalID][organizationID]; !ok {
		return ErrNotFound
	}
	delete(m.memberships[principalID], organizationID)
	return nil
}

func (m *MemoryStore) Organization(_ context.Context, id string) (Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (m *MemoryStore) Project(_ context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) Dataset(_ context.Context, id string) (Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[id]
	if !ok {
		return Dataset{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) ProjectsByOrganization(_ context.Context, organizationID string) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Project
	for _, p := range m.projects {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DatasetsByProject(_ context.Context, projectID string) ([]Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Dataset
	for _, d := range m.datasets {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateOrganization(_ context.Context, org Organization) (Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if org.ID == "" {
		org.ID = ids.New()
	}
	if _, ok := m.orgs[org.ID]; ok {
		return Organization{}, ErrAlreadyExists
	}
	if org.Status == "" {
		org.Status = StatusActive
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	m.orgs[org.ID] = org
	return org, nil
}

func (m *MemoryStore) CreateProject(_ context.Context, p Project) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[p.OrganizationID]; !ok {
		return Project{}, fmt.Errorf("%w: organization %s", ErrNotFound, p.OrganizationID)
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	if _, ok := m.projects[p.ID]; ok {
		return Project{}, ErrAlreadyExists
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *MemoryStore) CreateDataset(_ context.Context, d Dataset) (Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[d.ProjectID]; !ok {
		return Dataset{}, fmt.Errorf("%w: project %s", ErrNotFound, d.ProjectID)
	}
	if d.ID == "" {
		d.ID = ids.New()
	}
	if _, ok := m.datasets[d.ID]; ok {
		return Dataset{}, ErrAlreadyExists
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	m.datasets[d.ID] = d
	return d, nil
}

// SetOrganizationStatus suspends or reactivates an organization.
func (m *MemoryStore) SetOrganizationStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return ErrNotFound
	}
	org.Status = status
	m.orgs[id] = org
	return nil
}
