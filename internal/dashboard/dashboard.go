// Package dashboard aggregates per-organization statistics for the
// organizations a principal can read.
package dashboard

import (
	"context"
	"sort"
	"time"

	"aibridge.io/internal/auth"
	"aibridge.io/internal/authz"
	"aibridge.io/internal/cache"
	"aibridge.io/internal/obs"
)

type OrganizationStats struct {
	OrganizationID   string         `json:"organization_id"`
	OrganizationName string         `json:"organization_name"`
	Role             auth.Role      `json:"role"`
	Projects         int            `json:"projects"`
	ProjectsByStatus map[string]int `json:"projects_by_status"`
	Datasets         int            `json:"datasets"`
	Items            int64          `json:"items"`
	ComputedAt       time.Time      `json:"computed_at"`
}

type Service struct {
	dir   auth.Directory
	authz *authz.Engine
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func New(dir auth.Directory, engine *authz.Engine, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.NewMemory()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{dir: dir, authz: engine, cache: c, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Stats returns one entry per organization the principal may read, ordered
// by organization id. Statistics are cached per organization.
func (s *Service) Stats(ctx context.Context, p auth.Principal, bindings []auth.Membership) ([]OrganizationStats, error) {
	out := make([]OrganizationStats, 0, len(bindings))
	for _, b := range bindings {
		dec, err := s.authz.Authorize(ctx, p, bindings, authz.Resource{OrganizationID: b.OrganizationID}, authz.ActionRead)
		if err != nil {
			return nil, err
		}
		if !dec.Permit {
			continue
		}
		st, err := s.organization(ctx, b.OrganizationID)
		if err != nil {
			return nil, err
		}
		st.Role = b.Role
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

// Invalidate drops the cached statistics for an organization.
func (s *Service) Invalidate(ctx context.Context, organizationID string) error {
	return s.cache.Del(ctx, cacheKey(organizationID))
}

func (s *Service) organization(ctx context.Context, orgID string) (OrganizationStats, error) {
	var st OrganizationStats
	hit, err := cache.GetJSON(ctx, s.cache, cacheKey(orgID), &st)
	if err != nil {
		obs.Warn("dashboard cache read failed", map[string]any{"organization_id": orgID, "error": err.Error()})
	}
	if hit {
		return st, nil
	}

	org, err := s.dir.Organization(ctx, orgID)
	if err != nil {
		return OrganizationStats{}, err
	}
	projects, err := s.dir.ProjectsByOrganization(ctx, orgID)
	if err != nil {
		return OrganizationStats{}, err
	}
	st = OrganizationStats{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Projects:         len(projects),
		ProjectsByStatus: make(map[string]int),
		ComputedAt:       s.now(),
	}
	for _, prj := range projects {
		st.ProjectsByStatus[prj.Status]++
		datasets, err := s.dir.DatasetsByProject(ctx, prj.ID)
		if err != nil {
			return OrganizationStats{}, err
		}
		st.Datasets += len(datasets)
		for _, d := range datasets {
			st.Items += d.ItemCount
		}
	}
	if err := cache.SetJSON(ctx, s.cache, cacheKey(orgID), st, s.ttl); err != nil {
		obs.Warn("dashboard cache write failed", map[string]any{"organization_id": orgID, "error": err.Error()})
	}
	return st, nil
}

func cacheKey(orgID string) string { return "dashboard:org:" + orgID }
