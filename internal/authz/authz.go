package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
	"aibridge.io/internal/obs"
)

// Action is what the caller wants to do to a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
	ActionAdmin  Action = "admin"
)

var requiredRoles = map[Action]auth.Role{
	ActionRead:   auth.RoleViewer,
	ActionWrite:  auth.RoleAnnotator,
	ActionManage: auth.RoleManager,
	ActionAdmin:  auth.RoleOwner,
}

// RequiredRole returns the minimum role for a, or false for unknown actions.
func (a Action) RequiredRole() (auth.Role, bool) {
	r, ok := requiredRoles[a]
	return r, ok
}

// Deny reasons. A caller without any binding in the owning organization
// sees not_found so tenant existence does not leak.
const (
	ReasonNotFound  = "not_found"
	ReasonForbidden = "forbidden"
	ReasonGranted   = "granted"
	ReasonOperator  = "operator"
)

var ErrUnknownAction = errors.New("authz: unknown action")

// Resource names a node in the organization -> project -> dataset chain.
// Deeper ids are authoritative; shallower ids, when given, must match.
type Resource struct {
	OrganizationID string
	ProjectID      string
	DatasetID      string
}

func (r Resource) String() string {
	var parts []string
	if r.OrganizationID != "" {
		parts = append(parts, "organization:"+r.OrganizationID)
	}
	if r.ProjectID != "" {
		parts = append(parts, "project:"+r.ProjectID)
	}
	if r.DatasetID != "" {
		parts = append(parts, "dataset:"+r.DatasetID)
	}
	return strings.Join(parts, "/")
}

// Decision is Permit or Deny with a reason. OrganizationID and Role are
// the resolved owner and the binding that was evaluated.
type Decision struct {
	Permit         bool
	Reason         string
	OrganizationID string
	Role           auth.Role
}

func deny(reason string) Decision { return Decision{Reason: reason} }

// Engine evaluates ranked-role access over the tenant hierarchy.
type Engine struct {
	dir   auth.Directory
	audit audit.Recorder
}

func New(dir auth.Directory, rec audit.Recorder) *Engine {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Engine{dir: dir, audit: rec}
}

// Authorize decides whether p, holding bindings, may perform action on res.
// Every deny is audited; permits are audited for manage and admin only.
// A non-nil error means the directory could not be consulted.
func (e *Engine) Authorize(ctx context.Context, p auth.Principal, bindings []auth.Membership, res Resource, action Action) (Decision, error) {
	required, ok := action.RequiredRole()
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	d, err := e.evaluate(ctx, p, bindings, res, required)
	if err != nil {
		e.audit.Record(ctx, audit.Record{
			ActorID:  p.ID,
			Kind:     "authz.error",
			Resource: res.String(),
			Outcome:  audit.OutcomeError,
			Reason:   err.Error(),
			Metadata: map[string]string{"action": string(action)},
		})
		obs.RecordAuthz(string(action), "error", "lookup")
		return Decision{}, err
	}

	outcome := "permit"
	if !d.Permit {
		outcome = "deny"
	}
	obs.RecordAuthz(string(action), outcome, d.Reason)

	if !d.Permit || action == ActionManage || action == ActionAdmin {
		rec := audit.Record{
			ActorID:  p.ID,
			Kind:     "authz." + outcome,
			Resource: res.String(),
			Outcome:  audit.OutcomeAllow,
			Reason:   d.Reason,
			Metadata: map[string]string{
				"action":        string(action),
				"required_role": required.String(),
			},
		}
		if !d.Permit {
			rec.Outcome = audit.OutcomeDeny
		}
		if d.Role.Valid() {
			rec.Metadata["role"] = d.Role.String()
		}
		e.audit.Record(ctx, rec)
	}
	return d, nil
}

func (e *Engine) evaluate(ctx context.Context, p auth.Principal, bindings []auth.Membership, res Resource, required auth.Role) (Decision, error) {
	orgID, found, err := e.resolve(ctx, res)
	if err != nil || !found {
		return deny(ReasonNotFound), err
	}

	if !p.Active() {
		return Decision{Reason: ReasonForbidden, OrganizationID: orgID}, nil
	}
	if p.Operator {
		return Decision{Permit: true, Reason: ReasonOperator, OrganizationID: orgID}, nil
	}

	var binding auth.Membership
	for _, b := range bindings {
		if b.OrganizationID == orgID && b.PrincipalID == p.ID {
			binding = b
			break
		}
	}
	if !binding.Role.Valid() {
		return Decision{Reason: ReasonNotFound, OrganizationID: orgID}, nil
	}
	if !binding.Role.AtLeast(required) {
		return Decision{Reason: ReasonForbidden, OrganizationID: orgID, Role: binding.Role}, nil
	}
	return Decision{Permit: true, Reason: ReasonGranted, OrganizationID: orgID, Role: binding.Role}, nil
}

// resolve walks the chain upward and returns the owning organization.
// found is false when any link is missing, mismatched or suspended.
func (e *Engine) resolve(ctx context.Context, res Resource) (string, bool, error) {
	projectID := res.ProjectID
	if res.DatasetID != "" {
		ds, err := e.dir.Dataset(ctx, res.DatasetID)
		if err != nil {
			return missing(err)
		}
		if projectID != "" && ds.ProjectID != projectID {
			return "", false, nil
		}
		projectID = ds.ProjectID
	}

	orgID := res.OrganizationID
	if projectID != "" {
		pr, err := e.dir.Project(ctx, projectID)
		if err != nil {
			return missing(err)
		}
		if orgID != "" && pr.OrganizationID != orgID {
			return "", false, nil
		}
		orgID = pr.OrganizationID
	}
	if orgID == "" {
		return "", false, nil
	}

	org, err := e.dir.Organization(ctx, orgID)
	if err != nil {
		return missing(err)
	}
	if org.Status != auth.StatusActive {
		return "", false, nil
	}
	return orgID, true, nil
}

func missing(err error) (string, bool, error) {
	if errors.Is(err, auth.ErrNotFound) {
		return "", false, nil
	}
	return "", false, fmt.Errorf("authz: resolve resource: %w", err)
}
