package httpapi

import (
	"net/http"

	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
	"aibridge.io/internal/authz"
)

type setMemberRequest struct {
	Role auth.Role `json:"role"`
}

// handleSetMember grants or changes a role. Any change revokes the
// member's bridged sessions before the response is written.
func (a *API) handleSetMember(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	principalID := r.PathValue("principal")
	if _, err := a.authorize(r.Context(), authz.Resource{OrganizationID: orgID}, authz.ActionAdmin); err != nil {
		writeFailure(w, r, err)
		return
	}
	var req setMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Role.Valid() {
		writeError(w, r, http.StatusBadRequest, "role must be one of viewer, annotator, manager, owner")
		return
	}
	m, err := a.deps.Credentials.SetRole(r.Context(), principalID, orgID, req.Role)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	a.audit(r.Context(), "membership.set", "organization:"+orgID, audit.OutcomeAllow, "", map[string]string{
		"principal_id": principalID,
		"role":         req.Role.String(),
	})
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org")
	principalID := r.PathValue("principal")
	if _, err := a.authorize(r.Context(), authz.Resource{OrganizationID: orgID}, authz.ActionAdmin); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := a.deps.Credentials.RemoveMembership(r.Context(), principalID, orgID); err != nil {
		writeFailure(w, r, err)
		return
	}
	a.audit(r.Context(), "membership.remove", "organization:"+orgID, audit.OutcomeAllow, "", map[string]string{
		"principal_id": principalID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleDeactivate is reserved for platform operators.
func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	principalID := r.PathValue("principal")
	if !id.principal.Operator {
		a.audit(r.Context(), "principal.deactivate", "principal:"+principalID, audit.OutcomeDeny, authz.ReasonForbidden, nil)
		writeFailure(w, r, denial{reason: authz.ReasonForbidden})
		return
	}
	if err := a.deps.Credentials.Deactivate(r.Context(), principalID); err != nil {
		writeFailure(w, r, err)
		return
	}
	a.audit(r.Context(), "principal.deactivate", "principal:"+principalID, audit.OutcomeAllow, "", nil)
	w.WriteHeader(http.StatusNoContent)
}
