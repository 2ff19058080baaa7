package httpapi

import (
	"net/http"

	"aibridge.io/internal/dashboard"
)

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if a.deps.Dashboard == nil {
		writeError(w, r, http.StatusServiceUnavailable, "dashboard unavailable")
		return
	}
	id, _ := identityFromContext(r.Context())
	stats, err := a.deps.Dashboard.Stats(r.Context(), id.principal, id.memberships)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if stats == nil {
		stats = []dashboard.OrganizationStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organizations": stats,
	})
}
