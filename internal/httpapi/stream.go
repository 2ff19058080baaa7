package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"aibridge.io/internal/authz"
)

// Stream tails audit records as Server-Sent Events. Operators only.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())
	if !id.principal.Operator {
		writeFailure(w, r, denial{reason: authz.ReasonForbidden})
		return
	}
	if a.deps.AuditHub == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// the stream outlives the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.deps.AuditHub.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for record := range ch {
		payload, err := json.Marshal(record)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: audit\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
