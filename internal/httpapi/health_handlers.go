package httpapi

import (
	"net/http"
	"time"

	"jobsheet-engine/internal/events"
)

type HealthHandler struct {
	Hub     *events.Hub
	Started time.Time
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"ok": true}
	if !h.Started.IsZero() {
		out["uptime_s"] = int64(time.Since(h.Started).Seconds())
	}
	if h.Hub != nil {
		out["listeners"] = h.Hub.Subscribers()
	}
	WriteJSON(w, http.StatusOK, out)
}
