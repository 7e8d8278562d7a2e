package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, when a database is attached, readiness
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a HealthHandler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
