package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a HealthHandler. Either pinger may be nil when
// that dependency is not configured.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// HealthCheck responds with the per-dependency status. A failing dependency
// turns the overall status "degraded" but still returns 200 so orchestrators
// distinguish degraded from down.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := map[string]string{}

	if h.db != nil {
		checks["postgres"] = "ok"
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = "degraded"
		}
	}
	if h.cache != nil {
		checks["redis"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
