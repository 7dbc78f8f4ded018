package api

import (
	"context"
	"net/http"
	"time"

	"github.com/openaid/bulletin/internal/health"
)

// readyCheckTimeout bounds how long a readiness probe waits on dependencies.
const readyCheckTimeout = 2 * time.Second

// HealthHandlers holds dependencies for health check endpoints.
type HealthHandlers struct {
	checkers map[string]health.Checker
}

// NewHealthHandlers creates a new HealthHandlers instance.
// checkers maps a dependency name to its checker; it may be empty.
func NewHealthHandlers(checkers map[string]health.Checker) *HealthHandlers {
	return &HealthHandlers{
		checkers: checkers,
	}
}

// Health handles GET /health - process liveness, always healthy if serving.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready - readiness including dependency checks.
// Returns 503 with per-dependency status when any check fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checkers))
	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}

	body := map[string]any{"status": "ready"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}

	writeJSON(w, r.Context(), status, body)
}
