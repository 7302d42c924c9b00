package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidstream/backend/internal/logging"
)

// HealthHandler reports whether the service and its store are reachable.
type HealthHandler struct {
	// Check probes the backing store. Nil means there is nothing to probe.
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Check != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := h.Check(checkCtx); err != nil {
			logging.FromContext(ctx).Error("health check failed", "error", err)
			respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
