package api

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/webapp-api/internal/api/shared"
)

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// healthTimeout bounds the whole health check.
const healthTimeout = 2 * time.Second

// HealthHandler reports service liveness and dependency reachability.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a HealthHandler over named dependencies.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// ServeHTTP answers 200 when every dependency responds and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = "unavailable"
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	shared.RespondWithJSON(w, r, status, map[string]interface{}{
		"status":       overall,
		"dependencies": deps,
	})
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }
