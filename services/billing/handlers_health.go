// handlers_health.go - liveness and readiness endpoints.
//
// GET /health       - process is up
// GET /health/ready - 200 when the database answers, 503 otherwise
package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	auth.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "billing"})
}

// handleReadinessProbe is the load balancer target. Billing cannot serve
// anything without its database.
func (s *Server) handleReadinessProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		auth.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database unavailable",
		})
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
