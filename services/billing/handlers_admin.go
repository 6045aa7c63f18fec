// handlers_admin.go - operator endpoints.
//
// POST /billing/admin/reconcile - run reconciliation now
//
// Auth: X-Cron-Key matching BILLING_CRON_KEY, or an admin JWT.
package billing

import (
	"crypto/subtle"
	"net/http"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
)

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if !s.cronKeyValid(r.Header.Get("X-Cron-Key")) {
		claims, err := s.verifier.ValidateJWT(r)
		if err != nil {
			auth.WriteError(w, http.StatusUnauthorized, "unauthorized", "X-Cron-Key or admin JWT required")
			return
		}
		if !claims.IsAdmin() {
			auth.WriteError(w, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
	}

	res, err := s.Reconcile(r.Context())
	if err != nil {
		s.writeError(w, r, "reconcile", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) cronKeyValid(got string) bool {
	want := s.opts.CronKey
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
