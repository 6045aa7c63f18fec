// handlers_webhook.go - Stripe webhook endpoint.
//
// POST /billing/webhook
//
// Every verified event is acknowledged with 200 {"received": true}, including
// ones whose handler failed; reconciliation repairs those. Unverifiable
// requests get 401 and change nothing.
package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
)

// Stripe caps webhook payloads well below this.
const maxWebhookBytes = 512 << 10

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			auth.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Webhook body too large")
			return
		}
		auth.WriteError(w, http.StatusBadRequest, "invalid_payload", "Could not read webhook body")
		return
	}

	if _, err := s.HandleWebhook(r.Context(), body, r.Header.Get(s.opts.SignatureHeader)); err != nil {
		s.writeError(w, r, "webhook", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
