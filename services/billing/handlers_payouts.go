// handlers_payouts.go - creator payouts and the admin side of them.
//
// POST /billing/payouts                     - request a payout (creator)
// GET  /billing/earnings/summary            - earnings overview (creator)
// POST /billing/admin/payouts/{id}/status   - move a payout, notify on terminal
// POST /billing/admin/payouts/{id}/notify   - resend the outcome email
package billing

import (
	"net/http"
	"time"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
)

type payoutDestinationBody struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type payoutRequestBody struct {
	Amount      float64                `json:"amount" validate:"gt=0"`
	Method      string                 `json:"method" validate:"required"`
	Destination *payoutDestinationBody `json:"destination"`
}

type payoutResponse struct {
	ID          string     `json:"id"`
	CreatorID   string     `json:"creator_id"`
	Amount      float64    `json:"amount"`
	Method      string     `json:"method"`
	Destination string     `json:"destination"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func payoutView(p *store.Payout) payoutResponse {
	return payoutResponse{
		ID:          p.ID,
		CreatorID:   p.CreatorID,
		Amount:      centsToUSD(p.AmountCents),
		Method:      p.Method,
		Destination: p.Details.Email,
		Status:      p.Status,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt,
		ProcessedAt: p.ProcessedAt,
	}
}

func (s *Server) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "request_payout", err)
		return
	}
	if ok, retry := s.limiter.CheckPayout(r.Context(), caller.UserID); !ok {
		writeRateLimited(w, retry)
		return
	}
	var body payoutRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, "request_payout", err)
		return
	}
	req := PayoutRequest{AmountCents: usdToCents(body.Amount), Method: body.Method}
	if body.Destination != nil {
		req.DestinationEmail = body.Destination.Email
	}
	p, err := s.RequestPayout(r.Context(), caller, req)
	if err != nil {
		s.writeError(w, r, "request_payout", err)
		return
	}
	auth.WriteJSON(w, http.StatusCreated, payoutView(p))
}

func (s *Server) handleEarningsSummary(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "earnings_summary", err)
		return
	}
	sum, err := s.EarningsSummary(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, "earnings_summary", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, sum)
}

type payoutStatusBody struct {
	Status string `json:"status" validate:"required,oneof=processing completed failed"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// handleTransitionPayout commits the status change even when the follow-up
// email fails; the response then carries delivery_failed (502).
func (s *Server) handleTransitionPayout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "payout_id")
	if err != nil {
		s.writeError(w, r, "transition_payout", err)
		return
	}
	var body payoutStatusBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, "transition_payout", err)
		return
	}
	p, err := s.TransitionPayout(r.Context(), id, body.Status, body.Notes)
	if err != nil {
		s.writeError(w, r, "transition_payout", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, payoutView(p))
}

type payoutNotifyBody struct {
	Status string `json:"status" validate:"required,oneof=completed failed"`
	Notes  string `json:"notes" validate:"max=2000"`
}

func (s *Server) handleNotifyPayout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "payout_id")
	if err != nil {
		s.writeError(w, r, "notify_payout", err)
		return
	}
	var body payoutNotifyBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, "notify_payout", err)
		return
	}
	if err := s.NotifyPayoutOutcome(r.Context(), id, body.Status, body.Notes); err != nil {
		s.writeError(w, r, "notify_payout", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
