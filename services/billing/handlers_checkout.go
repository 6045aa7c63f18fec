// handlers_checkout.go - pricing and subscription entry points.
//
// POST /billing/prices              - set a creator's monthly price (0 = free)
// POST /billing/checkout            - hosted checkout for a paid creator
// POST /billing/subscriptions/free  - direct subscribe to a free creator
package billing

import (
	"net/http"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
)

type priceRequest struct {
	CreatorID string   `json:"creator_id" validate:"required,uuid"`
	PriceUSD  *float64 `json:"price_usd" validate:"required,gte=0"`
}

type creatorRequest struct {
	CreatorID string `json:"creator_id" validate:"required,uuid"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "ensure_price", err)
		return
	}
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "ensure_price", err)
		return
	}

	cents := usdToCents(*req.PriceUSD)
	if cents == 0 {
		if err := s.SetFreePricing(r.Context(), caller, req.CreatorID); err != nil {
			s.writeError(w, r, "set_free_pricing", err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, PriceResult{})
		return
	}
	res, err := s.EnsurePrice(r.Context(), caller, req.CreatorID, cents)
	if err != nil {
		s.writeError(w, r, "ensure_price", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "start_checkout", err)
		return
	}
	if ok, retry := s.limiter.CheckCheckout(r.Context(), caller.UserID); !ok {
		writeRateLimited(w, retry)
		return
	}
	var req creatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "start_checkout", err)
		return
	}
	url, err := s.StartCheckout(r.Context(), caller, req.CreatorID)
	if err != nil {
		s.writeError(w, r, "start_checkout", err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

func (s *Server) handleSubscribeFree(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, "subscribe_free", err)
		return
	}
	var req creatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "subscribe_free", err)
		return
	}
	sub, err := s.SubscribeFree(r.Context(), caller, req.CreatorID)
	if err != nil {
		s.writeError(w, r, "subscribe_free", err)
		return
	}
	auth.WriteJSON(w, http.StatusCreated, subscriptionView(sub))
}
